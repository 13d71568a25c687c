package inbound

import (
	"net/url"
	"strings"

	"github.com/cyobiorah/go-social-connect/core"
)

// ParseCallback extracts the OAuth redirect parameters for the named
// platform. A platform error report is a valid callback; code and state
// are only required when the platform did not report one.
func ParseCallback(platform string, query url.Values) (core.CallbackRequest, error) {
	parsed, err := core.ParsePlatform(platform)
	if err != nil {
		return core.CallbackRequest{}, inboundBadInput("inbound: unknown platform", map[string]any{
			"platform": strings.TrimSpace(platform),
		})
	}

	req := core.CallbackRequest{
		Platform:         parsed,
		Code:             strings.TrimSpace(query.Get("code")),
		State:            strings.TrimSpace(query.Get("state")),
		Error:            strings.TrimSpace(query.Get("error")),
		ErrorDescription: strings.TrimSpace(query.Get("error_description")),
	}

	if req.Error == "" {
		if req.State == "" {
			return core.CallbackRequest{}, inboundBadInput("inbound: callback state is required", map[string]any{
				"platform": string(parsed),
			})
		}
		if req.Code == "" {
			return core.CallbackRequest{}, inboundBadInput("inbound: callback code is required", map[string]any{
				"platform": string(parsed),
			})
		}
	}
	return req, nil
}
