package inbound

import (
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/cyobiorah/go-social-connect/core"
)

// RedirectBuilder renders the frontend URLs a callback handler sends the
// browser to. Failure URLs carry the taxonomy code and a short message
// only; upstream error detail never reaches the user agent.
type RedirectBuilder struct {
	frontend core.FrontendConfig
}

func NewRedirectBuilder(frontend core.FrontendConfig) *RedirectBuilder {
	return &RedirectBuilder{frontend: frontend}
}

func (b *RedirectBuilder) Success(account *core.LinkedAccount) (string, error) {
	if b == nil {
		return "", inboundInternal("inbound: redirect builder is not configured", nil)
	}
	base := strings.TrimSpace(b.frontend.SuccessURL)
	if base == "" {
		return "", inboundInternal("inbound: frontend success url is not configured", nil)
	}
	params := url.Values{}
	if account != nil {
		params.Set("platform", string(account.Platform))
		params.Set("account_id", account.ID)
		if account.Profile.Username != "" {
			params.Set("username", account.Profile.Username)
		}
	}
	return appendQuery(base, params)
}

func (b *RedirectBuilder) Failure(platform core.Platform, err error) (string, error) {
	if b == nil {
		return "", inboundInternal("inbound: redirect builder is not configured", nil)
	}
	base := strings.TrimSpace(b.frontend.FailureURL)
	if base == "" {
		return "", inboundInternal("inbound: frontend failure url is not configured", nil)
	}
	params := url.Values{}
	if platform != "" {
		params.Set("platform", string(platform))
	}
	code := core.ErrCodeInternal
	var typed *goerrors.Error
	if goerrors.As(err, &typed) && typed.TextCode != "" {
		code = typed.TextCode
	}
	params.Set("error", code)
	params.Set("message", failureMessage(code))
	return appendQuery(base, params)
}

func appendQuery(base string, params url.Values) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", inboundInternal("inbound: frontend url is invalid", map[string]any{
			"url": base,
		})
	}
	query := parsed.Query()
	for key, values := range params {
		for _, value := range values {
			query.Set(key, value)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func failureMessage(code string) string {
	switch code {
	case core.ErrCodeStateInvalid:
		return "The sign-in session expired. Please try connecting again."
	case core.ErrCodeTokenExchangeFailed:
		return "The platform rejected the authorization. Please try again."
	case core.ErrCodeAlreadyLinked:
		return "This account is already connected to another user."
	case core.ErrCodeProfileFetchFailed:
		return "We could not load the account profile. Please try again."
	case core.ErrCodeVerificationFailed:
		return "Connecting worked, but the confirmation post failed. Please try again."
	case core.ErrCodePermissionDenied:
		return "The connected account is missing required permissions."
	case core.ErrCodeBadInput:
		return "The callback request was malformed."
	default:
		return "Connecting the account failed. Please try again."
	}
}
