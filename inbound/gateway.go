package inbound

import (
	"context"
	"net/url"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/cyobiorah/go-social-connect/core"
)

// CallbackGateway drives the redirect leg of the OAuth handshake: parse
// the platform callback, complete the link, and resolve the frontend
// URL the browser should land on. Errors are folded into the failure
// redirect so the user always leaves the callback endpoint somewhere.
type CallbackGateway struct {
	service   core.LinkingService
	redirects *RedirectBuilder
	logger    core.Logger
}

type GatewayOption func(*CallbackGateway)

func WithGatewayLogger(logger core.Logger) GatewayOption {
	return func(g *CallbackGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewCallbackGateway(service core.LinkingService, frontend core.FrontendConfig, options ...GatewayOption) (*CallbackGateway, error) {
	if service == nil {
		return nil, inboundInternal("inbound: linking service is required", nil)
	}
	gateway := &CallbackGateway{
		service:   service,
		redirects: NewRedirectBuilder(frontend),
		logger:    glog.Nop(),
	}
	for _, option := range options {
		if option != nil {
			option(gateway)
		}
	}
	return gateway, nil
}

// HandleCallback returns the redirect URL for a platform callback. The
// error return is reserved for configuration problems; handshake
// failures are reported through the failure redirect.
func (g *CallbackGateway) HandleCallback(ctx context.Context, platform string, query url.Values) (string, error) {
	if g == nil || g.service == nil {
		return "", inboundInternal("inbound: callback gateway is not configured", nil)
	}

	req, err := ParseCallback(platform, query)
	if err != nil {
		g.logger.Debug("callback rejected", "platform", platform, "error", err.Error())
		return g.redirects.Failure("", err)
	}

	account, err := g.service.CompleteLink(ctx, req)
	if err != nil {
		g.logger.Info("link completion failed", "platform", string(req.Platform), "error", err.Error())
		return g.redirects.Failure(req.Platform, err)
	}

	g.logger.Info("account linked",
		"platform", string(account.Platform),
		"account_id", account.ID,
	)
	return g.redirects.Success(account)
}
