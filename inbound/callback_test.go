package inbound

import (
	"context"
	"net/url"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/cyobiorah/go-social-connect/core"
)

func TestParseCallback(t *testing.T) {
	query := url.Values{}
	query.Set("code", " auth_code ")
	query.Set("state", "state_1")

	req, err := ParseCallback("twitter", query)
	if err != nil {
		t.Fatalf("parse callback: %v", err)
	}
	if req.Platform != core.PlatformTwitter {
		t.Fatalf("platform = %q", req.Platform)
	}
	if req.Code != "auth_code" {
		t.Fatalf("code = %q, want trimmed auth_code", req.Code)
	}
}

func TestParseCallback_ErrorReportNeedsNoCode(t *testing.T) {
	query := url.Values{}
	query.Set("error", "access_denied")
	query.Set("error_description", "user said no")

	req, err := ParseCallback("linkedin", query)
	if err != nil {
		t.Fatalf("parse callback: %v", err)
	}
	if req.Error != "access_denied" || req.ErrorDescription != "user said no" {
		t.Fatalf("error fields = %q/%q", req.Error, req.ErrorDescription)
	}
}

func TestParseCallback_Rejections(t *testing.T) {
	if _, err := ParseCallback("myspace", url.Values{}); err == nil {
		t.Fatalf("expected unknown platform rejection")
	}

	query := url.Values{}
	query.Set("code", "auth_code")
	if _, err := ParseCallback("twitter", query); err == nil {
		t.Fatalf("expected missing state rejection")
	}

	query = url.Values{}
	query.Set("state", "state_1")
	if _, err := ParseCallback("twitter", query); err == nil {
		t.Fatalf("expected missing code rejection")
	}
}

func TestRedirectBuilder_Success(t *testing.T) {
	builder := NewRedirectBuilder(core.FrontendConfig{
		SuccessURL: "https://app.example/connected",
		FailureURL: "https://app.example/connect-failed",
	})

	rawURL, err := builder.Success(&core.LinkedAccount{
		ID:       "acc_1",
		Platform: core.PlatformTwitter,
		Profile:  core.ProfileSnapshot{Username: "handle"},
	})
	if err != nil {
		t.Fatalf("success url: %v", err)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	query := parsed.Query()
	if query.Get("platform") != "twitter" || query.Get("account_id") != "acc_1" {
		t.Fatalf("query = %v", query)
	}
	if query.Get("username") != "handle" {
		t.Fatalf("username = %q", query.Get("username"))
	}
}

func TestRedirectBuilder_FailureCarriesCodeOnly(t *testing.T) {
	builder := NewRedirectBuilder(core.FrontendConfig{
		SuccessURL: "https://app.example/connected",
		FailureURL: "https://app.example/connect-failed",
	})

	source := core.NewTokenExchangeError(core.PlatformTwitter, 400, nil)
	rawURL, err := builder.Failure(core.PlatformTwitter, source)
	if err != nil {
		t.Fatalf("failure url: %v", err)
	}
	parsed, _ := url.Parse(rawURL)
	query := parsed.Query()
	if query.Get("error") != core.ErrCodeTokenExchangeFailed {
		t.Fatalf("error code = %q", query.Get("error"))
	}
	if query.Get("message") == "" {
		t.Fatalf("expected a short user message")
	}
	if strings.Contains(rawURL, "400") || strings.Contains(rawURL, "status_code") {
		t.Fatalf("upstream detail leaked into the redirect: %q", rawURL)
	}
}

func TestRedirectBuilder_VerificationFailureHasOwnMessage(t *testing.T) {
	builder := NewRedirectBuilder(core.FrontendConfig{
		SuccessURL: "https://app.example/connected",
		FailureURL: "https://app.example/connect-failed",
	})

	source := goerrors.New("verification post failed", goerrors.CategoryOperation).
		WithTextCode(core.ErrCodeVerificationFailed)
	rawURL, err := builder.Failure(core.PlatformLinkedIn, source)
	if err != nil {
		t.Fatalf("failure url: %v", err)
	}
	parsed, _ := url.Parse(rawURL)
	query := parsed.Query()
	if query.Get("error") != core.ErrCodeVerificationFailed {
		t.Fatalf("error code = %q", query.Get("error"))
	}
	if !strings.Contains(query.Get("message"), "confirmation post") {
		t.Fatalf("message = %q, want the confirmation-post wording", query.Get("message"))
	}
}

func TestRedirectBuilder_RequiresConfiguredURLs(t *testing.T) {
	builder := NewRedirectBuilder(core.FrontendConfig{})
	if _, err := builder.Success(nil); err == nil {
		t.Fatalf("expected missing success url to fail")
	}
	if _, err := builder.Failure("", goerrors.New("boom", goerrors.CategoryInternal)); err == nil {
		t.Fatalf("expected missing failure url to fail")
	}
}

type stubLinkingService struct {
	completeFn func(ctx context.Context, req core.CallbackRequest) (*core.LinkedAccount, error)
}

func (s stubLinkingService) BeginLink(context.Context, core.BeginLinkRequest) (core.BeginLinkResponse, error) {
	return core.BeginLinkResponse{}, nil
}

func (s stubLinkingService) CompleteLink(ctx context.Context, req core.CallbackRequest) (*core.LinkedAccount, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, req)
	}
	return &core.LinkedAccount{ID: "acc_1", Platform: req.Platform}, nil
}

func (s stubLinkingService) GetFreshAccount(context.Context, string) (*core.LinkedAccount, error) {
	return nil, nil
}

func (s stubLinkingService) Refresh(context.Context, string) (*core.LinkedAccount, error) {
	return nil, nil
}

func (s stubLinkingService) Publish(context.Context, core.PublishRequest) (core.PublishResult, error) {
	return core.PublishResult{}, nil
}

func (s stubLinkingService) Unlink(context.Context, string, string) error { return nil }

func TestCallbackGateway_SuccessRedirect(t *testing.T) {
	gateway, err := NewCallbackGateway(stubLinkingService{}, core.FrontendConfig{
		SuccessURL: "https://app.example/connected",
		FailureURL: "https://app.example/connect-failed",
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	query := url.Values{}
	query.Set("code", "auth_code")
	query.Set("state", "state_1")
	redirect, err := gateway.HandleCallback(context.Background(), "twitter", query)
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if !strings.HasPrefix(redirect, "https://app.example/connected") {
		t.Fatalf("redirect = %q, want the success url", redirect)
	}
}

func TestCallbackGateway_FailureRedirectOnLinkError(t *testing.T) {
	gateway, err := NewCallbackGateway(stubLinkingService{
		completeFn: func(context.Context, core.CallbackRequest) (*core.LinkedAccount, error) {
			return nil, core.NewStateInvalidError("not found")
		},
	}, core.FrontendConfig{
		SuccessURL: "https://app.example/connected",
		FailureURL: "https://app.example/connect-failed",
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	query := url.Values{}
	query.Set("code", "auth_code")
	query.Set("state", "state_1")
	redirect, err := gateway.HandleCallback(context.Background(), "twitter", query)
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if !strings.HasPrefix(redirect, "https://app.example/connect-failed") {
		t.Fatalf("redirect = %q, want the failure url", redirect)
	}
	if !strings.Contains(redirect, core.ErrCodeStateInvalid) {
		t.Fatalf("redirect must carry the taxonomy code: %q", redirect)
	}
}

func TestCallbackGateway_BadQueryStillRedirects(t *testing.T) {
	gateway, err := NewCallbackGateway(stubLinkingService{}, core.FrontendConfig{
		SuccessURL: "https://app.example/connected",
		FailureURL: "https://app.example/connect-failed",
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	redirect, err := gateway.HandleCallback(context.Background(), "twitter", url.Values{})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if !strings.HasPrefix(redirect, "https://app.example/connect-failed") {
		t.Fatalf("redirect = %q, want the failure url", redirect)
	}
}
