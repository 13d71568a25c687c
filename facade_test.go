package socialconnect

import (
	"context"
	"testing"

	"github.com/cyobiorah/go-social-connect/core"
)

type stubLinkingService struct{}

func (stubLinkingService) BeginLink(context.Context, core.BeginLinkRequest) (core.BeginLinkResponse, error) {
	return core.BeginLinkResponse{URL: "https://consent.example", State: "state_1"}, nil
}

func (stubLinkingService) CompleteLink(context.Context, core.CallbackRequest) (*core.LinkedAccount, error) {
	return &core.LinkedAccount{ID: "acc_1"}, nil
}

func (stubLinkingService) GetFreshAccount(context.Context, string) (*core.LinkedAccount, error) {
	return nil, nil
}

func (stubLinkingService) Refresh(context.Context, string) (*core.LinkedAccount, error) {
	return nil, nil
}

func (stubLinkingService) Publish(context.Context, core.PublishRequest) (core.PublishResult, error) {
	return core.PublishResult{}, nil
}

func (stubLinkingService) Unlink(context.Context, string, string) error { return nil }

func TestNewFacade(t *testing.T) {
	facade, err := NewFacade(stubLinkingService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.BeginLink == nil || commands.CompleteLink == nil || commands.Refresh == nil {
		t.Fatalf("commands not wired: %+v", commands)
	}
	if commands.Publish == nil || commands.Unlink == nil {
		t.Fatalf("commands not wired: %+v", commands)
	}
	if facade.Service() == nil {
		t.Fatalf("service accessor lost the backing service")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected nil service to be rejected")
	}
}

func TestRegistryFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Platforms = map[string]PlatformConfig{
		"twitter": {
			ClientID:     "client_tw",
			ClientSecret: "secret_tw",
			RedirectURI:  "https://app.example/callback/twitter",
		},
		"tiktok": {
			ClientID:     "client_tt",
			ClientSecret: "secret_tt",
			RedirectURI:  "https://app.example/callback/tiktok",
		},
	}

	registry, err := RegistryFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("registry from config: %v", err)
	}
	if _, ok := registry.Get(core.PlatformTwitter); !ok {
		t.Fatalf("twitter client missing")
	}
	if _, ok := registry.Get(core.PlatformTikTok); !ok {
		t.Fatalf("tiktok client missing")
	}
	if _, ok := registry.Get(core.PlatformFacebook); ok {
		t.Fatalf("unconfigured platform must not be registered")
	}
}

func TestRegistryFromConfig_RejectsUnknownPlatform(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Platforms = map[string]PlatformConfig{
		"myspace": {ClientID: "x", RedirectURI: "https://app.example/cb"},
	}
	if _, err := RegistryFromConfig(cfg, nil); err == nil {
		t.Fatalf("expected unknown platform to be rejected")
	}
}
