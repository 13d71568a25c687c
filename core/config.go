package core

import (
	"fmt"
	"strings"
	"time"
)

// PlatformConfig holds one platform's app registration. The redirect
// URI must match the value registered with the platform exactly.
type PlatformConfig struct {
	ClientID     string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string   `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes       []string `koanf:"scopes" mapstructure:"scopes"`
}

type FrontendConfig struct {
	SuccessURL string `koanf:"success_url" mapstructure:"success_url"`
	FailureURL string `koanf:"failure_url" mapstructure:"failure_url"`
}

type Config struct {
	ServiceName         string                    `koanf:"service_name" mapstructure:"service_name"`
	HandshakeTTLSeconds int                       `koanf:"handshake_ttl_seconds" mapstructure:"handshake_ttl_seconds"`
	RefreshLeadSeconds  int                       `koanf:"refresh_lead_seconds" mapstructure:"refresh_lead_seconds"`
	Frontend            FrontendConfig            `koanf:"frontend" mapstructure:"frontend"`
	Platforms           map[string]PlatformConfig `koanf:"platforms" mapstructure:"platforms"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:         "social-connect",
		HandshakeTTLSeconds: 600,
		RefreshLeadSeconds:  300,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.HandshakeTTLSeconds < 0 {
		return fmt.Errorf("core: handshake_ttl_seconds must not be negative")
	}
	if c.RefreshLeadSeconds < 0 {
		return fmt.Errorf("core: refresh_lead_seconds must not be negative")
	}
	for name, platform := range c.Platforms {
		if _, err := ParsePlatform(name); err != nil {
			return fmt.Errorf("core: platforms key %q: %w", name, err)
		}
		if strings.TrimSpace(platform.ClientID) == "" {
			return fmt.Errorf("core: platforms.%s.client_id is required", name)
		}
		if strings.TrimSpace(platform.RedirectURI) == "" {
			return fmt.Errorf("core: platforms.%s.redirect_uri is required", name)
		}
	}
	return nil
}

func (c Config) HandshakeTTL() time.Duration {
	if c.HandshakeTTLSeconds <= 0 {
		return DefaultHandshakeTTL
	}
	return time.Duration(c.HandshakeTTLSeconds) * time.Second
}

func (c Config) RefreshLead() time.Duration {
	if c.RefreshLeadSeconds <= 0 {
		return DefaultRefreshLead
	}
	return time.Duration(c.RefreshLeadSeconds) * time.Second
}

// PlatformConfigFor returns the registration for one platform, keyed
// case-insensitively.
func (c Config) PlatformConfigFor(platform Platform) (PlatformConfig, bool) {
	for name, cfg := range c.Platforms {
		if strings.EqualFold(strings.TrimSpace(name), string(platform)) {
			return cfg, true
		}
	}
	return PlatformConfig{}, false
}
