package socialconnect

import (
	"fmt"

	"github.com/cyobiorah/go-social-connect/core"
	"github.com/cyobiorah/go-social-connect/providers"
	"github.com/cyobiorah/go-social-connect/providers/facebook"
	"github.com/cyobiorah/go-social-connect/providers/linkedin"
	"github.com/cyobiorah/go-social-connect/providers/tiktok"
	"github.com/cyobiorah/go-social-connect/providers/twitter"
	"github.com/cyobiorah/go-social-connect/providers/youtube"
)

func TwitterPlatform(cfg twitter.Config) (core.PlatformClient, error) {
	return twitter.New(cfg)
}

func TikTokPlatform(cfg tiktok.Config) (core.PlatformClient, error) {
	return tiktok.New(cfg)
}

func LinkedInPlatform(cfg linkedin.Config) (core.PlatformClient, error) {
	return linkedin.New(cfg)
}

func YouTubePlatform(cfg youtube.Config) (core.PlatformClient, error) {
	return youtube.New(cfg)
}

func FacebookPlatform(cfg facebook.Config) (core.PlatformClient, error) {
	return facebook.New(cfg)
}

// RegistryFromConfig builds a registry holding one client per platform
// present in cfg.Platforms. An httpClient of nil leaves each platform
// on its default client.
func RegistryFromConfig(cfg Config, httpClient providers.HTTPDoer) (core.Registry, error) {
	registry := core.NewPlatformRegistry()
	for name, platformCfg := range cfg.Platforms {
		platform, err := core.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		client, err := buildPlatformClient(platform, platformCfg, httpClient)
		if err != nil {
			return nil, fmt.Errorf("socialconnect: build %s client: %w", platform, err)
		}
		if err := registry.Register(client); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildPlatformClient(platform core.Platform, cfg core.PlatformConfig, httpClient providers.HTTPDoer) (core.PlatformClient, error) {
	switch platform {
	case core.PlatformTwitter:
		return twitter.New(twitter.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			HTTPClient:   httpClient,
		})
	case core.PlatformTikTok:
		return tiktok.New(tiktok.Config{
			ClientKey:    cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			HTTPClient:   httpClient,
		})
	case core.PlatformLinkedIn:
		return linkedin.New(linkedin.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			HTTPClient:   httpClient,
		})
	case core.PlatformYouTube:
		return youtube.New(youtube.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			HTTPClient:   httpClient,
		})
	case core.PlatformFacebook:
		return facebook.New(facebook.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			HTTPClient:   httpClient,
		})
	default:
		return nil, fmt.Errorf("socialconnect: no client factory for platform %s", platform)
	}
}
