// Package twitter links accounts on the short-form messaging network.
// The handshake uses PKCE; posting goes through the v2 tweets API.
package twitter

import (
	"context"
	"strings"
	"time"

	"github.com/cyobiorah/go-social-connect/core"
	"github.com/cyobiorah/go-social-connect/providers"
)

const (
	AuthURL    = "https://twitter.com/i/oauth2/authorize"
	TokenURL   = "https://api.twitter.com/2/oauth2/token"
	profileURL = "https://api.twitter.com/2/users/me?user.fields=profile_image_url,public_metrics"
	tweetURL   = "https://api.twitter.com/2/tweets"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	TokenTTL     time.Duration
	HTTPClient   providers.HTTPDoer
}

type Platform struct {
	*providers.OAuth2Platform
}

func DefaultScopes() []string {
	return []string{"tweet.read", "tweet.write", "users.read", "offline.access"}
}

func New(cfg Config) (*Platform, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	base, err := providers.NewOAuth2Platform(providers.OAuth2Config{
		Platform:     core.PlatformTwitter,
		AuthURL:      AuthURL,
		TokenURL:     TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       scopes,
		Traits: core.PlatformTraits{
			RequiresPKCE: true,
		},
		TokenTTL:   cfg.TokenTTL,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Platform{OAuth2Platform: base}, nil
}

type userResponse struct {
	Data struct {
		ID              string `json:"id"`
		Username        string `json:"username"`
		Name            string `json:"name"`
		ProfileImageURL string `json:"profile_image_url"`
		PublicMetrics   struct {
			FollowersCount int64 `json:"followers_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

func (p *Platform) FetchProfile(ctx context.Context, accessToken string) (core.ProfileSnapshot, error) {
	var decoded userResponse
	if err := p.GetJSON(ctx, profileURL, accessToken, nil, &decoded); err != nil {
		return core.ProfileSnapshot{}, err
	}
	username := strings.TrimSpace(decoded.Data.Username)
	snapshot := core.ProfileSnapshot{
		ExternalID:    strings.TrimSpace(decoded.Data.ID),
		Username:      username,
		DisplayName:   strings.TrimSpace(decoded.Data.Name),
		AvatarURL:     strings.TrimSpace(decoded.Data.ProfileImageURL),
		FollowerCount: decoded.Data.PublicMetrics.FollowersCount,
	}
	if username != "" {
		snapshot.ProfileURL = "https://twitter.com/" + username
	}
	return snapshot, nil
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (p *Platform) Publish(ctx context.Context, account *core.LinkedAccount, post core.PostContent) (core.PublishResult, error) {
	text := strings.TrimSpace(post.Text)
	if text == "" {
		return core.PublishResult{}, core.NewContentRejectedError(core.PlatformTwitter, "tweet text is required")
	}

	var decoded tweetResponse
	if _, err := p.PostJSON(ctx, tweetURL, account.Credentials.AccessToken, nil, tweetRequest{Text: text}, &decoded); err != nil {
		return core.PublishResult{}, err
	}
	return core.PublishResult{
		PostID: strings.TrimSpace(decoded.Data.ID),
		Metadata: map[string]any{
			"platform": string(core.PlatformTwitter),
		},
	}, nil
}

var _ core.PlatformClient = (*Platform)(nil)
