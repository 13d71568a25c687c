// Package tiktok links short-video accounts. TikTok renames client_id
// to client_key, joins scopes with commas, nests token grants under a
// data envelope, and wants the client secret in the request body. The
// handshake uses PKCE; publishing runs the direct-post video init API
// with a pull-from-URL source.
package tiktok

import (
	"context"
	"strings"
	"time"

	"github.com/cyobiorah/go-social-connect/core"
	"github.com/cyobiorah/go-social-connect/providers"
)

const (
	AuthURL        = "https://www.tiktok.com/v2/auth/authorize/"
	TokenURL       = "https://open.tiktokapis.com/v2/oauth/token/"
	profileURL     = "https://open.tiktokapis.com/v2/user/info/?fields=open_id,union_id,avatar_url,display_name,follower_count,profile_deep_link"
	videoInitURL   = "https://open.tiktokapis.com/v2/post/publish/video/init/"
	maxCaptionSize = 2200
)

type Config struct {
	ClientKey    string
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
	return []string{"user.info.basic", "video.publish", "video.upload"}
}

func New(cfg Config) (*Platform, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	base, err := providers.NewOAuth2Platform(providers.OAuth2Config{
		Platform:           core.PlatformTikTok,
		AuthURL:            AuthURL,
		TokenURL:           TokenURL,
		ClientID:           cfg.ClientKey,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		ClientIDParam:      "client_key",
		RedirectURI:        cfg.RedirectURI,
		Scopes:             scopes,
		ScopeSeparator:     ",",
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

type userInfoResponse struct {
	Data struct {
		User struct {
			OpenID          string `json:"open_id"`
			UnionID         string `json:"union_id"`
			AvatarURL       string `json:"avatar_url"`
			DisplayName     string `json:"display_name"`
			FollowerCount   int64  `json:"follower_count"`
			ProfileDeepLink string `json:"profile_deep_link"`
		} `json:"user"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Platform) FetchProfile(ctx context.Context, accessToken string) (core.ProfileSnapshot, error) {
	var decoded userInfoResponse
	if err := p.GetJSON(ctx, profileURL, accessToken, nil, &decoded); err != nil {
		return core.ProfileSnapshot{}, err
	}
	if code := strings.TrimSpace(decoded.Error.Code); code != "" && code != "ok" {
		return core.ProfileSnapshot{}, core.NewAPIError(core.PlatformTikTok, 200, decoded.Error.Message)
	}
	user := decoded.Data.User
	return core.ProfileSnapshot{
		ExternalID:    strings.TrimSpace(user.OpenID),
		Username:      strings.TrimSpace(user.DisplayName),
		DisplayName:   strings.TrimSpace(user.DisplayName),
		ProfileURL:    strings.TrimSpace(user.ProfileDeepLink),
		AvatarURL:     strings.TrimSpace(user.AvatarURL),
		FollowerCount: user.FollowerCount,
	}, nil
}

type videoInitRequest struct {
	PostInfo struct {
		Title        string `json:"title"`
		PrivacyLevel string `json:"privacy_level"`
	} `json:"post_info"`
	SourceInfo struct {
		Source   string `json:"source"`
		VideoURL string `json:"video_url"`
	} `json:"source_info"`
}

type videoInitResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Platform) Publish(ctx context.Context, account *core.LinkedAccount, post core.PostContent) (core.PublishResult, error) {
	if len(post.MediaURLs) == 0 {
		return core.PublishResult{}, core.NewContentRejectedError(core.PlatformTikTok, "a video url is required")
	}
	caption := strings.TrimSpace(post.Text)
	if caption == "" {
		caption = strings.TrimSpace(post.Title)
	}
	if len(caption) > maxCaptionSize {
		caption = caption[:maxCaptionSize]
	}

	request := videoInitRequest{}
	request.PostInfo.Title = caption
	request.PostInfo.PrivacyLevel = "PUBLIC_TO_EVERYONE"
	request.SourceInfo.Source = "PULL_FROM_URL"
	request.SourceInfo.VideoURL = strings.TrimSpace(post.MediaURLs[0])

	var decoded videoInitResponse
	if _, err := p.PostJSON(ctx, videoInitURL, account.Credentials.AccessToken, nil, request, &decoded); err != nil {
		return core.PublishResult{}, err
	}
	if code := strings.TrimSpace(decoded.Error.Code); code != "" && code != "ok" {
		return core.PublishResult{}, tiktokPublishError(code, decoded.Error.Message)
	}
	return core.PublishResult{
		PostID: strings.TrimSpace(decoded.Data.PublishID),
		Metadata: map[string]any{
			"platform": string(core.PlatformTikTok),
		},
	}, nil
}

// TikTok reports most failures with a 200 status and an error envelope,
// so the generic HTTP classification never sees them.
func tiktokPublishError(code, message string) error {
	normalized := strings.ToLower(code)
	switch {
	case strings.Contains(normalized, "access_token_invalid"), strings.Contains(normalized, "token_expired"):
		return core.NewTokenExpiredError(core.PlatformTikTok)
	case strings.Contains(normalized, "scope_not_authorized"), strings.Contains(normalized, "permission"):
		return core.NewPermissionDeniedError(core.PlatformTikTok)
	case strings.Contains(normalized, "rate_limit"), strings.Contains(normalized, "quota"):
		return core.NewRateLimitedError(core.PlatformTikTok, 0)
	case strings.Contains(normalized, "spam_risk"), strings.Contains(normalized, "content"):
		return core.NewContentRejectedError(core.PlatformTikTok, message)
	default:
		return core.NewAPIError(core.PlatformTikTok, 200, code+": "+message)
	}
}

var _ core.PlatformClient = (*Platform)(nil)
