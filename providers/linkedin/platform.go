// Package linkedin links professional-network accounts. LinkedIn
// cannot be trusted to round-trip opaque server state, so the platform
// is flagged echo-capable; a verification post confirms w_member_social
// actually works; and publishing tries the versioned REST posts API
// before falling back once to the legacy ugcPosts shape.
package linkedin

import (
	"context"
	"strings"
	"time"

	"github.com/cyobiorah/go-social-connect/core"
	"github.com/cyobiorah/go-social-connect/providers"
)

const (
	AuthURL    = "https://www.linkedin.com/oauth/v2/authorization"
	TokenURL   = "https://www.linkedin.com/oauth/v2/accessToken"
	profileURL = "https://api.linkedin.com/v2/userinfo"
	postsURL   = "https://api.linkedin.com/rest/posts"
	ugcURL     = "https://api.linkedin.com/v2/ugcPosts"

	// Versioned REST APIs require an explicit monthly version header.
	apiVersion = "202401"
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
	return []string{"openid", "profile", "email", "w_member_social"}
}

func New(cfg Config) (*Platform, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	base, err := providers.NewOAuth2Platform(providers.OAuth2Config{
		Platform:           core.PlatformLinkedIn,
		AuthURL:            AuthURL,
		TokenURL:           TokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		RedirectURI:        cfg.RedirectURI,
		Scopes:             scopes,
		Traits: core.PlatformTraits{
			SupportsStateEcho:        true,
			RequiresVerificationPost: true,
			HasLegacyPublishAPI:      true,
		},
		TokenTTL:   cfg.TokenTTL,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Platform{OAuth2Platform: base}, nil
}

type userinfoResponse struct {
	Sub        string `json:"sub"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
	Email      string `json:"email"`
}

func (p *Platform) FetchProfile(ctx context.Context, accessToken string) (core.ProfileSnapshot, error) {
	var decoded userinfoResponse
	if err := p.GetJSON(ctx, profileURL, accessToken, nil, &decoded); err != nil {
		return core.ProfileSnapshot{}, err
	}
	displayName := strings.TrimSpace(decoded.Name)
	if displayName == "" {
		displayName = strings.TrimSpace(strings.TrimSpace(decoded.GivenName) + " " + strings.TrimSpace(decoded.FamilyName))
	}
	return core.ProfileSnapshot{
		ExternalID:  strings.TrimSpace(decoded.Sub),
		Username:    displayName,
		DisplayName: displayName,
		AvatarURL:   strings.TrimSpace(decoded.Picture),
	}, nil
}

// Publish tries the versioned posts API first, then the legacy
// ugcPosts endpoint exactly once. The primary error is reported unless
// the legacy attempt produced a more specific taxonomy verdict.
func (p *Platform) Publish(ctx context.Context, account *core.LinkedAccount, post core.PostContent) (core.PublishResult, error) {
	text := strings.TrimSpace(post.Text)
	if text == "" {
		return core.PublishResult{}, core.NewContentRejectedError(core.PlatformLinkedIn, "post text is required")
	}
	author := "urn:li:person:" + strings.TrimSpace(account.PlatformAccountID)

	result, primaryErr := p.publishRest(ctx, account, author, text)
	if primaryErr == nil {
		return result, nil
	}

	result, legacyErr := p.publishLegacy(ctx, account, author, text)
	if legacyErr == nil {
		return result, nil
	}
	if moreSpecific(legacyErr, primaryErr) {
		return core.PublishResult{}, legacyErr
	}
	return core.PublishResult{}, primaryErr
}

type restPostRequest struct {
	Author       string `json:"author"`
	Commentary   string `json:"commentary"`
	Visibility   string `json:"visibility"`
	Distribution struct {
		FeedDistribution string `json:"feedDistribution"`
	} `json:"distribution"`
	LifecycleState string `json:"lifecycleState"`
}

func (p *Platform) publishRest(ctx context.Context, account *core.LinkedAccount, author, text string) (core.PublishResult, error) {
	request := restPostRequest{
		Author:         author,
		Commentary:     text,
		Visibility:     "PUBLIC",
		LifecycleState: "PUBLISHED",
	}
	request.Distribution.FeedDistribution = "MAIN_FEED"

	headers := map[string]string{
		"LinkedIn-Version":          apiVersion,
		"X-Restli-Protocol-Version": "2.0.0",
	}
	responseHeaders, err := p.PostJSON(ctx, postsURL, account.Credentials.AccessToken, headers, request, nil)
	if err != nil {
		return core.PublishResult{}, err
	}
	postID := ""
	if responseHeaders != nil {
		postID = strings.TrimSpace(responseHeaders.Get("X-RestLi-Id"))
	}
	return core.PublishResult{
		PostID: postID,
		Metadata: map[string]any{
			"platform": string(core.PlatformLinkedIn),
			"api":      "rest_posts",
		},
	}, nil
}

type ugcPostRequest struct {
	Author          string `json:"author"`
	LifecycleState  string `json:"lifecycleState"`
	SpecificContent struct {
		ShareContent struct {
			ShareCommentary struct {
				Text string `json:"text"`
			} `json:"shareCommentary"`
			ShareMediaCategory string `json:"shareMediaCategory"`
		} `json:"com.linkedin.ugc.ShareContent"`
	} `json:"specificContent"`
	Visibility struct {
		MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
	} `json:"visibility"`
}

type ugcPostResponse struct {
	ID string `json:"id"`
}

func (p *Platform) publishLegacy(ctx context.Context, account *core.LinkedAccount, author, text string) (core.PublishResult, error) {
	request := ugcPostRequest{
		Author:         author,
		LifecycleState: "PUBLISHED",
	}
	request.SpecificContent.ShareContent.ShareCommentary.Text = text
	request.SpecificContent.ShareContent.ShareMediaCategory = "NONE"
	request.Visibility.MemberNetworkVisibility = "PUBLIC"

	headers := map[string]string{
		"X-Restli-Protocol-Version": "2.0.0",
	}
	var decoded ugcPostResponse
	if _, err := p.PostJSON(ctx, ugcURL, account.Credentials.AccessToken, headers, request, &decoded); err != nil {
		return core.PublishResult{}, err
	}
	return core.PublishResult{
		PostID: strings.TrimSpace(decoded.ID),
		Metadata: map[string]any{
			"platform": string(core.PlatformLinkedIn),
			"api":      "ugc_posts",
		},
	}, nil
}

// moreSpecific reports whether the fallback error names a concrete
// taxonomy verdict while the primary one stayed generic.
func moreSpecific(candidate, baseline error) bool {
	if candidate == nil || baseline == nil {
		return false
	}
	specific := []string{
		core.ErrCodePermissionDenied,
		core.ErrCodeRateLimited,
		core.ErrCodeContentRejected,
		core.ErrCodeTokenExpired,
	}
	baselineSpecific := false
	candidateSpecific := false
	for _, code := range specific {
		if core.HasErrorCode(baseline, code) {
			baselineSpecific = true
		}
		if core.HasErrorCode(candidate, code) {
			candidateSpecific = true
		}
	}
	return candidateSpecific && !baselineSpecific
}

var _ core.PlatformClient = (*Platform)(nil)
