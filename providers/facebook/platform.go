// Package facebook links accounts that post through a parent page
// intermediary: the user authorizes once, the first managed page is
// captured as the parent entity, and publishing exchanges the user
// token for that page's token at post time.
package facebook

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cyobiorah/go-social-connect/core"
	"github.com/cyobiorah/go-social-connect/providers"
)

const (
	AuthURL  = "https://www.facebook.com/v19.0/dialog/oauth"
	TokenURL = "https://graph.facebook.com/v19.0/oauth/access_token"
	graphURL = "https://graph.facebook.com/v19.0"
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
	return []string{"pages_manage_posts", "pages_read_engagement", "pages_show_list"}
}

func New(cfg Config) (*Platform, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		// Long-lived user tokens run about 60 days and Facebook omits
		// expires_in on some grants.
		tokenTTL = 60 * 24 * time.Hour
	}
	base, err := providers.NewOAuth2Platform(providers.OAuth2Config{
		Platform:           core.PlatformFacebook,
		AuthURL:            AuthURL,
		TokenURL:           TokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		RedirectURI:        cfg.RedirectURI,
		Scopes:             scopes,
		ScopeSeparator:     ",",
		Traits:             core.PlatformTraits{},
		TokenTTL:           tokenTTL,
		HTTPClient:         cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Platform{OAuth2Platform: base}, nil
}

type meResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type accountsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

func (p *Platform) FetchProfile(ctx context.Context, accessToken string) (core.ProfileSnapshot, error) {
	var me meResponse
	if err := p.GetJSON(ctx, graphURL+"/me?fields=id,name", accessToken, nil, &me); err != nil {
		return core.ProfileSnapshot{}, err
	}
	snapshot := core.ProfileSnapshot{
		ExternalID:  strings.TrimSpace(me.ID),
		Username:    strings.TrimSpace(me.Name),
		DisplayName: strings.TrimSpace(me.Name),
	}

	var pages accountsResponse
	if err := p.GetJSON(ctx, graphURL+"/me/accounts?fields=id,name", accessToken, nil, &pages); err != nil {
		return core.ProfileSnapshot{}, err
	}
	if len(pages.Data) == 0 {
		return core.ProfileSnapshot{}, core.NewPermissionDeniedError(core.PlatformFacebook).
			WithMetadata(map[string]any{"reason": "no managed pages"})
	}
	snapshot.ParentAccountID = strings.TrimSpace(pages.Data[0].ID)
	snapshot.ParentName = strings.TrimSpace(pages.Data[0].Name)
	return snapshot, nil
}

type pageTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type feedResponse struct {
	ID string `json:"id"`
}

func (p *Platform) Publish(ctx context.Context, account *core.LinkedAccount, post core.PostContent) (core.PublishResult, error) {
	text := strings.TrimSpace(post.Text)
	if text == "" {
		return core.PublishResult{}, core.NewContentRejectedError(core.PlatformFacebook, "post text is required")
	}
	pageID := strings.TrimSpace(account.Profile.ParentAccountID)
	if pageID == "" {
		return core.PublishResult{}, core.NewPermissionDeniedError(core.PlatformFacebook).
			WithMetadata(map[string]any{"reason": "no parent page on record"})
	}

	// Page tokens are short-lived; resolve one from the user token per
	// post instead of persisting it.
	var pageToken pageTokenResponse
	if err := p.GetJSON(ctx, fmt.Sprintf("%s/%s?fields=access_token", graphURL, pageID), account.Credentials.AccessToken, nil, &pageToken); err != nil {
		return core.PublishResult{}, err
	}
	if strings.TrimSpace(pageToken.AccessToken) == "" {
		return core.PublishResult{}, core.NewPermissionDeniedError(core.PlatformFacebook).
			WithMetadata(map[string]any{"reason": "page token unavailable"})
	}

	payload := map[string]any{"message": text}
	if len(post.MediaURLs) > 0 {
		payload["link"] = strings.TrimSpace(post.MediaURLs[0])
	}
	var decoded feedResponse
	feedURL := fmt.Sprintf("%s/%s/feed?access_token=%s", graphURL, pageID, url.QueryEscape(pageToken.AccessToken))
	if _, err := p.PostJSON(ctx, feedURL, "", nil, payload, &decoded); err != nil {
		return core.PublishResult{}, err
	}
	return core.PublishResult{
		PostID: strings.TrimSpace(decoded.ID),
		Metadata: map[string]any{
			"platform": string(core.PlatformFacebook),
			"page_id":  pageID,
		},
	}, nil
}

var _ core.PlatformClient = (*Platform)(nil)
