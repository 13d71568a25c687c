// Package youtube links video-hosting channels through Google OAuth.
// Google only issues a refresh token when the consent screen runs with
// access_type=offline and prompt=consent, so both ride on every
// authorization URL. Publishing uploads the video fetched from the
// post's media URL through the resumable upload API.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cyobiorah/go-social-connect/core"
	"github.com/cyobiorah/go-social-connect/providers"
)

const (
	AuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL    = "https://oauth2.googleapis.com/token"
	channelsURL = "https://www.googleapis.com/youtube/v3/channels?part=snippet,statistics&mine=true"
	uploadURL   = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status"
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
	httpClient providers.HTTPDoer
}

func DefaultScopes() []string {
	return []string{
		"https://www.googleapis.com/auth/youtube.upload",
		"https://www.googleapis.com/auth/youtube.readonly",
	}
}

func New(cfg Config) (*Platform, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base, err := providers.NewOAuth2Platform(providers.OAuth2Config{
		Platform:           core.PlatformYouTube,
		AuthURL:            AuthURL,
		TokenURL:           TokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		RedirectURI:        cfg.RedirectURI,
		Scopes:             scopes,
		ExtraAuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
		Traits:     core.PlatformTraits{},
		TokenTTL:   cfg.TokenTTL,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}
	return &Platform{OAuth2Platform: base, httpClient: httpClient}, nil
}

type channelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title      string `json:"title"`
			CustomURL  string `json:"customUrl"`
			Thumbnails struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (p *Platform) FetchProfile(ctx context.Context, accessToken string) (core.ProfileSnapshot, error) {
	var decoded channelsResponse
	if err := p.GetJSON(ctx, channelsURL, accessToken, nil, &decoded); err != nil {
		return core.ProfileSnapshot{}, err
	}
	if len(decoded.Items) == 0 {
		return core.ProfileSnapshot{}, core.NewAPIError(core.PlatformYouTube, 200, "no channel on this account")
	}
	channel := decoded.Items[0]
	snapshot := core.ProfileSnapshot{
		ExternalID:  strings.TrimSpace(channel.ID),
		Username:    strings.TrimSpace(channel.Snippet.CustomURL),
		DisplayName: strings.TrimSpace(channel.Snippet.Title),
		AvatarURL:   strings.TrimSpace(channel.Snippet.Thumbnails.Default.URL),
	}
	if snapshot.ExternalID != "" {
		snapshot.ProfileURL = "https://www.youtube.com/channel/" + snapshot.ExternalID
	}
	fmt.Sscanf(channel.Statistics.SubscriberCount, "%d", &snapshot.FollowerCount)
	return snapshot, nil
}

type videoMetadata struct {
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

type videoResponse struct {
	ID string `json:"id"`
}

// Publish opens a resumable upload session, then streams the video
// fetched from the first media URL into it.
func (p *Platform) Publish(ctx context.Context, account *core.LinkedAccount, post core.PostContent) (core.PublishResult, error) {
	if len(post.MediaURLs) == 0 {
		return core.PublishResult{}, core.NewContentRejectedError(core.PlatformYouTube, "a video url is required")
	}
	title := strings.TrimSpace(post.Title)
	if title == "" {
		title = strings.TrimSpace(post.Text)
	}
	if title == "" {
		return core.PublishResult{}, core.NewContentRejectedError(core.PlatformYouTube, "a video title is required")
	}

	metadata := videoMetadata{}
	metadata.Snippet.Title = title
	metadata.Snippet.Description = strings.TrimSpace(post.Text)
	metadata.Status.PrivacyStatus = "public"

	sessionHeaders, err := p.PostJSON(ctx, uploadURL, account.Credentials.AccessToken, nil, metadata, nil)
	if err != nil {
		return core.PublishResult{}, err
	}
	sessionURL := ""
	if sessionHeaders != nil {
		sessionURL = strings.TrimSpace(sessionHeaders.Get("Location"))
	}
	if sessionURL == "" {
		return core.PublishResult{}, core.NewAPIError(core.PlatformYouTube, 200, "upload session missing location header")
	}

	videoID, uploadErr := p.streamVideo(ctx, account.Credentials.AccessToken, sessionURL, strings.TrimSpace(post.MediaURLs[0]))
	if uploadErr != nil {
		return core.PublishResult{}, uploadErr
	}
	return core.PublishResult{
		PostID: videoID,
		Metadata: map[string]any{
			"platform": string(core.PlatformYouTube),
		},
	}, nil
}

func (p *Platform) streamVideo(ctx context.Context, accessToken, sessionURL, mediaURL string) (string, error) {
	fetchReq, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", err
	}
	fetchResp, err := p.httpClient.Do(fetchReq)
	if err != nil {
		return "", core.NewTransientError(fmt.Sprintf("fetch video source: %v", err))
	}
	defer fetchResp.Body.Close()
	if fetchResp.StatusCode < http.StatusOK || fetchResp.StatusCode >= http.StatusMultipleChoices {
		return "", core.NewContentRejectedError(core.PlatformYouTube, fmt.Sprintf("video source returned %d", fetchResp.StatusCode))
	}

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, fetchResp.Body)
	if err != nil {
		return "", err
	}
	uploadReq.Header.Set("Authorization", "Bearer "+accessToken)
	if fetchResp.ContentLength > 0 {
		uploadReq.ContentLength = fetchResp.ContentLength
	}

	uploadResp, err := p.httpClient.Do(uploadReq)
	if err != nil {
		return "", core.NewTransientError(fmt.Sprintf("video upload failed: %v", err))
	}
	defer uploadResp.Body.Close()
	if uploadResp.StatusCode < http.StatusOK || uploadResp.StatusCode >= http.StatusMultipleChoices {
		return "", p.ClassifyAPIError(uploadResp.StatusCode, nil, uploadResp.Header)
	}

	var decoded videoResponse
	if decodeErr := decodeJSONBody(uploadResp, &decoded); decodeErr != nil {
		return "", decodeErr
	}
	return strings.TrimSpace(decoded.ID), nil
}

func decodeJSONBody(resp *http.Response, out any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return core.NewTransientError(fmt.Sprintf("read upload response: %v", err))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

var _ core.PlatformClient = (*Platform)(nil)
