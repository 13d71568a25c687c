package tiktok

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/cyobiorah/go-social-connect/core"
	"github.com/cyobiorah/go-social-connect/providers/devkit"
)

func newTestPlatform(t *testing.T, client *devkit.FakeHTTPClient) *Platform {
	t.Helper()
	platform, err := New(Config{
		ClientKey:    "key_tt",
		ClientSecret: "secret_tt",
		RedirectURI:  "https://app.example/callback/tiktok",
		HTTPClient:   client,
	})
	if err != nil {
		t.Fatalf("new platform: %v", err)
	}
	return platform
}

func TestBuildAuthorizationURL_TikTokQuirks(t *testing.T) {
	platform := newTestPlatform(t, devkit.NewFakeHTTPClient())
	rawURL, err := platform.BuildAuthorizationURL(core.AuthorizationRequest{
		State:         "state_1",
		CodeChallenge: "challenge_1",
	})
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	query := parsed.Query()
	if query.Get("client_key") != "key_tt" {
		t.Fatalf("client_key = %q", query.Get("client_key"))
	}
	if query.Get("client_id") != "" {
		t.Fatalf("client_id must be absent for tiktok")
	}
	if query.Get("scope") != strings.Join(DefaultScopes(), ",") {
		t.Fatalf("scope = %q, want comma-joined defaults", query.Get("scope"))
	}
	if query.Get("code_challenge_method") != "S256" {
		t.Fatalf("pkce method = %q", query.Get("code_challenge_method"))
	}
}

func TestFetchProfile(t *testing.T) {
	client := devkit.NewFakeHTTPClient(devkit.HTTPScript{
		Status: 200,
		Body: `{"data":{"user":{"open_id":"tt_open_1","display_name":"creator","follower_count":1200,
			"avatar_url":"https://cdn.example/tt.jpg","profile_deep_link":"https://tiktok.com/@creator"}},
			"error":{"code":"ok","message":""}}`,
	})
	platform := newTestPlatform(t, client)

	profile, err := platform.FetchProfile(context.Background(), "at_tt")
	if err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if profile.ExternalID != "tt_open_1" {
		t.Fatalf("external id = %q", profile.ExternalID)
	}
	if profile.FollowerCount != 1200 {
		t.Fatalf("follower count = %d", profile.FollowerCount)
	}
}

func TestFetchProfile_ErrorEnvelope(t *testing.T) {
	client := devkit.NewFakeHTTPClient(devkit.HTTPScript{
		Status: 200,
		Body:   `{"data":{},"error":{"code":"access_token_invalid","message":"token is bad"}}`,
	})
	platform := newTestPlatform(t, client)

	_, err := platform.FetchProfile(context.Background(), "at_tt")
	if err == nil {
		t.Fatalf("expected envelope error to surface")
	}
}

func testAccount() *core.LinkedAccount {
	return &core.LinkedAccount{
		ID:                "acc_tt",
		Platform:          core.PlatformTikTok,
		PlatformAccountID: "tt_open_1",
		Credentials:       core.Credentials{AccessToken: "at_tt"},
	}
}

func TestPublish_VideoInit(t *testing.T) {
	client := devkit.NewFakeHTTPClient(devkit.HTTPScript{
		Status: 200,
		Body:   `{"data":{"publish_id":"pub_42"},"error":{"code":"ok","message":""}}`,
	})
	platform := newTestPlatform(t, client)

	result, err := platform.Publish(context.Background(), testAccount(), core.PostContent{
		Text:      "new clip",
		MediaURLs: []string{"https://cdn.example/video.mp4"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.PostID != "pub_42" {
		t.Fatalf("post id = %q", result.PostID)
	}

	requests := client.Requests()
	if len(requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(requests))
	}
	body := string(requests[0].Body)
	if !strings.Contains(body, `"PULL_FROM_URL"`) {
		t.Fatalf("request body missing pull-from-url source: %s", body)
	}
	if !strings.Contains(body, "https://cdn.example/video.mp4") {
		t.Fatalf("request body missing video url: %s", body)
	}
}

func TestPublish_RequiresMediaURL(t *testing.T) {
	client := devkit.NewFakeHTTPClient()
	platform := newTestPlatform(t, client)

	_, err := platform.Publish(context.Background(), testAccount(), core.PostContent{Text: "caption only"})
	if err == nil || !core.HasErrorCode(err, core.ErrCodeContentRejected) {
		t.Fatalf("error = %v, want %s", err, core.ErrCodeContentRejected)
	}
	if len(client.Requests()) != 0 {
		t.Fatalf("text-only post must not hit the network")
	}
}

func TestPublish_ErrorEnvelopeMapping(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"access_token_invalid", core.ErrCodeTokenExpired},
		{"scope_not_authorized", core.ErrCodePermissionDenied},
		{"rate_limit_exceeded", core.ErrCodeRateLimited},
		{"spam_risk_too_many_posts", core.ErrCodeContentRejected},
		{"internal_error", core.ErrCodeAPIError},
	}
	for _, tc := range cases {
		client := devkit.NewFakeHTTPClient(devkit.HTTPScript{
			Status: 200,
			Body:   `{"data":{},"error":{"code":"` + tc.code + `","message":"detail"}}`,
		})
		platform := newTestPlatform(t, client)

		_, err := platform.Publish(context.Background(), testAccount(), core.PostContent{
			Text:      "clip",
			MediaURLs: []string{"https://cdn.example/v.mp4"},
		})
		if err == nil || !core.HasErrorCode(err, tc.want) {
			t.Fatalf("%s: error = %v, want %s", tc.code, err, tc.want)
		}
	}
}
