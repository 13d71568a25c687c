package twitter

import (
	"context"
	"strings"
	"testing"

	"github.com/cyobiorah/go-social-connect/core"
	"github.com/cyobiorah/go-social-connect/providers/devkit"
)

func newTestPlatform(t *testing.T, client *devkit.FakeHTTPClient) *Platform {
	t.Helper()
	platform, err := New(Config{
		ClientID:     "client_tw",
		ClientSecret: "secret_tw",
		RedirectURI:  "https://app.example/callback/twitter",
		HTTPClient:   client,
	})
	if err != nil {
		t.Fatalf("new platform: %v", err)
	}
	return platform
}

func TestFetchProfile(t *testing.T) {
	client := devkit.NewFakeHTTPClient(devkit.HTTPScript{
		Status: 200,
		Body:   `{"data":{"id":"tw_1","username":"handle","name":"Pat Example","public_metrics":{"followers_count":42}}}`,
	})
	platform := newTestPlatform(t, client)

	profile, err := platform.FetchProfile(context.Background(), "at_tw")
	if err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if profile.ExternalID != "tw_1" || profile.Username != "handle" {
		t.Fatalf("profile = %+v", profile)
	}
	if profile.FollowerCount != 42 {
		t.Fatalf("follower count = %d", profile.FollowerCount)
	}
	if profile.ProfileURL != "https://twitter.com/handle" {
		t.Fatalf("profile url = %q", profile.ProfileURL)
	}

	requests := client.Requests()
	if len(requests) != 1 || !strings.Contains(requests[0].URL, "/2/users/me") {
		t.Fatalf("requests = %+v", requests)
	}
	if got := requests[0].Header.Get("Authorization"); got != "Bearer at_tw" {
		t.Fatalf("authorization = %q", got)
	}
}

func TestPublish(t *testing.T) {
	client := devkit.NewFakeHTTPClient(devkit.HTTPScript{
		Status: 201,
		Body:   `{"data":{"id":"tweet_9"}}`,
	})
	platform := newTestPlatform(t, client)

	account := &core.LinkedAccount{
		ID:          "acc_tw",
		Platform:    core.PlatformTwitter,
		Credentials: core.Credentials{AccessToken: "at_tw"},
	}
	result, err := platform.Publish(context.Background(), account, core.PostContent{Text: "  hello world  "})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.PostID != "tweet_9" {
		t.Fatalf("post id = %q", result.PostID)
	}

	requests := client.Requests()
	if len(requests) != 1 || !strings.Contains(requests[0].URL, "/2/tweets") {
		t.Fatalf("requests = %+v", requests)
	}
	if !strings.Contains(string(requests[0].Body), `"text":"hello world"`) {
		t.Fatalf("tweet body = %s, want trimmed text", requests[0].Body)
	}
}

func TestPublish_EmptyTextRejectedBeforeNetwork(t *testing.T) {
	client := devkit.NewFakeHTTPClient()
	platform := newTestPlatform(t, client)

	account := &core.LinkedAccount{Credentials: core.Credentials{AccessToken: "at_tw"}}
	_, err := platform.Publish(context.Background(), account, core.PostContent{Text: "   "})
	if err == nil || !core.HasErrorCode(err, core.ErrCodeContentRejected) {
		t.Fatalf("error = %v, want %s", err, core.ErrCodeContentRejected)
	}
	if len(client.Requests()) != 0 {
		t.Fatalf("empty text must not hit the network")
	}
}
