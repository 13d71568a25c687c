package core

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestHasErrorCode(t *testing.T) {
	err := NewStateInvalidError("not found")
	if !HasErrorCode(err, ErrCodeStateInvalid) {
		t.Fatalf("expected state invalid code")
	}
	if HasErrorCode(err, ErrCodeAlreadyLinked) {
		t.Fatalf("unexpected code match")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !HasErrorCode(wrapped, ErrCodeStateInvalid) {
		t.Fatalf("expected code to survive wrapping")
	}

	if HasErrorCode(nil, ErrCodeStateInvalid) {
		t.Fatalf("nil error must not match")
	}
	if HasErrorCode(fmt.Errorf("plain"), ErrCodeStateInvalid) {
		t.Fatalf("plain error must not match")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", NewRateLimitedError(PlatformTwitter, time.Minute), true},
		{"transient", NewTransientError("socket reset"), true},
		{"refresh lock contention", newTaxonomyError("refresh lock already held", goerrors.CategoryConflict, ErrCodeRefreshLocked), true},
		{"content rejected", NewContentRejectedError(PlatformTwitter, "spam"), false},
		{"needs reauth", NewNeedsReauthError("acc_1"), false},
		{"permission denied", NewPermissionDeniedError(PlatformTwitter), false},
		{"plain error", fmt.Errorf("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTaxonomyErrorsCarryHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  *goerrors.Error
		want int
	}{
		{"state invalid", NewStateInvalidError(""), http.StatusUnauthorized},
		{"already linked", NewAlreadyLinkedError(PlatformTwitter, "ext", OwnerRef{UserID: "u"}, time.Now()), http.StatusConflict},
		{"permission denied", NewPermissionDeniedError(PlatformTwitter), http.StatusForbidden},
		{"rate limited", NewRateLimitedError(PlatformTwitter, 0), http.StatusTooManyRequests},
		{"content rejected", NewContentRejectedError(PlatformTwitter, ""), http.StatusBadRequest},
		{"api error", NewAPIError(PlatformTwitter, 502, "bad gateway"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.want {
			t.Fatalf("%s: http status = %d, want %d", tc.name, tc.err.Code, tc.want)
		}
	}
}

func TestNewAlreadyLinkedError_Metadata(t *testing.T) {
	linkedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := NewAlreadyLinkedError(PlatformLinkedIn, "ext_9", OwnerRef{
		UserID:         "user_1",
		OrganizationID: "org_1",
	}, linkedAt)

	if err.Metadata["platform"] != "linkedin" {
		t.Fatalf("platform metadata = %v", err.Metadata["platform"])
	}
	if err.Metadata["owner_id"] != "user_1" {
		t.Fatalf("owner metadata = %v", err.Metadata["owner_id"])
	}
	if err.Metadata["organization_id"] != "org_1" {
		t.Fatalf("organization metadata = %v", err.Metadata["organization_id"])
	}
	if _, ok := err.Metadata["team_id"]; ok {
		t.Fatalf("team metadata must be omitted when empty")
	}
	if err.Metadata["linked_at"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("linked_at metadata = %v", err.Metadata["linked_at"])
	}
}

func TestConnectErrorMapper_SniffsPlainErrors(t *testing.T) {
	mapped := connectErrorMapper(fmt.Errorf("core: platform not registered: youtube"))
	if mapped.TextCode != ErrCodePlatformNotFound {
		t.Fatalf("text code = %q, want %q", mapped.TextCode, ErrCodePlatformNotFound)
	}

	mapped = connectErrorMapper(fmt.Errorf("core: refresh lock already held for account \"acc\""))
	if mapped.TextCode != ErrCodeRefreshLocked {
		t.Fatalf("text code = %q, want %q", mapped.TextCode, ErrCodeRefreshLocked)
	}

	mapped = connectErrorMapper(fmt.Errorf("core: owner id is required"))
	if mapped.TextCode != ErrCodeBadInput {
		t.Fatalf("text code = %q, want %q", mapped.TextCode, ErrCodeBadInput)
	}
}

func TestConnectErrorMapper_PreservesRichErrors(t *testing.T) {
	source := NewNeedsReauthError("acc_1")
	mapped := connectErrorMapper(fmt.Errorf("refresh: %w", source))
	if mapped.TextCode != ErrCodeNeedsReauth {
		t.Fatalf("text code = %q, want %q", mapped.TextCode, ErrCodeNeedsReauth)
	}
}
