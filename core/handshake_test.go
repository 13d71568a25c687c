package core

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"
)

func TestStateTokenManager_ConsumeIsSingleUse(t *testing.T) {
	store := newMemoryStateStore()
	manager := NewStateTokenManager(store, time.Minute)
	owner := OwnerRef{UserID: "user_1"}

	ticket, err := manager.Issue(context.Background(), PlatformTwitter, owner, IssueOptions{PKCE: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ticket.State == "" {
		t.Fatalf("expected a state token")
	}

	state, err := manager.Consume(context.Background(), ticket.State)
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if state.Owner.UserID != "user_1" {
		t.Fatalf("owner user id = %q, want user_1", state.Owner.UserID)
	}
	if state.CodeVerifier != ticket.CodeVerifier {
		t.Fatalf("code verifier did not round-trip")
	}

	if _, err := manager.Consume(context.Background(), ticket.State); err == nil {
		t.Fatalf("expected replayed state token to be rejected")
	} else if !HasErrorCode(err, ErrCodeStateInvalid) {
		t.Fatalf("replay error code = %v, want %s", err, ErrCodeStateInvalid)
	}
}

func TestStateTokenManager_ExpiredStateLooksLikeMissingState(t *testing.T) {
	store := newMemoryStateStore()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store.nowFn = func() time.Time { return now }
	manager := NewStateTokenManager(store, 10*time.Minute)

	ticket, err := manager.Issue(context.Background(), PlatformTwitter, OwnerRef{UserID: "user_1"}, IssueOptions{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(11 * time.Minute)
	_, err = manager.Consume(context.Background(), ticket.State)
	if err == nil {
		t.Fatalf("expected expired state to be rejected")
	}
	if !HasErrorCode(err, ErrCodeStateInvalid) {
		t.Fatalf("expiry error code = %v, want %s", err, ErrCodeStateInvalid)
	}
}

func TestStateTokenManager_IssueWithoutPKCELeavesVerifierEmpty(t *testing.T) {
	manager := NewStateTokenManager(newMemoryStateStore(), time.Minute)
	ticket, err := manager.Issue(context.Background(), PlatformFacebook, OwnerRef{UserID: "user_1"}, IssueOptions{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ticket.CodeVerifier != "" || ticket.CodeChallenge != "" {
		t.Fatalf("expected no pkce material, got verifier=%q challenge=%q", ticket.CodeVerifier, ticket.CodeChallenge)
	}
}

func TestGeneratePKCEPair_ChallengeMatchesVerifier(t *testing.T) {
	verifier, challenge, err := generatePKCEPair()
	if err != nil {
		t.Fatalf("generate pkce pair: %v", err)
	}
	if len(verifier) != 64 {
		t.Fatalf("verifier length = %d, want 64", len(verifier))
	}
	digest := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(digest[:])
	if challenge != want {
		t.Fatalf("challenge = %q, want %q", challenge, want)
	}
}

func TestEchoState_RoundTrip(t *testing.T) {
	owner := OwnerRef{UserID: "user_1", OrganizationID: "org_9", TeamID: "team_4"}
	encoded, err := EncodeEchoState(owner)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeEchoState(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != owner {
		t.Fatalf("decoded owner = %+v, want %+v", decoded, owner)
	}
}

func TestDecodeEchoState_AcceptsPaddedBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"uid":"user_1"}`))
	decoded, err := DecodeEchoState(encoded)
	if err != nil {
		t.Fatalf("decode padded: %v", err)
	}
	if decoded.UserID != "user_1" {
		t.Fatalf("user id = %q, want user_1", decoded.UserID)
	}
}

func TestDecodeEchoState_RejectsGarbage(t *testing.T) {
	for _, state := range []string{"", "not base64 !!", base64.RawURLEncoding.EncodeToString([]byte(`{"oid":"org"}`))} {
		if _, err := DecodeEchoState(state); err == nil {
			t.Fatalf("expected decode failure for %q", state)
		}
	}
}
