package core

import (
	"testing"
	"time"
)

func TestParsePlatform(t *testing.T) {
	parsed, err := ParsePlatform("  LinkedIn ")
	if err != nil {
		t.Fatalf("parse linkedin: %v", err)
	}
	if parsed != PlatformLinkedIn {
		t.Fatalf("parsed = %q, want %q", parsed, PlatformLinkedIn)
	}

	if _, err := ParsePlatform("myspace"); err == nil {
		t.Fatalf("expected unknown platform to be rejected")
	}
}

func TestOwnerRefValidate(t *testing.T) {
	if err := (OwnerRef{UserID: "user_1"}).Validate(); err != nil {
		t.Fatalf("personal owner: %v", err)
	}
	if err := (OwnerRef{}).Validate(); err == nil {
		t.Fatalf("expected empty user id to be rejected")
	}
	if err := (OwnerRef{UserID: "user_1", TeamID: "team_1"}).Validate(); err == nil {
		t.Fatalf("expected team without organization to be rejected")
	}
	if err := (OwnerRef{UserID: "user_1", OrganizationID: "org_1", TeamID: "team_1"}).Validate(); err != nil {
		t.Fatalf("team owner: %v", err)
	}
}

func TestDeriveOwnershipScope(t *testing.T) {
	cases := []struct {
		name  string
		owner OwnerRef
		want  OwnershipScope
	}{
		{"personal", OwnerRef{UserID: "u"}, OwnershipScopePersonal},
		{"organization", OwnerRef{UserID: "u", OrganizationID: "o"}, OwnershipScopeOrganization},
		{"team", OwnerRef{UserID: "u", OrganizationID: "o", TeamID: "t"}, OwnershipScopeTeam},
	}
	for _, tc := range cases {
		if got := DeriveOwnershipScope(tc.owner); got != tc.want {
			t.Fatalf("%s: scope = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestAccountStatusTransitions(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	account := &LinkedAccount{Status: AccountStatusRevoked}
	if err := account.TransitionTo(AccountStatusActive, "", now); err == nil {
		t.Fatalf("expected revoked to be terminal")
	}

	account = &LinkedAccount{Status: AccountStatusNeedsReauth, LastError: "refresh token rejected"}
	if err := account.TransitionTo(AccountStatusActive, "", now); err != nil {
		t.Fatalf("needs_reauth -> active: %v", err)
	}
	if account.LastError != "" {
		t.Fatalf("expected activation to clear last error, got %q", account.LastError)
	}

	account = &LinkedAccount{Status: AccountStatusNeedsReauth}
	if err := account.TransitionTo(AccountStatusExpired, "", now); err == nil {
		t.Fatalf("expected needs_reauth -> expired to be rejected")
	}

	account = &LinkedAccount{Status: AccountStatusActive}
	if err := account.TransitionTo(AccountStatusActive, "noop", now); err != nil {
		t.Fatalf("same-status transition should be a no-op, got %v", err)
	}
	if !account.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at to move on no-op transition")
	}
}

func TestLinkedAccountValidate_ScopeCoupling(t *testing.T) {
	base := LinkedAccount{
		ID:                "acc_1",
		Platform:          PlatformTwitter,
		PlatformAccountID: "ext_1",
		Owner:             OwnerRef{UserID: "user_1"},
		Scope:             OwnershipScopePersonal,
		Status:            AccountStatusActive,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid personal account: %v", err)
	}

	crossed := base
	crossed.Owner.OrganizationID = "org_1"
	if err := crossed.Validate(); err == nil {
		t.Fatalf("expected personal scope with org reference to be rejected")
	}

	team := base
	team.Scope = OwnershipScopeTeam
	team.Owner = OwnerRef{UserID: "user_1", OrganizationID: "org_1", TeamID: "team_1"}
	if err := team.Validate(); err != nil {
		t.Fatalf("valid team account: %v", err)
	}
}
