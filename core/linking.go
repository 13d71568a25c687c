package core

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// linkAccount enforces one platform account, one owner. Reconnection
// by the same owner is an idempotent credential update; a different
// owner gets the conflict; otherwise the insert re-checks uniqueness
// inside its transaction. Losing that race degrades to whichever of
// the first two paths applies to the winner's record.
func (s *Service) linkAccount(ctx context.Context, state HandshakeState, tokens TokenSet, profile ProfileSnapshot) (*LinkedAccount, error) {
	if s.accounts == nil {
		return nil, NewTransientError("account repository is not configured")
	}
	externalID := strings.TrimSpace(profile.ExternalID)
	if externalID == "" {
		return nil, NewProfileFetchError(state.Platform, nil).
			WithMetadata(map[string]any{"reason": "missing external account id"})
	}

	existing, err := s.accounts.FindByPlatformAccount(ctx, state.Platform, externalID, "")
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.applyExistingAccount(ctx, existing, state.Owner, tokens, profile)
	}

	account, err := s.buildLinkedAccount(state, tokens, profile)
	if err != nil {
		return nil, err
	}
	result, err := s.accounts.InsertIfAbsent(ctx, account)
	if err != nil {
		return nil, err
	}
	if result.Inserted {
		inserted := result.Account
		return &inserted, nil
	}
	winner := result.Account
	return s.applyExistingAccount(ctx, &winner, state.Owner, tokens, profile)
}

func (s *Service) applyExistingAccount(ctx context.Context, existing *LinkedAccount, owner OwnerRef, tokens TokenSet, profile ProfileSnapshot) (*LinkedAccount, error) {
	if !sameOwner(existing.Owner, owner) {
		return nil, NewAlreadyLinkedError(existing.Platform, existing.PlatformAccountID, existing.Owner, existing.LinkedAt)
	}

	now := s.now()
	status := AccountStatusActive
	lastError := ""
	fields := AccountFields{
		Status:          &status,
		LastError:       &lastError,
		AccessToken:     &tokens.AccessToken,
		ExpiresAt:       tokens.ExpiresAt,
		LastRefreshedAt: &now,
		Profile:         &profile,
	}
	if strings.TrimSpace(tokens.RefreshToken) != "" {
		fields.RefreshToken = &tokens.RefreshToken
	}
	if strings.TrimSpace(tokens.IDToken) != "" {
		fields.IDToken = &tokens.IDToken
	}
	return s.accounts.UpdateFields(ctx, existing.ID, fields)
}

func (s *Service) buildLinkedAccount(state HandshakeState, tokens TokenSet, profile ProfileSnapshot) (LinkedAccount, error) {
	now := s.now()
	account := LinkedAccount{
		ID:                uuid.NewString(),
		Platform:          state.Platform,
		PlatformAccountID: strings.TrimSpace(profile.ExternalID),
		Owner:             state.Owner,
		Scope:             DeriveOwnershipScope(state.Owner),
		Status:            AccountStatusActive,
		Credentials: Credentials{
			AccessToken:     tokens.AccessToken,
			RefreshToken:    tokens.RefreshToken,
			IDToken:         tokens.IDToken,
			ExpiresAt:       tokens.ExpiresAt,
			LastRefreshedAt: now,
		},
		Profile: profile,
		Permissions: Permissions{
			CanPost:     true,
			CanSchedule: true,
			CanAnalyze:  true,
		},
		LinkedAt:  now,
		UpdatedAt: now,
	}
	if err := account.Validate(); err != nil {
		return LinkedAccount{}, err
	}
	return account, nil
}

func sameOwner(a, b OwnerRef) bool {
	return strings.TrimSpace(a.UserID) == strings.TrimSpace(b.UserID) &&
		strings.TrimSpace(a.OrganizationID) == strings.TrimSpace(b.OrganizationID) &&
		strings.TrimSpace(a.TeamID) == strings.TrimSpace(b.TeamID)
}
