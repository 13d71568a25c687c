package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const DefaultRefreshLead = 5 * time.Minute

// AccountTokenState captures the access/refresh lifecycle flags
// derived from a linked account's credentials.
type AccountTokenState struct {
	ExpiresAt       *time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	IsExpired       bool
	IsExpiringSoon  bool
}

func ResolveTokenState(now time.Time, cred Credentials, lead time.Duration) AccountTokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if lead <= 0 {
		lead = DefaultRefreshLead
	}

	state := AccountTokenState{
		HasAccessToken:  strings.TrimSpace(cred.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(cred.RefreshToken) != "",
	}
	if cred.ExpiresAt == nil {
		return state
	}
	expiresAt := cred.ExpiresAt.UTC()
	state.ExpiresAt = &expiresAt
	if !expiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	state.IsExpiringSoon = !expiresAt.After(now.Add(lead))
	return state
}

// ShouldRefreshAccount reports whether a refresh must be attempted
// before the account's token is used. An unknown expiry counts as due:
// platforms that never report one are treated as short-lived rather
// than immortal. Refresh-token presence is deliberately not consulted
// here; an expiring account without one goes through the refresh path
// so it is demoted instead of handing a dead token to the platform.
func ShouldRefreshAccount(now time.Time, cred Credentials, lead time.Duration) bool {
	if cred.ExpiresAt == nil {
		return true
	}
	if lead <= 0 {
		lead = DefaultRefreshLead
	}
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	return !cred.ExpiresAt.UTC().After(now.Add(lead))
}

// GetFreshAccount loads the account and refreshes it first when the
// token is due. Accounts parked in needs_reauth or revoked never reach
// the platform.
func (s *Service) GetFreshAccount(ctx context.Context, accountID string) (account *LinkedAccount, err error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"account_id": accountID}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_fresh_account", err, fields)
	}()

	loaded, loadErr := s.loadAccount(ctx, accountID)
	if loadErr != nil {
		err = loadErr
		return nil, err
	}
	fields["platform"] = string(loaded.Platform)

	switch loaded.Status {
	case AccountStatusNeedsReauth:
		err = s.mapError(NewNeedsReauthError(loaded.ID))
		return nil, err
	case AccountStatusRevoked:
		err = s.mapError(goerrors.New("linked account is revoked", goerrors.CategoryConflict).
			WithTextCode(ErrCodeBadInput).
			WithMetadata(map[string]any{"account_id": loaded.ID}))
		return nil, err
	}

	if !ShouldRefreshAccount(s.now(), loaded.Credentials, s.config.RefreshLead()) {
		return loaded, nil
	}

	refreshed, refreshErr := s.Refresh(ctx, loaded.ID)
	if refreshErr != nil {
		err = refreshErr
		return nil, err
	}
	return refreshed, nil
}
