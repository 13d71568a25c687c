package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRefreshMaxAttempts    = 3
	defaultRefreshInitialBackoff = 500 * time.Millisecond
	defaultRefreshMaxBackoff     = 10 * time.Second
	defaultRefreshLockTTL        = 30 * time.Second
)

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// Refresh exchanges the stored refresh token for fresh credentials.
// The refresh token rotates only when the platform issues a new one;
// an invalid_grant class failure demotes the account to needs_reauth
// and is never retried, anything else is reported transient with the
// record left untouched.
func (s *Service) Refresh(ctx context.Context, accountID string) (account *LinkedAccount, err error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"account_id": accountID}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh", err, fields)
	}()

	loaded, loadErr := s.loadAccount(ctx, accountID)
	if loadErr != nil {
		err = loadErr
		return nil, err
	}
	fields["platform"] = string(loaded.Platform)

	if loaded.Status == AccountStatusNeedsReauth {
		err = s.mapError(NewNeedsReauthError(loaded.ID))
		return nil, err
	}
	if loaded.Status == AccountStatusRevoked {
		err = s.mapError(goerrors.New("linked account is revoked", goerrors.CategoryConflict).
			WithTextCode(ErrCodeBadInput).
			WithMetadata(map[string]any{"account_id": loaded.ID}))
		return nil, err
	}
	if strings.TrimSpace(loaded.Credentials.RefreshToken) == "" {
		err = s.demoteToNeedsReauth(ctx, loaded, fmt.Errorf("no refresh token on record"))
		return nil, err
	}

	client, resolveErr := s.resolvePlatform(loaded.Platform)
	if resolveErr != nil {
		err = resolveErr
		return nil, err
	}

	unlock := func() {}
	if s.accountLocker != nil {
		handle, lockErr := s.accountLocker.Acquire(ctx, loaded.ID, defaultRefreshLockTTL)
		if lockErr != nil {
			err = s.mapError(lockErr)
			return nil, err
		}
		unlock = func() { _ = handle.Unlock(ctx) }
	}
	defer unlock()

	tokens, refreshErr := client.Refresh(ctx, loaded.Credentials)
	if refreshErr != nil {
		if isInvalidGrantError(refreshErr) {
			err = s.demoteToNeedsReauth(ctx, loaded, refreshErr)
			return nil, err
		}
		err = s.mapError(newTaxonomyWrap(refreshErr, "token refresh failed", goerrors.CategoryOperation, ErrCodeTransient).
			WithMetadata(map[string]any{
				"platform":   string(loaded.Platform),
				"account_id": loaded.ID,
			}))
		return nil, err
	}

	now := s.now()
	status := AccountStatusActive
	lastError := ""
	update := AccountFields{
		Status:          &status,
		LastError:       &lastError,
		AccessToken:     &tokens.AccessToken,
		ExpiresAt:       tokens.ExpiresAt,
		LastRefreshedAt: &now,
	}
	if strings.TrimSpace(tokens.RefreshToken) != "" {
		update.RefreshToken = &tokens.RefreshToken
	}
	if strings.TrimSpace(tokens.IDToken) != "" {
		update.IDToken = &tokens.IDToken
	}
	updated, updateErr := s.accounts.UpdateFields(ctx, loaded.ID, update)
	if updateErr != nil {
		err = s.mapError(updateErr)
		return nil, err
	}
	return updated, nil
}

func (s *Service) demoteToNeedsReauth(ctx context.Context, account *LinkedAccount, source error) error {
	reason := "refresh token rejected"
	if source != nil {
		reason = strings.TrimSpace(source.Error())
	}
	status := AccountStatusNeedsReauth
	if _, updateErr := s.accounts.UpdateFields(ctx, account.ID, AccountFields{
		Status:    &status,
		LastError: &reason,
	}); updateErr != nil {
		s.logError(ctx, "needs_reauth demotion failed", map[string]any{
			"account_id": account.ID,
			"error":      updateErr.Error(),
		})
	}
	return s.mapError(NewNeedsReauthError(account.ID))
}

type RefreshRunResult struct {
	Attempts    int
	NeedsReauth bool
}

type RefreshRunOptions struct {
	MaxAttempts int
}

// RunRefreshWithRetry drives Refresh with backoff for transient
// failures. Needs-reauth outcomes stop the loop immediately.
func (s *Service) RunRefreshWithRetry(ctx context.Context, accountID string, opts RefreshRunOptions) (RefreshRunResult, error) {
	if s == nil {
		return RefreshRunResult{}, fmt.Errorf("core: service is nil")
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultRefreshMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := s.Refresh(ctx, accountID)
		if err == nil {
			return RefreshRunResult{Attempts: attempt}, nil
		}
		lastErr = err

		if HasErrorCode(err, ErrCodeNeedsReauth) {
			return RefreshRunResult{Attempts: attempt, NeedsReauth: true}, err
		}
		if !IsRetryable(err) || attempt == maxAttempts {
			return RefreshRunResult{Attempts: attempt}, err
		}

		delay := defaultRefreshInitialBackoff
		if s.refreshBackoffScheduler != nil {
			delay = s.refreshBackoffScheduler.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return RefreshRunResult{Attempts: attempt}, s.mapError(waitErr)
		}
	}
	return RefreshRunResult{Attempts: maxAttempts}, lastErr
}

// isInvalidGrantError detects the refresh failures that mean the grant
// itself is dead: platform invalid_grant responses and 401s.
func isInvalidGrantError(err error) bool {
	if err == nil {
		return false
	}
	if HasErrorCode(err, ErrCodeNeedsReauth) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryAuth {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid refresh token") ||
		strings.Contains(msg, "reauthorization required")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type MemoryAccountLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryAccountLocker() *MemoryAccountLocker {
	return &MemoryAccountLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryAccountLocker) Acquire(_ context.Context, accountID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: account locker is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("core: account id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultRefreshLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[accountID]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: refresh lock already held for account %q", accountID)
	}
	l.locks[accountID] = now.Add(ttl)
	return &memoryLockHandle{locker: l, accountID: accountID}, nil
}

type memoryLockHandle struct {
	locker    *MemoryAccountLocker
	accountID string
	once      sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.accountID)
		h.locker.mu.Unlock()
	})
	return nil
}

var _ AccountLocker = (*MemoryAccountLocker)(nil)
