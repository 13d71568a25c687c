package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Publish posts content through the account's platform client. The
// account is freshened first so a dead grant aborts before any network
// post; a token-expired rejection gets exactly one transparent
// refresh-and-retry.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (result PublishResult, err error) {
	if s == nil {
		return PublishResult{}, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"account_id": req.AccountID}
	defer func() {
		s.observeOperation(ctx, startedAt, "publish", err, fields)
	}()

	if strings.TrimSpace(req.Post.Text) == "" && len(req.Post.MediaURLs) == 0 {
		err = s.mapError(fmt.Errorf("core: post content is required"))
		return PublishResult{}, err
	}

	account, freshErr := s.GetFreshAccount(ctx, req.AccountID)
	if freshErr != nil {
		err = freshErr
		return PublishResult{}, err
	}
	fields["platform"] = string(account.Platform)

	if !account.Permissions.CanPost {
		err = s.mapError(NewPermissionDeniedError(account.Platform).
			WithMetadata(map[string]any{"account_id": account.ID}))
		return PublishResult{}, err
	}

	client, resolveErr := s.resolvePlatform(account.Platform)
	if resolveErr != nil {
		err = resolveErr
		return PublishResult{}, err
	}

	published, publishErr := client.Publish(ctx, account, req.Post)
	if publishErr != nil && HasErrorCode(publishErr, ErrCodeTokenExpired) {
		// The platform disagrees with our expiry bookkeeping. Refresh
		// once and retry; a second rejection surfaces as-is.
		refreshed, refreshErr := s.Refresh(ctx, account.ID)
		if refreshErr != nil {
			err = refreshErr
			return PublishResult{}, err
		}
		account = refreshed
		published, publishErr = client.Publish(ctx, account, req.Post)
	}
	if publishErr != nil {
		if HasErrorCode(publishErr, ErrCodePermissionDenied) {
			s.downgradePostPermission(ctx, account, publishErr)
		}
		err = s.mapError(publishErr)
		return PublishResult{}, err
	}

	fields["post_id"] = published.PostID
	return published, nil
}

// downgradePostPermission records a platform permission rejection so
// the routing layer stops offering the account for posting until the
// user reconnects with the right scopes.
func (s *Service) downgradePostPermission(ctx context.Context, account *LinkedAccount, source error) {
	if s.accounts == nil {
		return
	}
	canPost := false
	status := AccountStatusError
	reason := "platform rejected post for missing permissions"
	if source != nil {
		reason = strings.TrimSpace(source.Error())
	}
	if _, updateErr := s.accounts.UpdateFields(ctx, account.ID, AccountFields{
		CanPost:   &canPost,
		Status:    &status,
		LastError: &reason,
	}); updateErr != nil {
		s.logError(ctx, "permission downgrade failed", map[string]any{
			"account_id": account.ID,
			"error":      updateErr.Error(),
		})
	}
}
