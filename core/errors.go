package core

import (
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes for the error taxonomy. Handshake-stage codes are
// terminal for the handshake; publish-stage codes carry retryability in
// their category.
const (
	ErrCodeBadInput            = "CONNECT_BAD_INPUT"
	ErrCodePlatformNotFound    = "CONNECT_PLATFORM_NOT_FOUND"
	ErrCodeStateInvalid        = "LINK_STATE_INVALID"
	ErrCodeTokenExchangeFailed = "LINK_TOKEN_EXCHANGE_FAILED"
	ErrCodeProfileFetchFailed  = "LINK_PROFILE_FETCH_FAILED"
	ErrCodeVerificationFailed  = "LINK_VERIFICATION_FAILED"
	ErrCodeAlreadyLinked       = "ACCOUNT_ALREADY_LINKED"
	ErrCodeNeedsReauth         = "ACCOUNT_NEEDS_REAUTH"
	ErrCodePermissionDenied    = "PUBLISH_PERMISSION_DENIED"
	ErrCodeRateLimited         = "PUBLISH_RATE_LIMITED"
	ErrCodeContentRejected     = "PUBLISH_CONTENT_REJECTED"
	ErrCodeAPIError            = "PUBLISH_API_ERROR"
	ErrCodeTokenExpired        = "PUBLISH_TOKEN_EXPIRED"
	ErrCodeTransient           = "NETWORK_TRANSIENT"
	ErrCodeRefreshLocked       = "ACCOUNT_REFRESH_LOCKED"
	ErrCodeInternal            = "CONNECT_INTERNAL_ERROR"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

func NewStateInvalidError(reason string) *goerrors.Error {
	message := "handshake state is invalid or expired"
	if strings.TrimSpace(reason) != "" {
		message = message + ": " + strings.TrimSpace(reason)
	}
	return newTaxonomyError(message, goerrors.CategoryAuth, ErrCodeStateInvalid)
}

func NewTokenExchangeError(platform Platform, statusCode int, cause error) *goerrors.Error {
	return newTaxonomyWrap(cause, "authorization code exchange failed", goerrors.CategoryAuth, ErrCodeTokenExchangeFailed).
		WithMetadata(map[string]any{
			"platform":    string(platform),
			"status_code": statusCode,
		})
}

func NewProfileFetchError(platform Platform, cause error) *goerrors.Error {
	return newTaxonomyWrap(cause, "platform profile fetch failed", goerrors.CategoryOperation, ErrCodeProfileFetchFailed).
		WithMetadata(map[string]any{"platform": string(platform)})
}

// NewAlreadyLinkedError carries enough for the UI to explain the
// conflict without leaking the owning account's credentials.
func NewAlreadyLinkedError(platform Platform, externalID string, owner OwnerRef, linkedAt time.Time) *goerrors.Error {
	metadata := map[string]any{
		"platform":            string(platform),
		"platform_account_id": externalID,
		"owner_id":            owner.UserID,
		"linked_at":           linkedAt.UTC().Format(time.RFC3339),
	}
	if strings.TrimSpace(owner.OrganizationID) != "" {
		metadata["organization_id"] = owner.OrganizationID
	}
	if strings.TrimSpace(owner.TeamID) != "" {
		metadata["team_id"] = owner.TeamID
	}
	return newTaxonomyError(
		"platform account is already linked to a different owner",
		goerrors.CategoryConflict,
		ErrCodeAlreadyLinked,
	).WithMetadata(metadata)
}

func NewNeedsReauthError(accountID string) *goerrors.Error {
	return newTaxonomyError(
		"refresh token is no longer valid, user must reconnect the account",
		goerrors.CategoryAuth,
		ErrCodeNeedsReauth,
	).WithMetadata(map[string]any{"account_id": accountID})
}

func NewPermissionDeniedError(platform Platform) *goerrors.Error {
	return newTaxonomyError("platform rejected the post for missing permissions", goerrors.CategoryAuthz, ErrCodePermissionDenied).
		WithMetadata(map[string]any{"platform": string(platform)})
}

func NewRateLimitedError(platform Platform, retryAfter time.Duration) *goerrors.Error {
	metadata := map[string]any{"platform": string(platform)}
	if retryAfter > 0 {
		metadata["retry_after_seconds"] = int64(retryAfter / time.Second)
	}
	return newTaxonomyError("platform is throttling publish calls", goerrors.CategoryRateLimit, ErrCodeRateLimited).
		WithMetadata(metadata)
}

func NewContentRejectedError(platform Platform, reason string) *goerrors.Error {
	message := "platform rejected the post content"
	if strings.TrimSpace(reason) != "" {
		message = message + ": " + strings.TrimSpace(reason)
	}
	return newTaxonomyError(message, goerrors.CategoryValidation, ErrCodeContentRejected).
		WithMetadata(map[string]any{"platform": string(platform)})
}

func NewAPIError(platform Platform, statusCode int, body string) *goerrors.Error {
	return newTaxonomyError("platform API call failed", goerrors.CategoryOperation, ErrCodeAPIError).
		WithMetadata(map[string]any{
			"platform":    string(platform),
			"status_code": statusCode,
			"body":        truncateForMetadata(body),
		})
}

func NewTokenExpiredError(platform Platform) *goerrors.Error {
	return newTaxonomyError("platform reports the access token as expired", goerrors.CategoryAuth, ErrCodeTokenExpired).
		WithMetadata(map[string]any{"platform": string(platform)})
}

func NewTransientError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "transient platform or network failure"
	}
	return newTaxonomyError(message, goerrors.CategoryOperation, ErrCodeTransient)
}

// HasErrorCode reports whether err carries the given taxonomy code.
func HasErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), strings.TrimSpace(code))
}

// IsRetryable reports whether the caller may retry with backoff.
// Rate limits, transient failures, and refresh-lock contention
// qualify; everything else needs user or content change first.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if HasErrorCode(err, ErrCodeRateLimited) || HasErrorCode(err, ErrCodeTransient) || HasErrorCode(err, ErrCodeRefreshLocked) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryRateLimit
	}
	return false
}

func connectErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "platform") && strings.Contains(msg, "not registered"):
		return newTaxonomyError(err.Error(), goerrors.CategoryNotFound, ErrCodePlatformNotFound)
	case strings.Contains(msg, "handshake state"), strings.Contains(msg, "oauth state"):
		return newTaxonomyError(err.Error(), goerrors.CategoryAuth, ErrCodeStateInvalid)
	case strings.Contains(msg, "refresh lock"), strings.Contains(msg, "lock already held"):
		return newTaxonomyError(err.Error(), goerrors.CategoryConflict, ErrCodeRefreshLocked)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return newTaxonomyError(err.Error(), goerrors.CategoryRateLimit, ErrCodeRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newTaxonomyError(err.Error(), goerrors.CategoryBadInput, ErrCodeBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newTaxonomyError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func newTaxonomyWrap(cause error, message string, category goerrors.Category, textCode string) *goerrors.Error {
	if cause == nil {
		return newTaxonomyError(message, category, textCode)
	}
	return ensureErrorEnvelope(
		goerrors.Wrap(cause, category, message).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = taxonomyHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrCodeBadInput
	case goerrors.CategoryNotFound:
		return ErrCodePlatformNotFound
	case goerrors.CategoryAuth:
		return ErrCodeStateInvalid
	case goerrors.CategoryAuthz:
		return ErrCodePermissionDenied
	case goerrors.CategoryConflict:
		return ErrCodeAlreadyLinked
	case goerrors.CategoryRateLimit:
		return ErrCodeRateLimited
	case goerrors.CategoryOperation:
		return ErrCodeAPIError
	default:
		return ErrCodeInternal
	}
}

func taxonomyHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func truncateForMetadata(body string) string {
	const maxLen = 512
	body = strings.TrimSpace(body)
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen]
}
