package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// StateStore is the transient key-value collaborator used for
// handshake state. Get returns (nil, nil) on a miss; expired entries
// are indistinguishable from missing ones.
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// AccountFields is a partial update applied to a linked account record.
// Nil pointers leave the column untouched; updates are field-targeted
// to avoid lost updates from concurrent refreshes.
type AccountFields struct {
	Status          *AccountStatus
	LastError       *string
	AccessToken     *string
	RefreshToken    *string
	IDToken         *string
	ExpiresAt       *time.Time
	LastRefreshedAt *time.Time
	Verified        *bool
	CanPost         *bool
	Profile         *ProfileSnapshot
}

// InsertResult reports the outcome of a conditional insert. When
// Inserted is false the Account holds the record that won the race.
type InsertResult struct {
	Account  LinkedAccount
	Inserted bool
}

// AccountRepository is the persistent collaborator for linked-account
// records. InsertIfAbsent must re-verify the (platform, external id)
// uniqueness inside the same transaction as the insert.
type AccountRepository interface {
	FindByPlatformAccount(ctx context.Context, platform Platform, externalID string, ownerID string) (*LinkedAccount, error)
	GetByID(ctx context.Context, id string) (*LinkedAccount, error)
	ListByOwner(ctx context.Context, ownerID string) ([]LinkedAccount, error)
	InsertIfAbsent(ctx context.Context, account LinkedAccount) (InsertResult, error)
	UpdateFields(ctx context.Context, id string, fields AccountFields) (*LinkedAccount, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (AccountRepository, error)
}

// TokenSet is the normalized result of a code exchange or a refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Scope        string
	ExpiresAt    *time.Time
}

type AuthorizationRequest struct {
	State         string
	CodeChallenge string
	RedirectURI   string
}

type CodeExchangeRequest struct {
	Code         string
	CodeVerifier string
	RedirectURI  string
}

// PostContent is the normalized payload handed to a platform publish
// call. MediaURLs may be empty for text-only platforms.
type PostContent struct {
	Text      string
	Title     string
	MediaURLs []string
	Metadata  map[string]any
}

type PublishResult struct {
	PostID   string
	Metadata map[string]any
}

// PlatformTraits declares the handshake quirks of one platform.
type PlatformTraits struct {
	RequiresPKCE             bool
	SupportsStateEcho        bool
	RequiresVerificationPost bool
	HasLegacyPublishAPI      bool
}

// PlatformClient drives one platform's authorization handshake and
// publish surface. Implementations live under providers/.
type PlatformClient interface {
	Platform() Platform
	Traits() PlatformTraits

	BuildAuthorizationURL(req AuthorizationRequest) (string, error)
	ExchangeCode(ctx context.Context, req CodeExchangeRequest) (TokenSet, error)
	FetchProfile(ctx context.Context, accessToken string) (ProfileSnapshot, error)
	Refresh(ctx context.Context, cred Credentials) (TokenSet, error)
	Publish(ctx context.Context, account *LinkedAccount, post PostContent) (PublishResult, error)
}

type Registry interface {
	Register(client PlatformClient) error
	Get(platform Platform) (PlatformClient, bool)
	List() []PlatformClient
}

type BeginLinkRequest struct {
	Platform             Platform
	Owner                OwnerRef
	SkipVerificationPost bool
}

type BeginLinkResponse struct {
	URL   string
	State string
}

// CallbackRequest carries the query parameters the platform redirect
// delivered to the callback endpoint.
type CallbackRequest struct {
	Platform         Platform
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

type PublishRequest struct {
	AccountID string
	Post      PostContent
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// AccountLocker serializes refresh attempts for one account.
type AccountLocker interface {
	Acquire(ctx context.Context, accountID string, ttl time.Duration) (LockHandle, error)
}

type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// LinkingService is the surface consumed by the routing layer.
type LinkingService interface {
	BeginLink(ctx context.Context, req BeginLinkRequest) (BeginLinkResponse, error)
	CompleteLink(ctx context.Context, req CallbackRequest) (*LinkedAccount, error)
	GetFreshAccount(ctx context.Context, accountID string) (*LinkedAccount, error)
	Refresh(ctx context.Context, accountID string) (*LinkedAccount, error)
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
	Unlink(ctx context.Context, accountID string, reason string) error
}
