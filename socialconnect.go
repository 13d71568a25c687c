// Package socialconnect links external social platform accounts to
// internal identities and publishes content through them. The root
// package re-exports the core surface so callers can wire a service
// without importing subpackages.
package socialconnect

import "github.com/cyobiorah/go-social-connect/core"

type Config = core.Config

type PlatformConfig = core.PlatformConfig

type FrontendConfig = core.FrontendConfig

type Option = core.Option

type Service = core.Service

type LinkingService = core.LinkingService
type StateStore = core.StateStore
type AccountRepository = core.AccountRepository
type AccountLocker = core.AccountLocker
type RefreshBackoffScheduler = core.RefreshBackoffScheduler
type Registry = core.Registry
type PlatformClient = core.PlatformClient

type LinkedAccount = core.LinkedAccount
type OwnerRef = core.OwnerRef
type PostContent = core.PostContent
type PublishResult = core.PublishResult

type BeginLinkRequest = core.BeginLinkRequest
type BeginLinkResponse = core.BeginLinkResponse
type CallbackRequest = core.CallbackRequest
type PublishRequest = core.PublishRequest

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithStateStore              = core.WithStateStore
	WithAccountLocker           = core.WithAccountLocker
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithRegistry                = core.WithRegistry
	WithAccountRepository       = core.WithAccountRepository
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func New(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
