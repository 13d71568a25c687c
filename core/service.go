package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var ErrPlatformNotRegistered = errors.New("core: platform not registered")

// Service is the connection broker facade: it runs the authorization
// handshake, owns the linking engine and token lifecycle, and fronts
// the publish adapter.
type Service struct {
	config                  Config
	logger                  Logger
	loggerProvider          LoggerProvider
	metricsRecorder         MetricsRecorder
	errorFactory            ErrorFactory
	errorMapper             ErrorMapper
	configProvider          ConfigProvider
	optionsResolver         OptionsResolver
	stateTokens             *StateTokenManager
	accountLocker           AccountLocker
	refreshBackoffScheduler RefreshBackoffScheduler
	registry                Registry
	accounts                AccountRepository
	nowFn                   func() time.Time
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("social-connect", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("social-connect"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewPlatformRegistry()
	}
	if builder.accountLocker == nil {
		builder.accountLocker = NewMemoryAccountLocker()
	}
	if builder.refreshScheduler == nil {
		builder.refreshScheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.accountRepository == nil && builder.repositoryFactory != nil {
		repository, buildErr := builder.repositoryFactory.BuildStores(builder.persistenceClient)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		builder.accountRepository = repository
	}
	if builder.stateStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: state store is required"))
	}

	return &Service{
		config:                  finalConfig,
		logger:                  logger,
		loggerProvider:          provider,
		metricsRecorder:         builder.metricsRecorder,
		errorFactory:            builder.errorFactory,
		errorMapper:             builder.errorMapper,
		configProvider:          builder.configProvider,
		optionsResolver:         builder.optionsResolver,
		stateTokens:             NewStateTokenManager(builder.stateStore, finalConfig.HandshakeTTL()),
		accountLocker:           builder.accountLocker,
		refreshBackoffScheduler: builder.refreshScheduler,
		registry:                builder.registry,
		accounts:                builder.accountRepository,
		nowFn:                   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

// BeginLink issues the handshake state and builds the platform consent
// URL. The code verifier never appears in the response; only the
// derived challenge is placed on the URL.
func (s *Service) BeginLink(ctx context.Context, req BeginLinkRequest) (response BeginLinkResponse, err error) {
	if s == nil {
		return BeginLinkResponse{}, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{
		"platform": string(req.Platform),
		"owner_id": req.Owner.UserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_link", err, fields)
	}()

	if validateErr := req.Owner.Validate(); validateErr != nil {
		err = s.mapError(validateErr)
		return BeginLinkResponse{}, err
	}
	client, resolveErr := s.resolvePlatform(req.Platform)
	if resolveErr != nil {
		err = resolveErr
		return BeginLinkResponse{}, err
	}
	traits := client.Traits()

	issueOpts := IssueOptions{
		PKCE:                 traits.RequiresPKCE,
		SkipVerificationPost: req.SkipVerificationPost,
	}
	if traits.SupportsStateEcho {
		echo, echoErr := EncodeEchoState(req.Owner)
		if echoErr != nil {
			err = s.mapError(echoErr)
			return BeginLinkResponse{}, err
		}
		issueOpts.StateValue = echo
	}
	ticket, issueErr := s.stateTokens.Issue(ctx, req.Platform, req.Owner, issueOpts)
	if issueErr != nil {
		err = s.mapError(issueErr)
		return BeginLinkResponse{}, err
	}

	url, buildErr := client.BuildAuthorizationURL(AuthorizationRequest{
		State:         ticket.State,
		CodeChallenge: ticket.CodeChallenge,
	})
	if buildErr != nil {
		err = s.mapError(buildErr)
		return BeginLinkResponse{}, err
	}
	return BeginLinkResponse{URL: url, State: ticket.State}, nil
}

// CompleteLink runs the callback through its stages: resolve state,
// exchange the code, fetch the profile, link, then run the platform's
// verification post when it requires one.
func (s *Service) CompleteLink(ctx context.Context, req CallbackRequest) (account *LinkedAccount, err error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	stage := HandshakeStageInitiated
	fields := map[string]any{
		"platform": string(req.Platform),
	}
	defer func() {
		fields["stage"] = string(stage)
		s.observeOperation(ctx, startedAt, "complete_link", err, fields)
	}()

	client, resolveErr := s.resolvePlatform(req.Platform)
	if resolveErr != nil {
		stage = HandshakeStageFailed
		err = resolveErr
		return nil, err
	}
	traits := client.Traits()

	if strings.TrimSpace(req.Error) != "" {
		stage = HandshakeStageFailed
		err = s.mapError(newTaxonomyError(
			"platform denied authorization",
			goerrors.CategoryAuth,
			ErrCodeTokenExchangeFailed,
		).WithMetadata(map[string]any{
			"platform":          string(req.Platform),
			"platform_error":    strings.TrimSpace(req.Error),
			"error_description": strings.TrimSpace(req.ErrorDescription),
		}))
		return nil, err
	}

	state, stateErr := s.resolveHandshakeState(ctx, req, traits)
	if stateErr != nil {
		stage = HandshakeStageFailed
		err = stateErr
		return nil, err
	}
	fields["owner_id"] = state.Owner.UserID
	stage = HandshakeStageCodeReceived

	if strings.TrimSpace(req.Code) == "" {
		stage = HandshakeStageFailed
		err = s.mapError(newTaxonomyError("authorization code is required", goerrors.CategoryBadInput, ErrCodeBadInput))
		return nil, err
	}

	tokens, exchangeErr := client.ExchangeCode(ctx, CodeExchangeRequest{
		Code:         req.Code,
		CodeVerifier: state.CodeVerifier,
	})
	if exchangeErr != nil {
		stage = HandshakeStageFailed
		s.logDebug(ctx, "code exchange failed", map[string]any{
			"platform": string(req.Platform),
			"error":    exchangeErr.Error(),
		})
		err = s.mapError(wrapTokenExchangeError(req.Platform, exchangeErr))
		return nil, err
	}
	stage = HandshakeStageTokenExchanged

	profile, profileErr := client.FetchProfile(ctx, tokens.AccessToken)
	if profileErr != nil {
		stage = HandshakeStageFailed
		err = s.mapError(NewProfileFetchError(req.Platform, profileErr))
		return nil, err
	}
	stage = HandshakeStageProfileFetched
	fields["platform_account_id"] = profile.ExternalID

	linked, linkErr := s.linkAccount(ctx, state, tokens, profile)
	if linkErr != nil {
		stage = HandshakeStageFailed
		err = s.mapError(linkErr)
		return nil, err
	}
	stage = HandshakeStageLinked
	fields["account_id"] = linked.ID

	if traits.RequiresVerificationPost && !state.SkipVerificationPost {
		verified, verifyErr := s.runVerificationPost(ctx, client, linked)
		if verifyErr != nil {
			stage = HandshakeStageFailed
			err = s.mapError(verifyErr)
			return nil, err
		}
		linked = verified
	}
	return linked, nil
}

// runVerificationPost publishes the confirmation post after linking.
// A content-policy or duplicate rejection still counts as verified;
// any other failure rolls the fresh record back so the user can retry
// the whole handshake.
func (s *Service) runVerificationPost(ctx context.Context, client PlatformClient, account *LinkedAccount) (*LinkedAccount, error) {
	_, publishErr := client.Publish(ctx, account, PostContent{
		Text: fmt.Sprintf("Account connected to %s.", s.config.ServiceName),
	})
	if publishErr != nil && !HasErrorCode(publishErr, ErrCodeContentRejected) {
		if s.accounts != nil {
			if _, deleteErr := s.accounts.Delete(ctx, account.ID); deleteErr != nil {
				s.logError(ctx, "verification rollback failed", map[string]any{
					"account_id": account.ID,
					"error":      deleteErr.Error(),
				})
			}
		}
		return nil, newTaxonomyWrap(publishErr, "verification post failed", goerrors.CategoryOperation, ErrCodeVerificationFailed).
			WithMetadata(map[string]any{
				"platform": string(account.Platform),
				"stage":    "verification_post",
			})
	}

	verified := true
	updated, updateErr := s.accounts.UpdateFields(ctx, account.ID, AccountFields{Verified: &verified})
	if updateErr != nil {
		return nil, updateErr
	}
	return updated, nil
}

func (s *Service) resolveHandshakeState(ctx context.Context, req CallbackRequest, traits PlatformTraits) (HandshakeState, error) {
	state, consumeErr := s.stateTokens.Consume(ctx, req.State)
	if consumeErr == nil {
		if state.Platform != "" && state.Platform != req.Platform {
			return HandshakeState{}, s.mapError(NewStateInvalidError("platform mismatch"))
		}
		return state, nil
	}
	if !HasErrorCode(consumeErr, ErrCodeStateInvalid) || !traits.SupportsStateEcho {
		return HandshakeState{}, s.mapError(consumeErr)
	}

	// Store miss on an echo-capable platform: recover owner identity
	// from the state parameter itself.
	owner, decodeErr := DecodeEchoState(req.State)
	if decodeErr != nil {
		return HandshakeState{}, s.mapError(decodeErr)
	}
	return HandshakeState{
		Token:     req.State,
		Owner:     owner,
		Platform:  req.Platform,
		CreatedAt: s.now(),
	}, nil
}

// Unlink revokes the local record. Revoked is terminal; reconnecting
// creates a fresh handshake and record.
func (s *Service) Unlink(ctx context.Context, accountID string, reason string) (err error) {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"account_id": accountID}
	defer func() {
		s.observeOperation(ctx, startedAt, "unlink", err, fields)
	}()

	account, loadErr := s.loadAccount(ctx, accountID)
	if loadErr != nil {
		err = loadErr
		return err
	}
	if transitionErr := account.TransitionTo(AccountStatusRevoked, reason, s.now()); transitionErr != nil {
		err = s.mapError(transitionErr)
		return err
	}

	status := AccountStatusRevoked
	lastError := strings.TrimSpace(reason)
	if _, updateErr := s.accounts.UpdateFields(ctx, account.ID, AccountFields{
		Status:    &status,
		LastError: &lastError,
	}); updateErr != nil {
		err = s.mapError(updateErr)
		return err
	}
	return nil
}

// ListAccounts returns the owner's linked accounts for the routing
// layer. Credentials ride along; callers must not serialize them out.
func (s *Service) ListAccounts(ctx context.Context, ownerID string) ([]LinkedAccount, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	if s.accounts == nil {
		return nil, s.mapError(fmt.Errorf("core: account repository is not configured"))
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, s.mapError(fmt.Errorf("core: owner id is required"))
	}
	accounts, err := s.accounts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return accounts, nil
}

func (s *Service) resolvePlatform(platform Platform) (PlatformClient, error) {
	if s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry is not configured"))
	}
	parsed, err := ParsePlatform(string(platform))
	if err != nil {
		return nil, s.mapError(err)
	}
	client, ok := s.registry.Get(parsed)
	if !ok {
		return nil, s.mapError(fmt.Errorf("%w: %s", ErrPlatformNotRegistered, parsed))
	}
	return client, nil
}

func (s *Service) loadAccount(ctx context.Context, accountID string) (*LinkedAccount, error) {
	if s.accounts == nil {
		return nil, s.mapError(fmt.Errorf("core: account repository is not configured"))
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, s.mapError(fmt.Errorf("core: account id is required"))
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if account == nil {
		return nil, s.mapError(goerrors.New("linked account not found", goerrors.CategoryNotFound).
			WithMetadata(map[string]any{"account_id": accountID}))
	}
	return account, nil
}

func (s *Service) now() time.Time {
	if s == nil || s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func wrapTokenExchangeError(platform Platform, cause error) error {
	var richErr *goerrors.Error
	if goerrors.As(cause, &richErr) && strings.TrimSpace(richErr.TextCode) == ErrCodeTokenExchangeFailed {
		return cause
	}
	return NewTokenExchangeError(platform, 0, cause)
}
