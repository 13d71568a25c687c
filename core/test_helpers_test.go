package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryStateEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryStateEntry
	nowFn   func() time.Time
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{
		entries: make(map[string]memoryStateEntry),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStateStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]byte, len(value))
	copy(copied, value)
	s.entries[key] = memoryStateEntry{value: copied, expiresAt: s.nowFn().Add(ttl)}
	return nil
}

func (s *memoryStateStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.After(s.nowFn()) {
		delete(s.entries, key)
		return nil, nil
	}
	copied := make([]byte, len(entry.value))
	copy(copied, entry.value)
	return copied, nil
}

func (s *memoryStateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

type memoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]LinkedAccount

	insertHook  func(account LinkedAccount) (*InsertResult, error)
	updateCalls []AccountFields
	deleted     []string
}

func newMemoryAccountRepository() *memoryAccountRepository {
	return &memoryAccountRepository{accounts: make(map[string]LinkedAccount)}
}

func (r *memoryAccountRepository) seed(account LinkedAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
}

func (r *memoryAccountRepository) FindByPlatformAccount(_ context.Context, platform Platform, externalID string, ownerID string) (*LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Platform != platform || account.PlatformAccountID != externalID {
			continue
		}
		if ownerID != "" && account.Owner.UserID != ownerID {
			continue
		}
		found := account
		return &found, nil
	}
	return nil, nil
}

func (r *memoryAccountRepository) GetByID(_ context.Context, id string) (*LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	found := account
	return &found, nil
}

func (r *memoryAccountRepository) ListByOwner(_ context.Context, ownerID string) ([]LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LinkedAccount
	for _, account := range r.accounts {
		if account.Owner.UserID == ownerID {
			out = append(out, account)
		}
	}
	return out, nil
}

func (r *memoryAccountRepository) InsertIfAbsent(_ context.Context, account LinkedAccount) (InsertResult, error) {
	if r.insertHook != nil {
		result, err := r.insertHook(account)
		if result != nil || err != nil {
			if result == nil {
				return InsertResult{}, err
			}
			return *result, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Platform == account.Platform && existing.PlatformAccountID == account.PlatformAccountID {
			return InsertResult{Account: existing}, nil
		}
	}
	r.accounts[account.ID] = account
	return InsertResult{Account: account, Inserted: true}, nil
}

func (r *memoryAccountRepository) UpdateFields(_ context.Context, id string, fields AccountFields) (*LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %q not found", id)
	}
	r.updateCalls = append(r.updateCalls, fields)
	if fields.Status != nil {
		account.Status = *fields.Status
	}
	if fields.LastError != nil {
		account.LastError = *fields.LastError
	}
	if fields.AccessToken != nil {
		account.Credentials.AccessToken = *fields.AccessToken
	}
	if fields.RefreshToken != nil {
		account.Credentials.RefreshToken = *fields.RefreshToken
	}
	if fields.IDToken != nil {
		account.Credentials.IDToken = *fields.IDToken
	}
	if fields.ExpiresAt != nil {
		expiresAt := *fields.ExpiresAt
		account.Credentials.ExpiresAt = &expiresAt
	}
	if fields.LastRefreshedAt != nil {
		account.Credentials.LastRefreshedAt = *fields.LastRefreshedAt
	}
	if fields.Verified != nil {
		account.Verified = *fields.Verified
	}
	if fields.CanPost != nil {
		account.Permissions.CanPost = *fields.CanPost
	}
	if fields.Profile != nil {
		account.Profile = *fields.Profile
	}
	r.accounts[id] = account
	updated := account
	return &updated, nil
}

func (r *memoryAccountRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return false, nil
	}
	delete(r.accounts, id)
	r.deleted = append(r.deleted, id)
	return true, nil
}

type fakePlatformClient struct {
	platform Platform
	traits   PlatformTraits

	exchangeFn func(req CodeExchangeRequest) (TokenSet, error)
	profileFn  func(accessToken string) (ProfileSnapshot, error)
	refreshFn  func(cred Credentials) (TokenSet, error)
	publishFn  func(account *LinkedAccount, post PostContent) (PublishResult, error)

	exchangeCalls int
	refreshCalls  int
	publishCalls  int
}

func (c *fakePlatformClient) Platform() Platform     { return c.platform }
func (c *fakePlatformClient) Traits() PlatformTraits { return c.traits }

func (c *fakePlatformClient) BuildAuthorizationURL(req AuthorizationRequest) (string, error) {
	url := "https://consent.example/authorize?state=" + req.State
	if req.CodeChallenge != "" {
		url += "&code_challenge=" + req.CodeChallenge
	}
	return url, nil
}

func (c *fakePlatformClient) ExchangeCode(_ context.Context, req CodeExchangeRequest) (TokenSet, error) {
	c.exchangeCalls++
	if c.exchangeFn != nil {
		return c.exchangeFn(req)
	}
	return TokenSet{AccessToken: "access_token_value", RefreshToken: "refresh_token_value"}, nil
}

func (c *fakePlatformClient) FetchProfile(_ context.Context, accessToken string) (ProfileSnapshot, error) {
	if c.profileFn != nil {
		return c.profileFn(accessToken)
	}
	return ProfileSnapshot{ExternalID: "ext_123", Username: "handle"}, nil
}

func (c *fakePlatformClient) Refresh(_ context.Context, cred Credentials) (TokenSet, error) {
	c.refreshCalls++
	if c.refreshFn != nil {
		return c.refreshFn(cred)
	}
	return TokenSet{AccessToken: "refreshed_access_token"}, nil
}

func (c *fakePlatformClient) Publish(_ context.Context, account *LinkedAccount, post PostContent) (PublishResult, error) {
	c.publishCalls++
	if c.publishFn != nil {
		return c.publishFn(account, post)
	}
	return PublishResult{PostID: "post_1"}, nil
}

type serviceFixture struct {
	service *Service
	store   *memoryStateStore
	repo    *memoryAccountRepository
	client  *fakePlatformClient
	now     time.Time
}

func newServiceFixture(t interface{ Fatalf(string, ...any) }, platform Platform, traits PlatformTraits) *serviceFixture {
	store := newMemoryStateStore()
	repo := newMemoryAccountRepository()
	client := &fakePlatformClient{platform: platform, traits: traits}

	registry := NewPlatformRegistry()
	if err := registry.Register(client); err != nil {
		t.Fatalf("register fake client: %v", err)
	}

	service, err := NewService(Config{},
		WithStateStore(store),
		WithAccountRepository(repo),
		WithRegistry(registry),
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	service.nowFn = func() time.Time { return now }
	return &serviceFixture{service: service, store: store, repo: repo, client: client, now: now}
}

func (f *serviceFixture) seedAccount(id string, status AccountStatus, cred Credentials) LinkedAccount {
	account := LinkedAccount{
		ID:                id,
		Platform:          f.client.platform,
		PlatformAccountID: "ext_123",
		Owner:             OwnerRef{UserID: "user_1"},
		Scope:             OwnershipScopePersonal,
		Status:            status,
		Credentials:       cred,
		Profile:           ProfileSnapshot{ExternalID: "ext_123", Username: "handle"},
		Permissions:       Permissions{CanPost: true, CanSchedule: true, CanAnalyze: true},
		LinkedAt:          f.now.Add(-time.Hour),
		UpdatedAt:         f.now.Add(-time.Hour),
	}
	f.repo.seed(account)
	return account
}

func futureTime(base time.Time, offset time.Duration) *time.Time {
	value := base.Add(offset)
	return &value
}
