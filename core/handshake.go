package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultHandshakeTTL bounds how long a consent round-trip may take
	// before the handshake must be restarted.
	DefaultHandshakeTTL = 10 * time.Minute

	handshakeKeyPrefix = "connect:oauth:state:"

	stateTokenBytes   = 24
	pkceVerifierBytes = 48
)

// HandshakeTicket is what BeginLink hands to the URL builder. The
// verifier never leaves the server; only the challenge is exposed.
type HandshakeTicket struct {
	State         string
	CodeVerifier  string
	CodeChallenge string
}

type IssueOptions struct {
	PKCE                 bool
	SkipVerificationPost bool

	// StateValue overrides the random token for platforms that need a
	// self-describing state parameter (echo-capable platforms).
	StateValue string
}

// StateTokenManager mints and consumes the opaque tokens that bind a
// handshake to an owner snapshot and, for PKCE platforms, a verifier.
type StateTokenManager struct {
	store StateStore
	ttl   time.Duration
	nowFn func() time.Time
}

func NewStateTokenManager(store StateStore, ttl time.Duration) *StateTokenManager {
	if ttl <= 0 {
		ttl = DefaultHandshakeTTL
	}
	return &StateTokenManager{
		store: store,
		ttl:   ttl,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (m *StateTokenManager) Issue(ctx context.Context, platform Platform, owner OwnerRef, opts IssueOptions) (HandshakeTicket, error) {
	if m == nil || m.store == nil {
		return HandshakeTicket{}, fmt.Errorf("core: state store is not configured")
	}
	if err := owner.Validate(); err != nil {
		return HandshakeTicket{}, err
	}

	token := strings.TrimSpace(opts.StateValue)
	if token == "" {
		generated, genErr := generateStateToken()
		if genErr != nil {
			return HandshakeTicket{}, genErr
		}
		token = generated
	}

	ticket := HandshakeTicket{State: token}
	state := HandshakeState{
		Token:                token,
		Owner:                owner,
		Platform:             platform,
		SkipVerificationPost: opts.SkipVerificationPost,
		CreatedAt:            m.nowFn(),
	}
	if opts.PKCE {
		verifier, challenge, pkceErr := generatePKCEPair()
		if pkceErr != nil {
			return HandshakeTicket{}, pkceErr
		}
		state.CodeVerifier = verifier
		ticket.CodeVerifier = verifier
		ticket.CodeChallenge = challenge
	}

	payload, err := json.Marshal(handshakeEnvelope{
		Owner:                state.Owner,
		Platform:             string(state.Platform),
		CodeVerifier:         state.CodeVerifier,
		SkipVerificationPost: state.SkipVerificationPost,
		CreatedAt:            state.CreatedAt,
	})
	if err != nil {
		return HandshakeTicket{}, fmt.Errorf("core: encode handshake state: %w", err)
	}
	if err := m.store.Set(ctx, handshakeKeyPrefix+token, payload, m.ttl); err != nil {
		return HandshakeTicket{}, fmt.Errorf("core: save handshake state: %w", err)
	}
	return ticket, nil
}

// Consume is a single read-then-delete. A second call with the same
// token sees the same miss an expired entry produces.
func (m *StateTokenManager) Consume(ctx context.Context, token string) (HandshakeState, error) {
	if m == nil || m.store == nil {
		return HandshakeState{}, fmt.Errorf("core: state store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return HandshakeState{}, NewStateInvalidError("empty state token")
	}

	key := handshakeKeyPrefix + token
	payload, err := m.store.Get(ctx, key)
	if err != nil {
		return HandshakeState{}, fmt.Errorf("core: read handshake state: %w", err)
	}
	if payload == nil {
		return HandshakeState{}, NewStateInvalidError("not found")
	}
	if deleteErr := m.store.Delete(ctx, key); deleteErr != nil {
		return HandshakeState{}, fmt.Errorf("core: delete handshake state: %w", deleteErr)
	}

	var envelope handshakeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return HandshakeState{}, NewStateInvalidError("malformed entry")
	}
	return HandshakeState{
		Token:                token,
		Owner:                envelope.Owner,
		Platform:             Platform(envelope.Platform),
		CodeVerifier:         envelope.CodeVerifier,
		SkipVerificationPost: envelope.SkipVerificationPost,
		CreatedAt:            envelope.CreatedAt,
	}, nil
}

type handshakeEnvelope struct {
	Owner                OwnerRef  `json:"owner"`
	Platform             string    `json:"platform"`
	CodeVerifier         string    `json:"code_verifier,omitempty"`
	SkipVerificationPost bool      `json:"skip_verification_post,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// echoState is the minimal payload platforms that cannot round-trip
// server-side session state echo back through the state parameter. It
// sources owner identity only, never credentials.
type echoState struct {
	UserID         string `json:"uid"`
	OrganizationID string `json:"oid,omitempty"`
	TeamID         string `json:"tid,omitempty"`
}

// EncodeEchoState produces the base64 JSON state value for platforms
// flagged with SupportsStateEcho.
func EncodeEchoState(owner OwnerRef) (string, error) {
	if err := owner.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(echoState{
		UserID:         owner.UserID,
		OrganizationID: owner.OrganizationID,
		TeamID:         owner.TeamID,
	})
	if err != nil {
		return "", fmt.Errorf("core: encode echo state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeEchoState is the fallback used when the primary store lookup
// misses on a platform that supports state echo.
func DecodeEchoState(state string) (OwnerRef, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return OwnerRef{}, NewStateInvalidError("empty echo state")
	}
	payload, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		if padded, padErr := base64.StdEncoding.DecodeString(state); padErr == nil {
			payload = padded
		} else {
			return OwnerRef{}, NewStateInvalidError("undecodable echo state")
		}
	}
	var decoded echoState
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return OwnerRef{}, NewStateInvalidError("malformed echo state")
	}
	owner := OwnerRef{
		UserID:         strings.TrimSpace(decoded.UserID),
		OrganizationID: strings.TrimSpace(decoded.OrganizationID),
		TeamID:         strings.TrimSpace(decoded.TeamID),
	}
	if err := owner.Validate(); err != nil {
		return OwnerRef{}, NewStateInvalidError("echo state missing owner id")
	}
	return owner, nil
}

func generateStateToken() (string, error) {
	raw := make([]byte, stateTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// generatePKCEPair yields a 64-character verifier (within the RFC 7636
// 43-128 window) and its S256 challenge, base64url without padding.
func generatePKCEPair() (verifier string, challenge string, err error) {
	raw := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("core: generate pkce verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(raw)
	digest := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(digest[:])
	return verifier, challenge, nil
}
