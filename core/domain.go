package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPlatform                = errors.New("core: invalid platform")
	ErrInvalidOwnerRef                = errors.New("core: invalid owner reference")
	ErrInvalidOwnershipScope          = errors.New("core: invalid ownership scope")
	ErrInvalidAccountStatusTransition = errors.New("core: invalid account status transition")
)

type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformTikTok   Platform = "tiktok"
	PlatformLinkedIn Platform = "linkedin"
	PlatformYouTube  Platform = "youtube"
	PlatformFacebook Platform = "facebook"
)

func ParsePlatform(value string) (Platform, error) {
	normalized := Platform(strings.TrimSpace(strings.ToLower(value)))
	switch normalized {
	case PlatformTwitter, PlatformTikTok, PlatformLinkedIn, PlatformYouTube, PlatformFacebook:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, value)
	}
}

// OwnerRef is the internal identity snapshot bound to a handshake and,
// later, to the linked account record.
type OwnerRef struct {
	UserID         string
	OrganizationID string
	TeamID         string
	Email          string
}

func (o OwnerRef) Validate() error {
	if strings.TrimSpace(o.UserID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidOwnerRef)
	}
	if strings.TrimSpace(o.TeamID) != "" && strings.TrimSpace(o.OrganizationID) == "" {
		return fmt.Errorf("%w: team id without organization id", ErrInvalidOwnerRef)
	}
	return nil
}

type OwnershipScope string

const (
	OwnershipScopePersonal     OwnershipScope = "personal"
	OwnershipScopeTeam         OwnershipScope = "team"
	OwnershipScopeOrganization OwnershipScope = "organization"
)

// DeriveOwnershipScope is the only producer of ownership scope values;
// the scope is never client-supplied.
func DeriveOwnershipScope(owner OwnerRef) OwnershipScope {
	if strings.TrimSpace(owner.TeamID) != "" {
		return OwnershipScopeTeam
	}
	if strings.TrimSpace(owner.OrganizationID) != "" {
		return OwnershipScopeOrganization
	}
	return OwnershipScopePersonal
}

type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusExpired     AccountStatus = "expired"
	AccountStatusRevoked     AccountStatus = "revoked"
	AccountStatusError       AccountStatus = "error"
	AccountStatusNeedsReauth AccountStatus = "needs_reauth"
)

// Credentials carries the platform tokens held for a linked account.
type Credentials struct {
	AccessToken     string
	RefreshToken    string
	IDToken         string
	ExpiresAt       *time.Time
	LastRefreshedAt time.Time
}

// ProfileSnapshot is the platform profile captured at link time. The
// parent fields identify the intermediary entity (e.g. a page) for
// platforms that post through one.
type ProfileSnapshot struct {
	ExternalID      string
	Username        string
	DisplayName     string
	ProfileURL      string
	AvatarURL       string
	FollowerCount   int64
	ParentAccountID string
	ParentName      string
}

type Permissions struct {
	CanPost     bool
	CanSchedule bool
	CanAnalyze  bool
}

type LinkedAccount struct {
	ID                string
	Platform          Platform
	PlatformAccountID string
	Owner             OwnerRef
	Scope             OwnershipScope
	Status            AccountStatus
	Credentials       Credentials
	Profile           ProfileSnapshot
	Permissions       Permissions
	Verified          bool
	LastError         string
	LinkedAt          time.Time
	UpdatedAt         time.Time
}

// Validate enforces the scope/reference coupling before persistence:
// personal accounts carry no org/team refs, team/org accounts must.
func (a LinkedAccount) Validate() error {
	if _, err := ParsePlatform(string(a.Platform)); err != nil {
		return err
	}
	if strings.TrimSpace(a.PlatformAccountID) == "" {
		return fmt.Errorf("%w: empty platform account id", ErrInvalidPlatform)
	}
	if err := a.Owner.Validate(); err != nil {
		return err
	}
	switch a.Scope {
	case OwnershipScopePersonal:
		if strings.TrimSpace(a.Owner.OrganizationID) != "" || strings.TrimSpace(a.Owner.TeamID) != "" {
			return fmt.Errorf("%w: personal account carries organization or team reference", ErrInvalidOwnershipScope)
		}
	case OwnershipScopeTeam:
		if strings.TrimSpace(a.Owner.TeamID) == "" {
			return fmt.Errorf("%w: team account without team reference", ErrInvalidOwnershipScope)
		}
	case OwnershipScopeOrganization:
		if strings.TrimSpace(a.Owner.OrganizationID) == "" {
			return fmt.Errorf("%w: organization account without organization reference", ErrInvalidOwnershipScope)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOwnershipScope, a.Scope)
	}
	return nil
}

func (a *LinkedAccount) TransitionTo(status AccountStatus, reason string, now time.Time) error {
	if a == nil {
		return nil
	}
	if a.Status == status {
		a.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			a.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !accountTransitionAllowed(a.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidAccountStatusTransition, a.Status, status)
	}
	a.Status = status
	a.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		a.LastError = strings.TrimSpace(reason)
	}
	if status == AccountStatusActive {
		a.LastError = ""
	}
	return nil
}

func accountTransitionAllowed(current, next AccountStatus) bool {
	allowed := map[AccountStatus]map[AccountStatus]struct{}{
		AccountStatusActive: {
			AccountStatusExpired:     {},
			AccountStatusRevoked:     {},
			AccountStatusError:       {},
			AccountStatusNeedsReauth: {},
		},
		AccountStatusExpired: {
			AccountStatusActive:      {},
			AccountStatusRevoked:     {},
			AccountStatusNeedsReauth: {},
		},
		AccountStatusError: {
			AccountStatusActive:      {},
			AccountStatusRevoked:     {},
			AccountStatusNeedsReauth: {},
		},
		AccountStatusNeedsReauth: {
			AccountStatusActive:  {},
			AccountStatusRevoked: {},
		},
		AccountStatusRevoked: {},
	}
	_, ok := allowed[current][next]
	return ok
}

// HandshakeState is the short-lived server-side record for one linking
// attempt. It never outlives the transient store TTL.
type HandshakeState struct {
	Token                string
	Owner                OwnerRef
	Platform             Platform
	CodeVerifier         string
	SkipVerificationPost bool
	CreatedAt            time.Time
}

// HandshakeStage names the sequential steps of one callback, recorded
// in observability fields and error metadata.
type HandshakeStage string

const (
	HandshakeStageInitiated      HandshakeStage = "initiated"
	HandshakeStageCodeReceived   HandshakeStage = "code_received"
	HandshakeStageTokenExchanged HandshakeStage = "token_exchanged"
	HandshakeStageProfileFetched HandshakeStage = "profile_fetched"
	HandshakeStageLinked         HandshakeStage = "linked"
	HandshakeStageFailed         HandshakeStage = "failed"
)
