package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// linkedAccountRecord is the persistence shape for a linked platform
// account. The (platform, platform_account_id) pair is guarded by a
// partial unique index over live rows; see the migrations package.
type linkedAccountRecord struct {
	bun.BaseModel `bun:"table:linked_accounts,alias:la"`

	ID                  string          `bun:"id,pk"`
	Platform            string          `bun:"platform,notnull"`
	PlatformAccountID   string          `bun:"platform_account_id,notnull"`
	OwnerUserID         string          `bun:"owner_user_id,notnull"`
	OwnerOrganizationID string          `bun:"owner_organization_id"`
	OwnerTeamID         string          `bun:"owner_team_id"`
	OwnerEmail          string          `bun:"owner_email"`
	OwnershipScope      string          `bun:"ownership_scope,notnull"`
	Status              string          `bun:"status,notnull"`
	AccessToken         string          `bun:"access_token,notnull"`
	RefreshToken        string          `bun:"refresh_token"`
	IDToken             string          `bun:"id_token"`
	ExpiresAt           *time.Time      `bun:"expires_at,nullzero"`
	LastRefreshedAt     *time.Time      `bun:"last_refreshed_at,nullzero"`
	Profile             profileDocument `bun:"profile,type:jsonb"`
	Verified            bool            `bun:"verified,notnull"`
	CanPost             bool            `bun:"can_post,notnull"`
	CanSchedule         bool            `bun:"can_schedule,notnull"`
	CanAnalyze          bool            `bun:"can_analyze,notnull"`
	LastError           string          `bun:"last_error"`
	LinkedAt            time.Time       `bun:"linked_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt           *time.Time      `bun:"deleted_at,soft_delete"`
}

type profileDocument struct {
	ExternalID      string `json:"external_id"`
	Username        string `json:"username,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	ProfileURL      string `json:"profile_url,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	FollowerCount   int64  `json:"follower_count,omitempty"`
	ParentAccountID string `json:"parent_account_id,omitempty"`
	ParentName      string `json:"parent_name,omitempty"`
}
