package sqlstore

import (
	"time"

	"github.com/cyobiorah/go-social-connect/core"
)

func newLinkedAccountRecord(account core.LinkedAccount, now time.Time) *linkedAccountRecord {
	record := &linkedAccountRecord{
		ID:                  account.ID,
		Platform:            string(account.Platform),
		PlatformAccountID:   account.PlatformAccountID,
		OwnerUserID:         account.Owner.UserID,
		OwnerOrganizationID: account.Owner.OrganizationID,
		OwnerTeamID:         account.Owner.TeamID,
		OwnerEmail:          account.Owner.Email,
		OwnershipScope:      string(account.Scope),
		Status:              string(account.Status),
		AccessToken:         account.Credentials.AccessToken,
		RefreshToken:        account.Credentials.RefreshToken,
		IDToken:             account.Credentials.IDToken,
		ExpiresAt:           cloneTime(account.Credentials.ExpiresAt),
		Profile:             newProfileDocument(account.Profile),
		Verified:            account.Verified,
		CanPost:             account.Permissions.CanPost,
		CanSchedule:         account.Permissions.CanSchedule,
		CanAnalyze:          account.Permissions.CanAnalyze,
		LastError:           account.LastError,
		LinkedAt:            account.LinkedAt,
		UpdatedAt:           account.UpdatedAt,
	}
	if record.LinkedAt.IsZero() {
		record.LinkedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	if !account.Credentials.LastRefreshedAt.IsZero() {
		refreshedAt := account.Credentials.LastRefreshedAt
		record.LastRefreshedAt = &refreshedAt
	}
	return record
}

func (r *linkedAccountRecord) toDomain() core.LinkedAccount {
	if r == nil {
		return core.LinkedAccount{}
	}
	account := core.LinkedAccount{
		ID:                r.ID,
		Platform:          core.Platform(r.Platform),
		PlatformAccountID: r.PlatformAccountID,
		Owner: core.OwnerRef{
			UserID:         r.OwnerUserID,
			OrganizationID: r.OwnerOrganizationID,
			TeamID:         r.OwnerTeamID,
			Email:          r.OwnerEmail,
		},
		Scope:  core.OwnershipScope(r.OwnershipScope),
		Status: core.AccountStatus(r.Status),
		Credentials: core.Credentials{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			IDToken:      r.IDToken,
			ExpiresAt:    cloneTime(r.ExpiresAt),
		},
		Profile: core.ProfileSnapshot{
			ExternalID:      r.Profile.ExternalID,
			Username:        r.Profile.Username,
			DisplayName:     r.Profile.DisplayName,
			ProfileURL:      r.Profile.ProfileURL,
			AvatarURL:       r.Profile.AvatarURL,
			FollowerCount:   r.Profile.FollowerCount,
			ParentAccountID: r.Profile.ParentAccountID,
			ParentName:      r.Profile.ParentName,
		},
		Permissions: core.Permissions{
			CanPost:     r.CanPost,
			CanSchedule: r.CanSchedule,
			CanAnalyze:  r.CanAnalyze,
		},
		Verified:  r.Verified,
		LastError: r.LastError,
		LinkedAt:  r.LinkedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.LastRefreshedAt != nil {
		account.Credentials.LastRefreshedAt = *r.LastRefreshedAt
	}
	return account
}

func newProfileDocument(profile core.ProfileSnapshot) profileDocument {
	return profileDocument{
		ExternalID:      profile.ExternalID,
		Username:        profile.Username,
		DisplayName:     profile.DisplayName,
		ProfileURL:      profile.ProfileURL,
		AvatarURL:       profile.AvatarURL,
		FollowerCount:   profile.FollowerCount,
		ParentAccountID: profile.ParentAccountID,
		ParentName:      profile.ParentName,
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
