package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/cyobiorah/go-social-connect/core"
)

// AccountStore is the bun-backed linked-account repository. The
// uniqueness invariant is enforced twice: a re-check inside the insert
// transaction and, underneath it, the partial unique index.
type AccountStore struct {
	db   *bun.DB
	repo repository.Repository[*linkedAccountRecord]
}

func (s *AccountStore) FindByPlatformAccount(ctx context.Context, platform core.Platform, externalID string, ownerID string) (*core.LinkedAccount, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("sqlstore: platform account id is required")
	}

	criteria := []repository.SelectCriteria{
		repository.SelectBy("platform", "=", strings.TrimSpace(string(platform))),
		repository.SelectBy("platform_account_id", "=", externalID),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
	}
	if ownerID = strings.TrimSpace(ownerID); ownerID != "" {
		criteria = append(criteria, repository.SelectBy("owner_user_id", "=", ownerID))
	}

	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	account := records[0].toDomain()
	return &account, nil
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (*core.LinkedAccount, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("sqlstore: account id is required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	account := record.toDomain()
	return &account, nil
}

func (s *AccountStore) ListByOwner(ctx context.Context, ownerID string) ([]core.LinkedAccount, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("sqlstore: owner id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("owner_user_id", "=", ownerID),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("linked_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.LinkedAccount, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// InsertIfAbsent re-checks (platform, platform_account_id) inside the
// insert transaction so two simultaneous callbacks cannot both create
// the account. A duplicate-key failure from the index is folded into
// the same lost-race result.
func (s *AccountStore) InsertIfAbsent(ctx context.Context, account core.LinkedAccount) (core.InsertResult, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.InsertResult{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	if err := account.Validate(); err != nil {
		return core.InsertResult{}, err
	}

	var result core.InsertResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := new(linkedAccountRecord)
		findErr := tx.NewSelect().
			Model(existing).
			Where("platform = ?", string(account.Platform)).
			Where("platform_account_id = ?", account.PlatformAccountID).
			Where("deleted_at IS NULL").
			Limit(1).
			Scan(ctx)
		if findErr == nil {
			result = core.InsertResult{Account: existing.toDomain(), Inserted: false}
			return nil
		}
		if !errors.Is(findErr, sql.ErrNoRows) {
			return findErr
		}

		record := newLinkedAccountRecord(account, time.Now().UTC())
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		result = core.InsertResult{Account: inserted.toDomain(), Inserted: true}
		return nil
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			winner, findErr := s.FindByPlatformAccount(ctx, account.Platform, account.PlatformAccountID, "")
			if findErr == nil && winner != nil {
				return core.InsertResult{Account: *winner, Inserted: false}, nil
			}
		}
		return core.InsertResult{}, err
	}
	return result, nil
}

// UpdateFields writes only the columns whose pointers are set, so two
// concurrent partial updates on the same row cannot overwrite each
// other's untouched fields.
func (s *AccountStore) UpdateFields(ctx context.Context, id string, fields core.AccountFields) (*core.LinkedAccount, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("sqlstore: account id is required")
	}

	query := s.db.NewUpdate().
		Model((*linkedAccountRecord)(nil)).
		Where("id = ?", id).
		Where("deleted_at IS NULL")

	touched := false
	if fields.Status != nil {
		query = query.Set("status = ?", string(*fields.Status))
		touched = true
	}
	if fields.LastError != nil {
		query = query.Set("last_error = ?", strings.TrimSpace(*fields.LastError))
		touched = true
	}
	if fields.AccessToken != nil {
		query = query.Set("access_token = ?", *fields.AccessToken)
		touched = true
	}
	if fields.RefreshToken != nil {
		query = query.Set("refresh_token = ?", *fields.RefreshToken)
		touched = true
	}
	if fields.IDToken != nil {
		query = query.Set("id_token = ?", *fields.IDToken)
		touched = true
	}
	if fields.ExpiresAt != nil {
		query = query.Set("expires_at = ?", fields.ExpiresAt.UTC())
		touched = true
	}
	if fields.LastRefreshedAt != nil {
		query = query.Set("last_refreshed_at = ?", fields.LastRefreshedAt.UTC())
		touched = true
	}
	if fields.Verified != nil {
		query = query.Set("verified = ?", *fields.Verified)
		touched = true
	}
	if fields.CanPost != nil {
		query = query.Set("can_post = ?", *fields.CanPost)
		touched = true
	}
	if fields.Profile != nil {
		encoded, encodeErr := json.Marshal(newProfileDocument(*fields.Profile))
		if encodeErr != nil {
			return nil, fmt.Errorf("sqlstore: encode profile document: %w", encodeErr)
		}
		query = query.Set("profile = ?", string(encoded))
		touched = true
	}
	if !touched {
		return s.GetByID(ctx, id)
	}
	query = query.Set("updated_at = ?", time.Now().UTC())

	res, err := query.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

func (s *AccountStore) Delete(ctx context.Context, id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: account store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("sqlstore: account id is required")
	}
	res, err := s.db.NewDelete().
		Model((*linkedAccountRecord)(nil)).
		Where("id = ?", id).
		ForceDelete().
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
