package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
)

// EnsureCredentialSchema creates the platform_credentials table if it does not exist.
func EnsureCredentialSchema(db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS platform_credentials (
        id BIGSERIAL PRIMARY KEY,
        user_id TEXT NOT NULL,
        platform TEXT NOT NULL,
        app_id TEXT NOT NULL DEFAULT '',
        access_token TEXT NOT NULL,
        refresh_token TEXT NOT NULL DEFAULT '',
        expires_at TIMESTAMPTZ NULL,
        platform_account_id TEXT NOT NULL DEFAULT '',
        account_name TEXT NOT NULL DEFAULT '',
        scopes TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        UNIQUE (user_id, platform)
    )`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create platform_credentials table: %w", err)
	}
	return nil
}

// CredentialRepository stores one credential per (platform, user) in PostgreSQL.
type CredentialRepository struct{ db *sql.DB }

var _ repository.ICredentialRepository = (*CredentialRepository)(nil)

func NewCredentialRepository(db *sql.DB) *CredentialRepository { return &CredentialRepository{db: db} }

func (r *CredentialRepository) UpsertCredential(ctx context.Context, c *model.PlatformCredential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	q := `INSERT INTO platform_credentials (user_id, platform, app_id, access_token, refresh_token, expires_at, platform_account_id, account_name, scopes, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			app_id=EXCLUDED.app_id,
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			platform_account_id=EXCLUDED.platform_account_id,
			account_name=EXCLUDED.account_name,
			scopes=EXCLUDED.scopes,
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, c.UserID, string(c.Platform), c.AppID, c.AccessToken, c.RefreshToken,
		nullTime(c.ExpiresAt), c.PlatformAccountID, c.AccountName, c.Scopes, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CredentialRepository) GetCredential(ctx context.Context, platform model.Platform, userID string) (*model.PlatformCredential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, platform, app_id, access_token, refresh_token, expires_at, platform_account_id, account_name, scopes, created_at, updated_at FROM platform_credentials WHERE user_id=$1 AND platform=$2`, userID, string(platform))
	return scanCredential(row)
}

// SaveRefreshedToken keeps the stored refresh token when the platform did not rotate it.
func (r *CredentialRepository) SaveRefreshedToken(ctx context.Context, platform model.Platform, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	q := `UPDATE platform_credentials SET access_token=$1, refresh_token=CASE WHEN $2 = '' THEN refresh_token ELSE $2 END, expires_at=$3, updated_at=$4 WHERE user_id=$5 AND platform=$6`
	_, err := r.db.ExecContext(ctx, q, accessToken, refreshToken, nullTime(expiresAt), time.Now().UTC(), userID, string(platform))
	return err
}

func (r *CredentialRepository) DeleteCredential(ctx context.Context, platform model.Platform, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM platform_credentials WHERE user_id=$1 AND platform=$2`, userID, string(platform))
	return err
}

func scanCredential(row *sql.Row) (*model.PlatformCredential, error) {
	c := &model.PlatformCredential{}
	var platform string
	var exp sql.NullTime
	if err := row.Scan(&c.ID, &c.UserID, &platform, &c.AppID, &c.AccessToken, &c.RefreshToken, &exp,
		&c.PlatformAccountID, &c.AccountName, &c.Scopes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Platform = model.Platform(platform)
	if exp.Valid {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// nullTime stores the zero time (a non-expiring token) as NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
