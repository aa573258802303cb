package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
)

type CredentialRepositoryMSSQL struct{ db *sql.DB }

var _ repository.ICredentialRepository = (*CredentialRepositoryMSSQL)(nil)

func NewCredentialRepositoryMSSQL(db *sql.DB) *CredentialRepositoryMSSQL {
	return &CredentialRepositoryMSSQL{db: db}
}

// EnsureCredentialSchemaMSSQL creates the platform_credentials table for SQL Server if it does not exist.
func EnsureCredentialSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.platform_credentials') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[platform_credentials] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        app_id NVARCHAR(128) NOT NULL DEFAULT '',
        access_token NVARCHAR(MAX) NOT NULL,
        refresh_token NVARCHAR(MAX) NOT NULL DEFAULT '',
        expires_at DATETIME2 NULL,
        platform_account_id NVARCHAR(128) NOT NULL DEFAULT '',
        account_name NVARCHAR(255) NOT NULL DEFAULT '',
        scopes NVARCHAR(MAX) NOT NULL DEFAULT '',
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_platform_credentials_user_platform ON dbo.[platform_credentials](user_id, platform);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create platform_credentials (mssql): %w", err)
	}
	return nil
}

func (r *CredentialRepositoryMSSQL) UpsertCredential(ctx context.Context, c *model.PlatformCredential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	// MERGE upsert by (user_id, platform)
	q := `MERGE dbo.[platform_credentials] AS target
USING (VALUES (@p1, @p2)) AS src(user_id, platform)
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
    app_id=@p3,
    access_token=@p4,
    refresh_token=@p5,
    expires_at=@p6,
    platform_account_id=@p7,
    account_name=@p8,
    scopes=@p9,
    updated_at=@p11
WHEN NOT MATCHED THEN
    INSERT (user_id, platform, app_id, access_token, refresh_token, expires_at, platform_account_id, account_name, scopes, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11);`
	_, err := r.db.ExecContext(ctx, q,
		c.UserID, string(c.Platform),
		c.AppID,
		c.AccessToken,
		c.RefreshToken,
		nullTime(c.ExpiresAt),
		c.PlatformAccountID,
		c.AccountName,
		c.Scopes,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *CredentialRepositoryMSSQL) GetCredential(ctx context.Context, platform model.Platform, userID string) (*model.PlatformCredential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, platform, app_id, access_token, refresh_token, expires_at, platform_account_id, account_name, scopes, created_at, updated_at FROM dbo.[platform_credentials] WHERE user_id=@p1 AND platform=@p2`, userID, string(platform))
	return scanCredential(row)
}

func (r *CredentialRepositoryMSSQL) SaveRefreshedToken(ctx context.Context, platform model.Platform, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	q := `UPDATE dbo.[platform_credentials] SET access_token=@p1, refresh_token=CASE WHEN @p2 = '' THEN refresh_token ELSE @p2 END, expires_at=@p3, updated_at=@p4 WHERE user_id=@p5 AND platform=@p6`
	_, err := r.db.ExecContext(ctx, q, accessToken, refreshToken, nullTime(expiresAt), time.Now().UTC(), userID, string(platform))
	return err
}

func (r *CredentialRepositoryMSSQL) DeleteCredential(ctx context.Context, platform model.Platform, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dbo.[platform_credentials] WHERE user_id=@p1 AND platform=@p2`, userID, string(platform))
	return err
}
