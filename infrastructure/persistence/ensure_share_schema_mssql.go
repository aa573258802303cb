package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureShareSchemaMSSQL creates the publish tracking tables in SQL Server
// and adds columns introduced after the first release.
func EnsureShareSchemaMSSQL(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	createIfMissing := func(table, ddl string) error {
		q := fmt.Sprintf(`IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN %s END`, table, ddl)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
		return nil
	}
	// Helper to add a column if missing via COL_LENGTH check
	addIfMissing := func(table, column, ddl string) error {
		q := fmt.Sprintf(`IF COL_LENGTH('%s', '%s') IS NULL BEGIN %s END`, table, column, ddl)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure column %s.%s: %w", table, column, err)
		}
		return nil
	}
	if err := createIfMissing("dbo.share_records", `CREATE TABLE dbo.[share_records] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        post_ref NVARCHAR(255) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        user_id NVARCHAR(128) NOT NULL,
        status NVARCHAR(16) NOT NULL,
        error_message NVARCHAR(MAX) NULL,
        external_ref NVARCHAR(255) NULL,
        attempt_count INT NOT NULL DEFAULT 1,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL,
        CONSTRAINT UX_share_records UNIQUE (post_ref, platform, user_id)
    )`); err != nil {
		return err
	}
	if err := createIfMissing("dbo.share_audit", `CREATE TABLE dbo.[share_audit] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        record_id BIGINT NOT NULL,
        post_ref NVARCHAR(255) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        user_id NVARCHAR(128) NOT NULL,
        status NVARCHAR(16) NOT NULL,
        error_message NVARCHAR(MAX) NULL,
        created_at DATETIME2 NOT NULL
    )`); err != nil {
		return err
	}
	return addIfMissing("dbo.share_records", "permalink", "ALTER TABLE dbo.[share_records] ADD permalink NVARCHAR(1024) NULL")
}
