package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnsureShareSchema creates the publish tracking tables and adds columns
// introduced after the first release. Safe to call at startup.
func EnsureShareSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tables := []string{
		`CREATE TABLE IF NOT EXISTS share_records (
            id BIGSERIAL PRIMARY KEY,
            post_ref TEXT NOT NULL,
            platform TEXT NOT NULL,
            user_id TEXT NOT NULL,
            status TEXT NOT NULL,
            error_message TEXT NULL,
            external_ref TEXT NULL,
            attempt_count INT NOT NULL DEFAULT 1,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            UNIQUE (post_ref, platform, user_id)
        )`,
		`CREATE TABLE IF NOT EXISTS share_audit (
            id BIGSERIAL PRIMARY KEY,
            record_id BIGINT NOT NULL,
            post_ref TEXT NOT NULL,
            platform TEXT NOT NULL,
            user_id TEXT NOT NULL,
            status TEXT NOT NULL,
            error_message TEXT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
	}
	for _, ddl := range tables {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create share tables: %w", err)
		}
	}

	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"share_records", "permalink", "ALTER TABLE share_records ADD COLUMN permalink TEXT"},
	}

	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
