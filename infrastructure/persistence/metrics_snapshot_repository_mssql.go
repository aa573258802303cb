package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/logger"
)

// EnsureMetricsSnapshotSchemaMSSQL creates the snapshot table on MSSQL if not exists
func EnsureMetricsSnapshotSchemaMSSQL(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.post_metrics_snapshot') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.post_metrics_snapshot (
        platform NVARCHAR(32) NOT NULL,
        post_id NVARCHAR(255) NOT NULL,
        data NVARCHAR(MAX) NOT NULL,
        last_synced_at DATETIMEOFFSET NOT NULL,
        updated_at DATETIMEOFFSET NOT NULL,
        CONSTRAINT PK_post_metrics_snapshot PRIMARY KEY (platform, post_id)
    );
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create post_metrics_snapshot table (mssql): %w", err)
	}
	if _, err := db.Exec(`IF NOT EXISTS (SELECT * FROM sys.indexes WHERE name = 'idx_post_metrics_snapshot_synced' AND object_id = OBJECT_ID('dbo.post_metrics_snapshot'))
CREATE INDEX idx_post_metrics_snapshot_synced ON dbo.post_metrics_snapshot(last_synced_at)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_post_metrics_snapshot_synced")
	}
	return nil
}

// MetricsSnapshotRepositoryMSSQL stores snapshots as JSON text on MSSQL
type MetricsSnapshotRepositoryMSSQL struct {
	db *sql.DB
}

var _ repository.IMetricsSnapshot = (*MetricsSnapshotRepositoryMSSQL)(nil)

func NewMetricsSnapshotRepositoryMSSQL(db *sql.DB) *MetricsSnapshotRepositoryMSSQL {
	return &MetricsSnapshotRepositoryMSSQL{db: db}
}

func (r *MetricsSnapshotRepositoryMSSQL) GetSnapshot(ctx context.Context, platform model.Platform, postID string) (*model.PostMetrics, error) {
	if r.db == nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT data FROM dbo.post_metrics_snapshot WHERE platform=@p1 AND post_id=@p2`, string(platform), postID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var m model.PostMetrics
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MetricsSnapshotRepositoryMSSQL) UpsertSnapshot(ctx context.Context, platform model.Platform, postID string, metrics *model.PostMetrics) error {
	if r.db == nil || metrics == nil {
		return nil
	}
	raw, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	synced := metrics.LastSyncedAt
	if synced.IsZero() {
		synced = time.Now().UTC()
	}
	q := `MERGE dbo.post_metrics_snapshot AS target
USING (VALUES (@p1, @p2)) AS src(platform, post_id)
ON target.platform = src.platform AND target.post_id = src.post_id
WHEN MATCHED THEN UPDATE SET data=@p3, last_synced_at=@p4, updated_at=@p5
WHEN NOT MATCHED THEN INSERT (platform, post_id, data, last_synced_at, updated_at) VALUES (@p1,@p2,@p3,@p4,@p5);`
	_, err = r.db.ExecContext(ctx, q, string(platform), postID, string(raw), synced, time.Now().UTC())
	return err
}
