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

// EnsureMetricsSnapshotSchema creates the table for metrics snapshots if not exists
func EnsureMetricsSnapshotSchema(db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS post_metrics_snapshot (
        platform TEXT NOT NULL,
        post_id TEXT NOT NULL,
        data JSONB NOT NULL,
        last_synced_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (platform, post_id)
    )`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create post_metrics_snapshot table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_post_metrics_snapshot_synced ON post_metrics_snapshot(last_synced_at)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_post_metrics_snapshot_synced")
	}
	return nil
}

// MetricsSnapshotRepository keeps the last known metrics per post as JSONB.
type MetricsSnapshotRepository struct{ db *sql.DB }

var _ repository.IMetricsSnapshot = (*MetricsSnapshotRepository)(nil)

func NewMetricsSnapshotRepository(db *sql.DB) *MetricsSnapshotRepository {
	return &MetricsSnapshotRepository{db: db}
}

// GetSnapshot returns nil, nil when the post was never synced.
func (r *MetricsSnapshotRepository) GetSnapshot(ctx context.Context, platform model.Platform, postID string) (*model.PostMetrics, error) {
	if r.db == nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT data FROM post_metrics_snapshot WHERE platform=$1 AND post_id=$2`, string(platform), postID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var m model.PostMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MetricsSnapshotRepository) UpsertSnapshot(ctx context.Context, platform model.Platform, postID string, metrics *model.PostMetrics) error {
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
	q := `INSERT INTO post_metrics_snapshot(platform, post_id, data, last_synced_at, updated_at)
          VALUES ($1,$2,$3,$4,$5)
          ON CONFLICT (platform, post_id) DO UPDATE SET data=EXCLUDED.data, last_synced_at=EXCLUDED.last_synced_at, updated_at=EXCLUDED.updated_at`
	_, err = r.db.ExecContext(ctx, q, string(platform), postID, raw, synced, time.Now().UTC())
	return err
}
