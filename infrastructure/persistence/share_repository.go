package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
)

const shareRecordColumns = `id, post_ref, platform, user_id, status, error_message, external_ref, permalink, attempt_count, created_at, updated_at`

// ShareRepository tracks publish attempts in PostgreSQL.
type ShareRepository struct {
	db *sql.DB
}

var _ repository.IShare = (*ShareRepository)(nil)

func NewShareRepository(db *sql.DB) *ShareRepository { return &ShareRepository{db: db} }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShareRecord(row rowScanner) (*model.ShareRecord, error) {
	rec := &model.ShareRecord{}
	var errMsg, extRef, permalink sql.NullString
	if err := row.Scan(&rec.ID, &rec.PostRef, &rec.Platform, &rec.UserID, &rec.Status, &errMsg, &extRef, &permalink, &rec.AttemptCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		rec.ErrorMessage = &errMsg.String
	}
	if extRef.Valid {
		rec.ExternalRef = &extRef.String
	}
	if permalink.Valid {
		rec.Permalink = &permalink.String
	}
	return rec, nil
}

// UpsertRecords creates or re-arms one record per platform. A record that
// already succeeded keeps its status.
func (r *ShareRepository) UpsertRecords(ctx context.Context, postRef, userID string, platforms []string, initialStatus string) ([]*model.ShareRecord, error) {
	out := make([]*model.ShareRecord, 0, len(platforms))
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	now := time.Now().UTC()
	for _, p := range platforms {
		p = strings.ToLower(p)
		q := `INSERT INTO share_records (post_ref, platform, user_id, status, attempt_count, created_at, updated_at)
              VALUES ($1,$2,$3,$4,1,$5,$5)
              ON CONFLICT (post_ref, platform, user_id) DO UPDATE SET
                attempt_count = share_records.attempt_count + CASE WHEN share_records.status = 'success' THEN 0 ELSE 1 END,
                status = CASE WHEN share_records.status = 'success' THEN share_records.status ELSE EXCLUDED.status END,
                updated_at = EXCLUDED.updated_at`
		if _, err = tx.ExecContext(ctx, q, postRef, p, userID, initialStatus, now); err != nil {
			return nil, err
		}
		row := tx.QueryRowContext(ctx, `SELECT `+shareRecordColumns+` FROM share_records WHERE post_ref=$1 AND platform=$2 AND user_id=$3`, postRef, p, userID)
		var rec *model.ShareRecord
		if rec, err = scanShareRecord(row); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ShareRepository) GetShareStatus(ctx context.Context, postRef, userID string) ([]*model.ShareRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+shareRecordColumns+` FROM share_records WHERE post_ref=$1 AND user_id=$2 ORDER BY platform`, postRef, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.ShareRecord
	for rows.Next() {
		rec, err := scanShareRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (r *ShareRepository) UpdateRecordResult(ctx context.Context, recordID int64, status string, externalRef, permalink, errMsg *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE share_records SET status=$1, external_ref=COALESCE($2, external_ref), permalink=COALESCE($3, permalink), error_message=$4, updated_at=$5 WHERE id=$6`,
		status, externalRef, permalink, errMsg, time.Now().UTC(), recordID)
	return err
}

func (r *ShareRepository) CreateAudit(ctx context.Context, audits []*model.ShareAudit) error {
	if len(audits) == 0 {
		return nil
	}
	q := `INSERT INTO share_audit (record_id, post_ref, platform, user_id, status, error_message, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	now := time.Now().UTC()
	for _, a := range audits {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if _, err := r.db.ExecContext(ctx, q, a.RecordID, a.PostRef, a.Platform, a.UserID, a.Status, a.ErrorMessage, a.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}
