package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
)

// ShareRepositoryMSSQL tracks publish attempts in SQL Server/Azure SQL.
type ShareRepositoryMSSQL struct{ db *sql.DB }

var _ repository.IShare = (*ShareRepositoryMSSQL)(nil)

func NewShareRepositoryMSSQL(db *sql.DB) *ShareRepositoryMSSQL { return &ShareRepositoryMSSQL{db: db} }

func (r *ShareRepositoryMSSQL) UpsertRecords(ctx context.Context, postRef, userID string, platforms []string, initialStatus string) ([]*model.ShareRecord, error) {
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
		q := `MERGE dbo.[share_records] AS target
USING (VALUES (@p1, @p2, @p3)) AS src(post_ref, platform, user_id)
ON target.post_ref = src.post_ref AND target.platform = src.platform AND target.user_id = src.user_id
WHEN MATCHED THEN UPDATE SET
  attempt_count = target.attempt_count + CASE WHEN target.status = 'success' THEN 0 ELSE 1 END,
  status = CASE WHEN target.status = 'success' THEN target.status ELSE @p4 END,
  updated_at = @p5
WHEN NOT MATCHED THEN
  INSERT (post_ref, platform, user_id, status, attempt_count, created_at, updated_at)
  VALUES (src.post_ref, src.platform, src.user_id, @p4, 1, @p5, @p5);`
		if _, err = tx.ExecContext(ctx, q, postRef, p, userID, initialStatus, now); err != nil {
			return nil, err
		}
		row := tx.QueryRowContext(ctx, `SELECT TOP (1) `+shareRecordColumns+`
FROM dbo.[share_records]
WHERE post_ref=@p1 AND platform=@p2 AND user_id=@p3`, postRef, p, userID)
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

func (r *ShareRepositoryMSSQL) GetShareStatus(ctx context.Context, postRef, userID string) ([]*model.ShareRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+shareRecordColumns+`
FROM dbo.[share_records]
WHERE post_ref=@p1 AND user_id=@p2
ORDER BY platform`, postRef, userID)
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

func (r *ShareRepositoryMSSQL) UpdateRecordResult(ctx context.Context, recordID int64, status string, externalRef, permalink, errMsg *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE dbo.[share_records] SET status=@p1, external_ref=COALESCE(@p2, external_ref), permalink=COALESCE(@p3, permalink), error_message=@p4, updated_at=@p5 WHERE id=@p6`,
		status, externalRef, permalink, errMsg, time.Now().UTC(), recordID)
	return err
}

func (r *ShareRepositoryMSSQL) CreateAudit(ctx context.Context, audits []*model.ShareAudit) error {
	if len(audits) == 0 {
		return nil
	}
	q := `INSERT INTO dbo.[share_audit] (record_id, post_ref, platform, user_id, status, error_message, created_at) VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7)`
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
