package repository

import (
	"context"
	"time"

	"crm-social/domain/model"
)

// IShare tracks publish attempts per (post, platform, user)
type IShare interface {
	UpsertRecords(ctx context.Context, postRef, userID string, platforms []string, initialStatus string) ([]*model.ShareRecord, error)
	GetShareStatus(ctx context.Context, postRef, userID string) ([]*model.ShareRecord, error)
	UpdateRecordResult(ctx context.Context, recordID int64, status string, externalRef, permalink, errMsg *string) error
	CreateAudit(ctx context.Context, audits []*model.ShareAudit) error
}

// IMetricsSnapshot persists the last known metrics per published post.
type IMetricsSnapshot interface {
	GetSnapshot(ctx context.Context, platform model.Platform, postID string) (*model.PostMetrics, error)
	UpsertSnapshot(ctx context.Context, platform model.Platform, postID string, metrics *model.PostMetrics) error
}

// IEventPublisher emits adapter-layer events to the message bus.
type IEventPublisher interface {
	PublishEvent(ctx context.Context, evt *model.Event) error
}

// IOAuthStateStore keeps OAuth `state` values between redirect and callback.
type IOAuthStateStore interface {
	Save(ctx context.Context, state, userID string, ttl time.Duration) error
	// Consume returns the user bound to state and deletes it; ok is false when absent or expired.
	Consume(ctx context.Context, state string) (userID string, ok bool, err error)
}
