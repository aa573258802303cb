package usecase

import (
	"context"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/logger"

	"golang.org/x/sync/errgroup"
)

const syncConcurrency = 4

type IMetricsUsecase interface {
	// GetMetrics serves the stored snapshot while it is younger than maxAge, otherwise syncs.
	GetMetrics(ctx context.Context, platform model.Platform, userID, postID string, maxAge time.Duration) (*model.PostMetrics, error)
	Sync(ctx context.Context, platform model.Platform, userID string, postIDs []string) (map[string]*model.PostMetrics, error)
}

type metricsUsecase struct {
	factory   repository.IPlatformFactory
	snapshots repository.IMetricsSnapshot
	now       func() time.Time
}

func NewMetricsUsecase(factory repository.IPlatformFactory, snapshots repository.IMetricsSnapshot) *metricsUsecase {
	return &metricsUsecase{factory: factory, snapshots: snapshots, now: time.Now}
}

func (u *metricsUsecase) GetMetrics(ctx context.Context, platform model.Platform, userID, postID string, maxAge time.Duration) (*model.PostMetrics, error) {
	if postID == "" {
		return nil, model.MissingParameter(platform, "postId")
	}
	if maxAge > 0 && u.snapshots != nil {
		snap, err := u.snapshots.GetSnapshot(ctx, platform, postID)
		if err != nil {
			logger.GetLogger().WithField("error", err).WithField("post_id", postID).Warn("metrics snapshot read failed")
		} else if snap != nil && u.now().Sub(snap.LastSyncedAt) < maxAge {
			return snap, nil
		}
	}
	adapter, err := u.factory.Create(ctx, platform, userID)
	if err != nil {
		return nil, err
	}
	return u.syncOne(ctx, adapter, postID), nil
}

func (u *metricsUsecase) syncOne(ctx context.Context, adapter repository.IPlatformAdapter, postID string) *model.PostMetrics {
	metrics := adapter.GetMetrics(ctx, postID)
	if metrics == nil {
		metrics = model.ZeroMetrics(u.now().UTC())
	}
	if metrics.LastSyncedAt.IsZero() {
		metrics.LastSyncedAt = u.now().UTC()
	}
	if u.snapshots != nil {
		if err := u.snapshots.UpsertSnapshot(ctx, adapter.Platform(), postID, metrics); err != nil {
			logger.GetLogger().WithField("error", err).WithField("post_id", postID).Warn("metrics snapshot write failed")
		}
	}
	return metrics
}

// Sync refreshes the snapshots of several posts with bounded concurrency.
func (u *metricsUsecase) Sync(ctx context.Context, platform model.Platform, userID string, postIDs []string) (map[string]*model.PostMetrics, error) {
	adapter, err := u.factory.Create(ctx, platform, userID)
	if err != nil {
		return nil, err
	}
	results := make([]*model.PostMetrics, len(postIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for i, id := range postIDs {
		if id == "" {
			continue
		}
		g.Go(func() error {
			results[i] = u.syncOne(gctx, adapter, id)
			return nil
		})
	}
	_ = g.Wait()
	out := make(map[string]*model.PostMetrics, len(postIDs))
	for i, id := range postIDs {
		if results[i] != nil {
			out[id] = results[i]
		}
	}
	return out, nil
}
