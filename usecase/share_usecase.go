package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/logger"

	"golang.org/x/sync/errgroup"
)

// ShareRequest publishes one piece of content to several platforms for a user.
type ShareRequest struct {
	PostRef   string                `json:"post_ref"`
	UserID    string                `json:"-"`
	Platforms []string              `json:"platforms"`
	Content   *model.PublishRequest `json:"content"`
	// Force publishes again on platforms that already succeeded.
	Force bool `json:"force"`
}

type ShareResult struct {
	Platform      string `json:"platform"`
	Status        string `json:"status"`
	AlreadyShared bool   `json:"alreadyShared"`
	PostID        string `json:"postId,omitempty"`
	Permalink     string `json:"permalink,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

type IShareUsecase interface {
	Share(ctx context.Context, req ShareRequest) ([]ShareResult, error)
	GetStatus(ctx context.Context, postRef, userID string) ([]*model.ShareRecord, error)
	Update(ctx context.Context, platform model.Platform, userID, postID string, req *model.PublishRequest) (*model.PublishResult, error)
	Delete(ctx context.Context, platform model.Platform, userID, postID string) (bool, error)
	Platforms() []string
}

type shareUsecase struct {
	shareRepo   repository.IShare
	factory     repository.IPlatformFactory
	events      repository.IEventPublisher
	allowed     map[string]struct{}
	order       []string
	broadcaster func(rec *model.ShareRecord)
}

// NewShareUsecase restricts publishing to allowed; an empty list allows every platform.
func NewShareUsecase(shareRepo repository.IShare, factory repository.IPlatformFactory, events repository.IEventPublisher, allowed []string) *shareUsecase {
	if len(allowed) == 0 {
		for _, p := range model.Platforms {
			allowed = append(allowed, p.String())
		}
	}
	m := make(map[string]struct{}, len(allowed))
	order := make([]string, 0, len(allowed))
	for _, a := range allowed {
		p, err := model.ParsePlatform(a)
		if err != nil {
			logger.GetLogger().WithField("platform", a).Warn("ignoring unsupported platform in share configuration")
			continue
		}
		if _, dup := m[p.String()]; !dup {
			m[p.String()] = struct{}{}
			order = append(order, p.String())
		}
	}
	return &shareUsecase{shareRepo: shareRepo, factory: factory, events: events, allowed: m, order: order}
}

// WithBroadcaster registers a callback receiving every record state change.
func (u *shareUsecase) WithBroadcaster(fn func(rec *model.ShareRecord)) *shareUsecase {
	u.broadcaster = fn
	return u
}

func (u *shareUsecase) Platforms() []string { return append([]string(nil), u.order...) }

func (u *shareUsecase) Share(ctx context.Context, req ShareRequest) ([]ShareResult, error) {
	if req.PostRef == "" || req.UserID == "" {
		return nil, model.NewError(model.ErrMissingParameter, "", "postRef and userID required")
	}
	if req.Content == nil {
		return nil, model.NewError(model.ErrMissingParameter, "", "content required")
	}
	if len(req.Platforms) == 0 {
		return nil, model.NewError(model.ErrMissingParameter, "", "platforms required")
	}
	norm := make([]string, 0, len(req.Platforms))
	seen := make(map[string]struct{}, len(req.Platforms))
	for _, p := range req.Platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if _, ok := u.allowed[p]; !ok {
			return nil, model.NewError(model.ErrUnsupported, model.Platform(p), "unsupported platform: "+p)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		norm = append(norm, p)
	}

	records, err := u.shareRepo.UpsertRecords(ctx, req.PostRef, req.UserID, norm, model.ShareStatusPending)
	if err != nil {
		return nil, err
	}

	results := make([]ShareResult, len(records))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range records {
		if rec.Status == model.ShareStatusSuccess && !req.Force {
			results[i] = ShareResult{Platform: rec.Platform, Status: rec.Status, AlreadyShared: true, PostID: deref(rec.ExternalRef), Permalink: deref(rec.Permalink)}
			continue
		}
		g.Go(func() error {
			results[i] = u.publishOne(gctx, rec, req.Content)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// publishOne runs one platform publish and records its outcome. Failures are
// reported in the result, never as an error.
func (u *shareUsecase) publishOne(ctx context.Context, rec *model.ShareRecord, content *model.PublishRequest) ShareResult {
	platform := model.Platform(rec.Platform)
	lg := logger.GetLogger().WithField("platform", platform).WithField("post_ref", rec.PostRef).WithField("user_id", rec.UserID)

	var res *model.PublishResult
	adapter, err := u.factory.Create(ctx, platform, rec.UserID)
	if err != nil {
		res = model.PublishFailed(err)
	} else {
		res = adapter.Publish(ctx, content)
	}
	if res == nil {
		res = model.PublishFailed(fmt.Errorf("%s adapter returned no result", platform))
	}

	var externalRef, permalink, errMsg *string
	if res.Success {
		rec.Status = model.ShareStatusSuccess
		externalRef = optional(res.PostID)
		permalink = optional(res.Permalink)
		rec.ExternalRef, rec.Permalink, rec.ErrorMessage = externalRef, permalink, nil
		lg.WithField("post_id", res.PostID).Info("post published")
	} else {
		rec.Status = model.ShareStatusFailed
		errMsg = optional(res.Error)
		rec.ErrorMessage = errMsg
		lg.WithField("error", res.Error).Warn("post publish failed")
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := u.shareRepo.UpdateRecordResult(storeCtx, rec.ID, rec.Status, externalRef, permalink, errMsg); err != nil {
		lg.WithField("error", err).Error("failed to update share record")
	}
	audit := &model.ShareAudit{RecordID: rec.ID, PostRef: rec.PostRef, Platform: rec.Platform, UserID: rec.UserID, Status: rec.Status, ErrorMessage: errMsg}
	if err := u.shareRepo.CreateAudit(storeCtx, []*model.ShareAudit{audit}); err != nil {
		lg.WithField("error", err).Error("failed to write share audit")
	}
	if u.broadcaster != nil {
		u.broadcaster(rec)
	}
	u.emit(storeCtx, rec, res)

	return ShareResult{Platform: rec.Platform, Status: rec.Status, PostID: res.PostID, Permalink: res.Permalink, ErrorMessage: res.Error}
}

func (u *shareUsecase) emit(ctx context.Context, rec *model.ShareRecord, res *model.PublishResult) {
	if u.events == nil {
		return
	}
	evt := &model.Event{
		Type:       model.EventPostPublished,
		Platform:   model.Platform(rec.Platform),
		UserID:     rec.UserID,
		Attributes: map[string]string{"post_ref": rec.PostRef},
		OccurredAt: time.Now().UTC(),
	}
	if res.Success {
		evt.Attributes["post_id"] = res.PostID
		if res.Permalink != "" {
			evt.Attributes["permalink"] = res.Permalink
		}
	} else {
		evt.Type = model.EventPostFailed
		evt.Attributes["error"] = res.Error
		if kind := model.KindOf(res.Err); kind != nil {
			evt.Attributes["kind"] = kind.Error()
		}
	}
	if err := u.events.PublishEvent(ctx, evt); err != nil {
		logger.GetLogger().WithField("error", err).WithField("type", evt.Type).Warn("failed to publish event")
	}
}

func (u *shareUsecase) GetStatus(ctx context.Context, postRef, userID string) ([]*model.ShareRecord, error) {
	if postRef == "" || userID == "" {
		return nil, model.NewError(model.ErrMissingParameter, "", "postRef and userID required")
	}
	return u.shareRepo.GetShareStatus(ctx, postRef, userID)
}

func (u *shareUsecase) Update(ctx context.Context, platform model.Platform, userID, postID string, req *model.PublishRequest) (*model.PublishResult, error) {
	adapter, err := u.factory.Create(ctx, platform, userID)
	if err != nil {
		return nil, err
	}
	return adapter.Update(ctx, postID, req), nil
}

func (u *shareUsecase) Delete(ctx context.Context, platform model.Platform, userID, postID string) (bool, error) {
	adapter, err := u.factory.Create(ctx, platform, userID)
	if err != nil {
		return false, err
	}
	ok, err := adapter.Delete(ctx, postID)
	if err != nil && !errors.Is(err, model.ErrUnsupported) {
		logger.GetLogger().WithField("platform", platform).WithField("post_id", postID).WithField("error", err).Warn("post delete failed")
	}
	return ok, err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
