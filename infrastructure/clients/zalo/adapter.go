package zalo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/clients/content"
	"crm-social/infrastructure/logger"
	"crm-social/infrastructure/platformauth"

	"golang.org/x/sync/errgroup"
)

const (
	// MaxBatchSize is the largest follower page the OA API returns.
	MaxBatchSize       = 50
	DefaultConcurrency = 5

	maxFollowerPages = 2000
	maxImageBytes    = 1 << 20
	maxFileBytes     = 5 << 20
	textLimit        = 2000

	pathFollowers   = "v3.0/oa/user/getlist"
	pathUserDetail  = "v3.0/oa/user/detail"
	pathMessageCS   = "v3.0/oa/message/cs"
	pathUploadImage = "v2.0/oa/upload/image"
	pathUploadFile  = "v2.0/oa/upload/file"
)

// NoFollowersMessage is the failure text of a broadcast without recipients.
const NoFollowersMessage = "No followers to send message to"

type Options struct {
	BatchSize   int
	Concurrency int
	// MediaClient downloads media before upload; defaults to http.DefaultClient.
	MediaClient *http.Client
}

// Adapter posts by sending the content to every follower of the OA.
type Adapter struct {
	auth        *platformauth.Service
	api         *Client
	media       *http.Client
	batchSize   int
	concurrency int
	now         func() time.Time
}

var (
	_ repository.IPlatformAdapter  = (*Adapter)(nil)
	_ repository.IAttachmentSender = (*Adapter)(nil)
)

func NewAdapter(auth *platformauth.Service, api *Client, opts Options) *Adapter {
	if opts.BatchSize <= 0 || opts.BatchSize > MaxBatchSize {
		opts.BatchSize = MaxBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MediaClient == nil {
		opts.MediaClient = http.DefaultClient
	}
	return &Adapter{
		auth:        auth,
		api:         api,
		media:       opts.MediaClient,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		now:         time.Now,
	}
}

func (a *Adapter) Platform() model.Platform { return model.PlatformZalo }

func (a *Adapter) VerifyAuth(ctx context.Context) bool { return a.auth.VerifyAuth(ctx) }

type followerPage struct {
	Total  int `json:"total"`
	Count  int `json:"count"`
	Offset int `json:"offset"`
	Users  []struct {
		UserID string `json:"user_id"`
	} `json:"users"`
}

// Followers pages through the OA follower list. Paging stops on a short page,
// at the reported total, on a page adding no new id, or after maxFollowerPages.
func (a *Adapter) Followers(ctx context.Context, token string) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	for n, offset := 0, 0; ; n, offset = n+1, offset+a.batchSize {
		if n == maxFollowerPages {
			logger.GetLogger().WithField("platform", model.PlatformZalo).WithField("followers", len(ids)).Warn("zalo follower paging capped")
			return ids, nil
		}
		params, err := jsonParam(map[string]interface{}{"offset": offset, "count": a.batchSize, "is_follower": true})
		if err != nil {
			return nil, err
		}
		var page followerPage
		if err := a.api.Get(ctx, pathFollowers, params, token, &page); err != nil {
			return nil, err
		}
		added := 0
		for _, u := range page.Users {
			if u.UserID == "" {
				continue
			}
			if _, dup := seen[u.UserID]; dup {
				continue
			}
			seen[u.UserID] = struct{}{}
			ids = append(ids, u.UserID)
			added++
		}
		if added == 0 || len(page.Users) < a.batchSize || (page.Total > 0 && offset+len(page.Users) >= page.Total) {
			return ids, nil
		}
	}
}

func (a *Adapter) Publish(ctx context.Context, req *model.PublishRequest) *model.PublishResult {
	lg := logger.GetLogger().WithField("platform", model.PlatformZalo)
	if req == nil || (strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Body) == "" && len(req.Media) == 0) {
		return model.PublishFailed(model.MissingParameter(model.PlatformZalo, "body", "media"))
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return model.PublishFailed(err)
	}

	followers, err := a.Followers(ctx, token)
	if err != nil {
		lg.WithField("error", err).Error("zalo follower fetch failed")
		return model.PublishFailed(err)
	}
	if len(followers) == 0 {
		return model.PublishFailed(model.NewError(model.ErrNoRecipients, model.PlatformZalo, NoFollowersMessage))
	}

	text := content.Truncate(content.Caption(req, true), textLimit)
	var attachmentID string
	if media, ok := req.FirstMedia(); ok {
		if media.Type != model.MediaTypeImage {
			return model.PublishFailed(model.NewError(model.ErrMediaRejected, model.PlatformZalo, "official account broadcasts only carry images"))
		}
		attachmentID, err = a.uploadImage(ctx, token, media.URL)
		if err != nil {
			lg.WithField("error", err).Error("zalo media upload failed")
			return model.PublishFailed(err)
		}
	}

	messageIDs := make([]string, len(followers))
	errs := make([]error, len(followers))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, userID := range followers {
		g.Go(func() error {
			var res *model.SendMessageResult
			if attachmentID != "" {
				res, errs[i] = a.sendImage(ctx, token, userID, text, attachmentID)
			} else {
				res, errs[i] = a.sendText(ctx, token, userID, text)
			}
			if res != nil {
				messageIDs[i] = res.PlatformMessageID
			}
			return nil
		})
	}
	_ = g.Wait()

	delivered := 0
	var postID string
	var firstErr error
	for i := range followers {
		if errs[i] == nil {
			delivered++
			if postID == "" {
				postID = messageIDs[i]
			}
			continue
		}
		if firstErr == nil {
			firstErr = errs[i]
		}
	}
	lg = lg.WithField("followers", len(followers)).WithField("delivered", delivered)
	if delivered == 0 {
		lg.WithField("error", firstErr).Error("zalo broadcast failed for every follower")
		kind := model.KindOf(firstErr)
		if kind == nil {
			kind = model.ErrPlatformRejected
		}
		return model.PublishFailed(model.WrapError(kind, model.PlatformZalo,
			fmt.Sprintf("broadcast failed for all %d followers", len(followers)), firstErr))
	}
	if firstErr != nil {
		lg.WithField("error", firstErr).Warn("zalo broadcast partially delivered")
	} else {
		lg.Info("zalo broadcast delivered")
	}
	return model.Published(postID, "")
}

// Update is not offered: pushed messages cannot be edited.
func (a *Adapter) Update(ctx context.Context, postID string, req *model.PublishRequest) *model.PublishResult {
	return model.PublishFailed(model.NewError(model.ErrUnsupported, model.PlatformZalo, "zalo broadcasts cannot be edited"))
}

// Delete is not offered: pushed messages cannot be recalled.
func (a *Adapter) Delete(ctx context.Context, postID string) (bool, error) {
	return false, model.NewError(model.ErrUnsupported, model.PlatformZalo, "zalo broadcasts cannot be deleted")
}

// GetMetrics returns zeroes; the OA API has no per-message statistics.
func (a *Adapter) GetMetrics(ctx context.Context, postID string) *model.PostMetrics {
	return model.ZeroMetrics(a.now().UTC())
}

type uploadResponse struct {
	AttachmentID string `json:"attachment_id"`
	Token        string `json:"token"`
}

func (a *Adapter) uploadImage(ctx context.Context, token, mediaURL string) (string, error) {
	data, name, err := download(ctx, a.media, mediaURL, maxImageBytes)
	if err != nil {
		return "", err
	}
	var resp uploadResponse
	if err := a.api.Upload(ctx, pathUploadImage, name, data, token, &resp); err != nil {
		return "", asMediaRejected(err)
	}
	if resp.AttachmentID == "" {
		return "", model.NewError(model.ErrMediaRejected, model.PlatformZalo, "image upload returned no attachment id")
	}
	return resp.AttachmentID, nil
}

func (a *Adapter) uploadFile(ctx context.Context, token, mediaURL string) (string, error) {
	data, name, err := download(ctx, a.media, mediaURL, maxFileBytes)
	if err != nil {
		return "", err
	}
	var resp uploadResponse
	if err := a.api.Upload(ctx, pathUploadFile, name, data, token, &resp); err != nil {
		return "", asMediaRejected(err)
	}
	if resp.Token == "" {
		return "", model.NewError(model.ErrMediaRejected, model.PlatformZalo, "file upload returned no token")
	}
	return resp.Token, nil
}

func asMediaRejected(err error) error {
	var pe *model.PlatformError
	if errors.As(err, &pe) && errors.Is(pe.Kind, model.ErrPlatformRejected) {
		return &model.PlatformError{Kind: model.ErrMediaRejected, Platform: pe.Platform, Code: pe.Code, Message: pe.Message, Cause: pe.Cause}
	}
	return err
}
