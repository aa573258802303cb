// Package instagram implements the container-based posting adapter and
// Instagram messaging on the Instagram Graph API.
package instagram

import (
	"context"
	"errors"
	"strings"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/clients/content"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/logger"
	"crm-social/infrastructure/platformauth"
	"crm-social/infrastructure/retry"
)

const (
	DefaultPollAttempts = 15
	DefaultPollInterval = 2 * time.Second

	captionLimit  = 2200
	carouselLimit = 10
)

// Options tunes the container status poll.
type Options struct {
	PollAttempts int
	PollInterval time.Duration
	Sleep        retry.SleepFunc
}

// Adapter publishes through media containers: create, wait until FINISHED, publish.
type Adapter struct {
	auth  *platformauth.Service
	graph *graph.Client
	poll  retry.Policy
	now   func() time.Time
}

var (
	_ repository.IPlatformAdapter  = (*Adapter)(nil)
	_ repository.IAttachmentSender = (*Adapter)(nil)
)

func NewAdapter(auth *platformauth.Service, client *graph.Client, opts Options) *Adapter {
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = DefaultPollAttempts
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Adapter{
		auth:  auth,
		graph: client,
		poll:  retry.Constant(opts.PollAttempts, opts.PollInterval).WithSleep(opts.Sleep),
		now:   time.Now,
	}
}

func (a *Adapter) Platform() model.Platform { return model.PlatformInstagram }

func (a *Adapter) VerifyAuth(ctx context.Context) bool { return a.auth.VerifyAuth(ctx) }

type containerParams struct {
	ImageURL       string `url:"image_url,omitempty"`
	VideoURL       string `url:"video_url,omitempty"`
	MediaType      string `url:"media_type,omitempty"`
	Caption        string `url:"caption,omitempty"`
	IsCarouselItem bool   `url:"is_carousel_item,omitempty"`
	Children       string `url:"children,omitempty"`
}

type idResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type fieldsParams struct {
	Fields string `url:"fields"`
}

func (a *Adapter) Publish(ctx context.Context, req *model.PublishRequest) *model.PublishResult {
	lg := logger.GetLogger().WithField("platform", model.PlatformInstagram)
	if req == nil || len(req.Media) == 0 {
		return model.PublishFailed(model.MissingParameter(model.PlatformInstagram, "media"))
	}
	igUserID := a.auth.Credential().PlatformAccountID
	if igUserID == "" {
		return model.PublishFailed(model.MissingParameter(model.PlatformInstagram, "instagram_account_id"))
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return model.PublishFailed(err)
	}

	caption := content.Truncate(content.Caption(req, true), captionLimit)
	containerID, err := a.createContainer(ctx, igUserID, token, req.Media, caption)
	if err != nil {
		lg.WithField("error", err).Error("instagram container creation failed")
		return model.PublishFailed(err)
	}
	lg = lg.WithField("container_id", containerID)

	if err := a.waitUntilReady(ctx, containerID, token); err != nil {
		lg.WithField("error", err).Error("instagram container not ready")
		return model.PublishFailed(err)
	}

	postID, err := a.publishContainer(ctx, igUserID, containerID, token)
	if err != nil {
		lg.WithField("error", err).Error("instagram media_publish failed")
		return model.PublishFailed(err)
	}
	lg.WithField("post_id", postID).Info("instagram media published")
	return model.Published(postID, a.fetchPermalink(ctx, postID, token))
}

// createContainer creates a single-media container, or a carousel of
// children when more than one item is given.
func (a *Adapter) createContainer(ctx context.Context, igUserID, token string, media []model.MediaItem, caption string) (string, error) {
	if len(media) == 1 {
		params := mediaParams(media[0])
		params.Caption = caption
		return a.postContainer(ctx, igUserID, token, params)
	}
	if len(media) > carouselLimit {
		media = media[:carouselLimit]
	}
	children := make([]string, 0, len(media))
	for _, m := range media {
		params := mediaParams(m)
		params.IsCarouselItem = true
		if params.MediaType == "REELS" {
			params.MediaType = "VIDEO"
		}
		id, err := a.postContainer(ctx, igUserID, token, params)
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}
	return a.postContainer(ctx, igUserID, token, containerParams{
		MediaType: "CAROUSEL",
		Caption:   caption,
		Children:  strings.Join(children, ","),
	})
}

func mediaParams(m model.MediaItem) containerParams {
	if m.Type == model.MediaTypeVideo {
		return containerParams{VideoURL: m.URL, MediaType: "REELS"}
	}
	return containerParams{ImageURL: m.URL}
}

func (a *Adapter) postContainer(ctx context.Context, igUserID, token string, params containerParams) (string, error) {
	var resp idResponse
	if err := a.graph.PostForm(ctx, igUserID+"/media", params, token, &resp); err != nil {
		return "", asMediaRejected(err)
	}
	if resp.ID == "" {
		return "", model.NewError(model.ErrMediaRejected, model.PlatformInstagram, "container creation returned no id")
	}
	return resp.ID, nil
}

// asMediaRejected reclassifies a platform rejection of the container as a
// media rejection. Auth and network errors keep their kind.
func asMediaRejected(err error) error {
	var pe *model.PlatformError
	if errors.As(err, &pe) && errors.Is(pe.Kind, model.ErrPlatformRejected) {
		return &model.PlatformError{Kind: model.ErrMediaRejected, Platform: pe.Platform, Code: pe.Code, Message: pe.Message, Cause: pe.Cause}
	}
	return err
}

// waitUntilReady polls the container until FINISHED. ERROR ends the wait at
// once; running out of attempts is a ProcessingTimeout.
func (a *Adapter) waitUntilReady(ctx context.Context, containerID, token string) error {
	lg := logger.GetLogger().WithField("platform", model.PlatformInstagram).WithField("container_id", containerID)
	status, err := retry.Poll(ctx, a.poll, func(ctx context.Context, attempt int) (model.ContainerStatus, bool, error) {
		var resp statusResponse
		if err := a.graph.Get(ctx, containerID, fieldsParams{Fields: "status_code,status"}, token, &resp); err != nil {
			if errors.Is(err, model.ErrNetwork) {
				lg.WithField("attempt", attempt).WithField("error", err).Warn("container status check failed")
				return model.ContainerUnknown, false, nil
			}
			return model.ContainerUnknown, false, err
		}
		status := model.ParseContainerStatus(resp.StatusCode)
		lg.WithField("attempt", attempt).WithField("status", status).Debug("container status")
		switch status {
		case model.ContainerFinished:
			return status, true, nil
		case model.ContainerError:
			msg := "media container processing failed"
			if resp.Status != "" {
				msg = resp.Status
			}
			return status, false, model.NewError(model.ErrMediaProcessingFailed, model.PlatformInstagram, msg)
		}
		return status, false, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return model.NewError(model.ErrProcessingTimeout, model.PlatformInstagram,
			"media container did not finish processing, last status "+string(status))
	}
	return err
}

func (a *Adapter) publishContainer(ctx context.Context, igUserID, containerID, token string) (string, error) {
	var resp idResponse
	err := a.graph.PostForm(ctx, igUserID+"/media_publish", struct {
		CreationID string `url:"creation_id"`
	}{CreationID: containerID}, token, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", model.NewError(model.ErrPlatformRejected, model.PlatformInstagram, "media_publish returned no id")
	}
	return resp.ID, nil
}

// fetchPermalink is best-effort and falls back to the public post URL.
func (a *Adapter) fetchPermalink(ctx context.Context, postID, token string) string {
	var resp struct {
		Permalink string `json:"permalink"`
	}
	if err := a.graph.Get(ctx, postID, fieldsParams{Fields: "permalink"}, token, &resp); err == nil && resp.Permalink != "" {
		return resp.Permalink
	}
	return "https://www.instagram.com/p/" + postID + "/"
}

// Update is not offered by the Instagram API.
func (a *Adapter) Update(ctx context.Context, postID string, req *model.PublishRequest) *model.PublishResult {
	return model.PublishFailed(model.NewError(model.ErrUnsupported, model.PlatformInstagram, "instagram posts cannot be edited"))
}

// Delete is not offered by the Instagram API and always reports false.
func (a *Adapter) Delete(ctx context.Context, postID string) (bool, error) {
	return false, nil
}

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int64 `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

func (a *Adapter) GetMetrics(ctx context.Context, postID string) *model.PostMetrics {
	lg := logger.GetLogger().WithField("platform", model.PlatformInstagram).WithField("post_id", postID)
	now := a.now().UTC()
	if postID == "" {
		return model.ZeroMetrics(now)
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		lg.WithField("error", err).Warn("metrics skipped: no valid token")
		return model.ZeroMetrics(now)
	}
	var media struct {
		LikeCount     int64 `json:"like_count"`
		CommentsCount int64 `json:"comments_count"`
	}
	if err := a.graph.Get(ctx, postID, fieldsParams{Fields: "like_count,comments_count"}, token, &media); err != nil {
		lg.WithField("error", err).Warn("instagram metrics fetch failed")
		return model.ZeroMetrics(now)
	}
	m := &model.PostMetrics{Likes: media.LikeCount, Comments: media.CommentsCount, LastSyncedAt: now}

	var insights insightsResponse
	err = a.graph.Get(ctx, postID+"/insights", struct {
		Metric string `url:"metric"`
	}{Metric: "reach,views,shares"}, token, &insights)
	if err != nil {
		lg.WithField("error", err).Debug("instagram insights unavailable")
		return m.Normalize()
	}
	for _, d := range insights.Data {
		if len(d.Values) == 0 {
			continue
		}
		switch d.Name {
		case "reach":
			m.Reach = d.Values[0].Value
		case "views":
			m.Views = d.Values[0].Value
		case "shares":
			m.Shares = d.Values[0].Value
		}
	}
	return m.Normalize()
}
