package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/clients/content"
	"crm-social/infrastructure/logger"
	"crm-social/infrastructure/platformauth"
	"crm-social/infrastructure/retry"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	DefaultUploadURL       = "https://www.googleapis.com/upload/youtube/v3/videos"
	DefaultUploadRetries   = 3
	DefaultUploadBaseDelay = time.Second
	DefaultResumeAttempts  = 10
	DefaultPollAttempts    = 60
	DefaultPollInterval    = 5 * time.Second

	watchURL        = "https://www.youtube.com/watch?v="
	titleLimit      = 100
	descLimit       = 5000
	defaultCategory = "22"
)

// Options configures the resumable upload and the processing poll.
type Options struct {
	UploadURL       string
	APIBaseURL      string // empty keeps the library default endpoint
	HTTPClient      *http.Client
	UploadRetries   int // retries after a 5xx, first attempt excluded
	UploadBaseDelay time.Duration
	ResumeAttempts  int // 308 resumptions allowed per upload
	PollAttempts    int
	PollInterval    time.Duration
	Sleep           retry.SleepFunc
}

func (o *Options) defaults() {
	if o.UploadURL == "" {
		o.UploadURL = DefaultUploadURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.UploadRetries <= 0 {
		o.UploadRetries = DefaultUploadRetries
	}
	if o.UploadBaseDelay <= 0 {
		o.UploadBaseDelay = DefaultUploadBaseDelay
	}
	if o.ResumeAttempts <= 0 {
		o.ResumeAttempts = DefaultResumeAttempts
	}
	if o.PollAttempts <= 0 {
		o.PollAttempts = DefaultPollAttempts
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
}

// Client is the YouTube posting adapter: resumable upload, processing poll,
// metadata update and statistics. Messaging is not offered.
type Client struct {
	auth    *platformauth.Service
	service *youtube.Service
	authed  *http.Client // bearer-authorised calls to YouTube
	media   *http.Client // plain client for the source media URL
	opts    Options
	now     func() time.Time
}

var _ repository.IPlatformAdapter = (*Client)(nil)

// NewClient builds the adapter around the credential held by auth.
func NewClient(ctx context.Context, auth *platformauth.Service, opts Options) (*Client, error) {
	opts.defaults()
	authed := auth.HTTPClient(context.WithoutCancel(ctx), opts.HTTPClient)
	svcOpts := []option.ClientOption{option.WithHTTPClient(authed)}
	if opts.APIBaseURL != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(opts.APIBaseURL))
	}
	service, err := youtube.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return &Client{
		auth:    auth,
		service: service,
		authed:  authed,
		media:   opts.HTTPClient,
		opts:    opts,
		now:     time.Now,
	}, nil
}

func (c *Client) Platform() model.Platform { return model.PlatformYouTube }

func (c *Client) VerifyAuth(ctx context.Context) bool { return c.auth.VerifyAuth(ctx) }

func (c *Client) Publish(ctx context.Context, req *model.PublishRequest) *model.PublishResult {
	lg := logger.GetLogger().WithField("platform", model.PlatformYouTube)
	media, ok := req.FirstMedia()
	if !ok || media.Type != model.MediaTypeVideo || media.URL == "" {
		return model.PublishFailed(model.MissingParameter(model.PlatformYouTube, "video"))
	}
	video, err := videoFromRequest(req)
	if err != nil {
		return model.PublishFailed(err)
	}
	if _, err := c.auth.GetValidAccessToken(ctx); err != nil {
		return model.PublishFailed(err)
	}

	size, contentType, err := c.mediaSize(ctx, media.URL)
	if err != nil {
		lg.WithField("error", err).Error("youtube media rejected")
		return model.PublishFailed(err)
	}
	session, err := c.initSession(ctx, video, size, contentType)
	if err != nil {
		lg.WithField("error", err).Error("youtube upload session failed")
		return model.PublishFailed(err)
	}
	videoID, err := c.transfer(ctx, session, media.URL, size, contentType)
	if err != nil {
		lg.WithField("error", err).Error("youtube upload failed")
		return model.PublishFailed(err)
	}
	lg = lg.WithField("video_id", videoID)
	lg.Info("youtube upload complete, waiting for processing")

	if err := c.waitForProcessing(ctx, videoID); err != nil {
		lg.WithField("error", err).Error("youtube processing did not complete")
		return model.PublishFailed(err)
	}
	return model.Published(videoID, watchURL+videoID)
}

func videoFromRequest(req *model.PublishRequest) (*youtube.Video, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSpace(req.Body)
	}
	if title == "" {
		return nil, model.MissingParameter(model.PlatformYouTube, "title")
	}
	privacy := req.Privacy
	if privacy == "" {
		privacy = "public"
	}
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       content.Truncate(title, titleLimit),
			Description: content.Truncate(content.Caption(req, false), descLimit),
			Tags:        plainTags(req.Hashtags),
			CategoryId:  defaultCategory,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: privacy},
	}, nil
}

func plainTags(hashtags []string) []string {
	tags := content.NormalizeTags(hashtags, '#')
	for i, t := range tags {
		tags[i] = strings.TrimPrefix(t, "#")
	}
	return tags
}

// waitForProcessing polls the video until processing succeeds or fails.
// Running out of attempts counts as failed.
func (c *Client) waitForProcessing(ctx context.Context, videoID string) error {
	lg := logger.GetLogger().WithField("platform", model.PlatformYouTube).WithField("video_id", videoID)
	policy := retry.Constant(c.opts.PollAttempts, c.opts.PollInterval).WithSleep(c.opts.Sleep)
	var reason string
	status, err := retry.Poll(ctx, policy, func(ctx context.Context, attempt int) (model.UploadStatus, bool, error) {
		resp, err := c.service.Videos.List([]string{"status", "processingDetails"}).Id(videoID).Context(ctx).Do()
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && gerr.Code < 500 {
				return model.UploadFailed, false, classify(err)
			}
			lg.WithField("attempt", attempt).WithField("error", err).Warn("processing status check failed")
			return model.UploadProcessing, false, nil
		}
		if len(resp.Items) == 0 {
			return model.UploadProcessing, false, nil
		}
		var st model.UploadStatus
		st, reason = processingStatus(resp.Items[0])
		lg.WithField("attempt", attempt).WithField("status", st).Debug("processing status")
		return st, st != model.UploadProcessing, nil
	})
	switch {
	case errors.Is(err, retry.ErrExhausted):
		return model.NewError(model.ErrProcessingTimeout, model.PlatformYouTube, "video processing did not finish")
	case err != nil:
		return err
	case status == model.UploadFailed:
		msg := "video processing failed"
		if reason != "" {
			msg = msg + ": " + reason
		}
		return model.NewError(model.ErrMediaProcessingFailed, model.PlatformYouTube, msg)
	}
	return nil
}

func processingStatus(v *youtube.Video) (model.UploadStatus, string) {
	if v.ProcessingDetails != nil {
		switch v.ProcessingDetails.ProcessingStatus {
		case "succeeded":
			return model.UploadReady, ""
		case "failed", "terminated":
			return model.UploadFailed, v.ProcessingDetails.ProcessingFailureReason
		}
	}
	if v.Status != nil {
		switch v.Status.UploadStatus {
		case "processed":
			return model.UploadReady, ""
		case "failed":
			return model.UploadFailed, v.Status.FailureReason
		case "rejected", "deleted":
			return model.UploadFailed, v.Status.RejectionReason
		}
	}
	return model.UploadProcessing, ""
}

// Update rewrites title, description, tags and privacy of an uploaded video.
func (c *Client) Update(ctx context.Context, postID string, req *model.PublishRequest) *model.PublishResult {
	if postID == "" {
		return model.PublishFailed(model.MissingParameter(model.PlatformYouTube, "post_id"))
	}
	if req == nil {
		return model.PublishFailed(model.MissingParameter(model.PlatformYouTube, "request"))
	}
	if _, err := c.auth.GetValidAccessToken(ctx); err != nil {
		return model.PublishFailed(err)
	}

	// videos.update replaces the whole snippet, so start from the stored one
	existingResp, err := c.service.Videos.List([]string{"snippet", "status"}).Id(postID).Context(ctx).Do()
	if err != nil {
		return model.PublishFailed(classify(err))
	}
	if len(existingResp.Items) == 0 {
		return model.PublishFailed(model.Rejected(model.PlatformYouTube, "videoNotFound", "video not found: "+postID))
	}
	existing := existingResp.Items[0]
	if existing.Snippet == nil {
		existing.Snippet = &youtube.VideoSnippet{CategoryId: defaultCategory}
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		existing.Snippet.Title = content.Truncate(t, titleLimit)
	}
	if desc := content.Caption(req, false); desc != "" {
		existing.Snippet.Description = content.Truncate(desc, descLimit)
	}
	if len(req.Hashtags) > 0 {
		existing.Snippet.Tags = plainTags(req.Hashtags)
	}
	if req.Privacy != "" {
		if existing.Status == nil {
			existing.Status = &youtube.VideoStatus{}
		}
		existing.Status.PrivacyStatus = req.Privacy
	}

	updated, err := c.service.Videos.Update([]string{"snippet", "status"}, existing).Context(ctx).Do()
	if err != nil {
		return model.PublishFailed(classify(err))
	}
	return model.Published(updated.Id, watchURL+updated.Id)
}

// Delete removes the video; only a 204 response counts as deleted.
func (c *Client) Delete(ctx context.Context, postID string) (bool, error) {
	if postID == "" {
		return false, model.MissingParameter(model.PlatformYouTube, "post_id")
	}
	if _, err := c.auth.GetValidAccessToken(ctx); err != nil {
		return false, err
	}
	u := strings.TrimRight(c.service.BasePath, "/") + "/youtube/v3/videos?" + url.Values{"id": {postID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.authed.Do(req)
	if err != nil {
		return false, transportError(err, "delete request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return true, nil
	}
	if err := googleapi.CheckResponse(resp); err != nil {
		return false, classify(err)
	}
	return false, nil
}

func (c *Client) GetMetrics(ctx context.Context, postID string) *model.PostMetrics {
	lg := logger.GetLogger().WithField("platform", model.PlatformYouTube).WithField("post_id", postID)
	now := c.now().UTC()
	if postID == "" {
		return model.ZeroMetrics(now)
	}
	resp, err := c.service.Videos.List([]string{"statistics"}).Id(postID).Context(ctx).Do()
	if err != nil {
		lg.WithField("error", err).Warn("youtube metrics fetch failed")
		return model.ZeroMetrics(now)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return model.ZeroMetrics(now)
	}
	st := resp.Items[0].Statistics
	m := &model.PostMetrics{
		Views:        int64(st.ViewCount),
		Likes:        int64(st.LikeCount),
		Comments:     int64(st.CommentCount),
		LastSyncedAt: now,
	}
	return m.Normalize()
}

// SendMessage is not offered on YouTube.
func (c *Client) SendMessage(ctx context.Context, platformUserID, text string) (*model.SendMessageResult, error) {
	return nil, model.NewError(model.ErrNotImplemented, model.PlatformYouTube, "youtube messaging is not yet implemented")
}

// GetCustomerInfo is not offered on YouTube.
func (c *Client) GetCustomerInfo(ctx context.Context, platformUserID string) (*model.CustomerInfo, error) {
	return nil, model.NewError(model.ErrNotImplemented, model.PlatformYouTube, "youtube customer info is not yet implemented")
}

// classify maps a Google API error into the adapter error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *model.PlatformError
	if errors.As(err, &pe) {
		return pe
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		code := fmt.Sprint(gerr.Code)
		if len(gerr.Errors) > 0 && gerr.Errors[0].Reason != "" {
			code = gerr.Errors[0].Reason
		}
		switch {
		case gerr.Code == http.StatusUnauthorized:
			e := model.NewError(model.ErrAuthExpired, model.PlatformYouTube, msg)
			e.Code = code
			return e
		case gerr.Code >= 500:
			e := model.WrapError(model.ErrNetwork, model.PlatformYouTube, msg, gerr)
			e.Code = code
			return e
		}
		return model.Rejected(model.PlatformYouTube, code, msg)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return model.WrapError(model.ErrNetwork, model.PlatformYouTube, "youtube request failed", err)
}

func transportError(err error, msg string) error {
	var pe *model.PlatformError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return model.WrapError(model.ErrNetwork, model.PlatformYouTube, msg, err)
}
