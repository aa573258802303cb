// Package facebook implements the page posting and Messenger adapter on the Graph API.
package facebook

import (
	"context"
	"strings"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/clients/content"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/logger"
	"crm-social/infrastructure/platformauth"
)

// Adapter publishes to one Facebook page and messages its Messenger users.
type Adapter struct {
	auth  *platformauth.Service
	graph *graph.Client
	now   func() time.Time
}

var (
	_ repository.IPlatformAdapter  = (*Adapter)(nil)
	_ repository.IAttachmentSender = (*Adapter)(nil)
	_ repository.ITypingIndicator  = (*Adapter)(nil)
	_ repository.IReadMarker       = (*Adapter)(nil)
)

// NewAdapter builds an adapter for the page stored in the auth service credential.
func NewAdapter(auth *platformauth.Service, client *graph.Client) *Adapter {
	return &Adapter{auth: auth, graph: client, now: time.Now}
}

func (a *Adapter) Platform() model.Platform { return model.PlatformFacebook }

func (a *Adapter) VerifyAuth(ctx context.Context) bool { return a.auth.VerifyAuth(ctx) }

func (a *Adapter) pageID() string { return a.auth.Credential().PlatformAccountID }

type publishParams struct {
	Message     string `url:"message,omitempty"`
	Caption     string `url:"caption,omitempty"`
	URL         string `url:"url,omitempty"`
	FileURL     string `url:"file_url,omitempty"`
	Title       string `url:"title,omitempty"`
	Description string `url:"description,omitempty"`
	Published   bool   `url:"published"`
}

type publishResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type fieldsParams struct {
	Fields string `url:"fields"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (a *Adapter) Publish(ctx context.Context, req *model.PublishRequest) *model.PublishResult {
	lg := logger.GetLogger().WithField("platform", model.PlatformFacebook)
	if req == nil || (strings.TrimSpace(req.Body) == "" && len(req.Media) == 0) {
		return model.PublishFailed(model.MissingParameter(model.PlatformFacebook, "body", "media"))
	}
	pageID := a.pageID()
	if pageID == "" {
		return model.PublishFailed(model.MissingParameter(model.PlatformFacebook, "page_id"))
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return model.PublishFailed(err)
	}

	caption := content.Caption(req, true)
	var (
		path   string
		params publishParams
	)
	media, hasMedia := req.FirstMedia()
	switch {
	case hasMedia && media.Type == model.MediaTypeVideo:
		path = pageID + "/videos"
		params = publishParams{FileURL: media.URL, Title: req.Title, Description: content.Caption(req, false), Published: true}
	case hasMedia:
		path = pageID + "/photos"
		params = publishParams{URL: media.URL, Caption: caption, Published: true}
	default:
		path = pageID + "/feed"
		params = publishParams{Message: caption, Published: true}
	}

	var resp publishResponse
	if err := a.graph.PostForm(ctx, path, params, token, &resp); err != nil {
		lg.WithField("error", err).Error("facebook publish failed")
		return model.PublishFailed(err)
	}
	postID := resp.PostID
	if postID == "" {
		postID = resp.ID
	}
	if postID == "" {
		return model.PublishFailed(model.NewError(model.ErrPlatformRejected, model.PlatformFacebook, "publish returned no post id"))
	}
	permalink := a.permalink(ctx, postID, token)
	lg.WithField("post_id", postID).Info("facebook post published")
	return model.Published(postID, permalink)
}

func (a *Adapter) permalink(ctx context.Context, postID, token string) string {
	var resp struct {
		PermalinkURL string `json:"permalink_url"`
	}
	if err := a.graph.Get(ctx, postID, fieldsParams{Fields: "permalink_url"}, token, &resp); err == nil && resp.PermalinkURL != "" {
		return resp.PermalinkURL
	}
	return "https://www.facebook.com/" + postID
}

// Update edits the message of an existing page post.
func (a *Adapter) Update(ctx context.Context, postID string, req *model.PublishRequest) *model.PublishResult {
	if postID == "" {
		return model.PublishFailed(model.MissingParameter(model.PlatformFacebook, "post_id"))
	}
	if req == nil || strings.TrimSpace(req.Body) == "" {
		return model.PublishFailed(model.MissingParameter(model.PlatformFacebook, "body"))
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return model.PublishFailed(err)
	}
	var resp successResponse
	if err := a.graph.PostForm(ctx, postID, publishParams{Message: content.Caption(req, true), Published: true}, token, &resp); err != nil {
		return model.PublishFailed(err)
	}
	if !resp.Success {
		return model.PublishFailed(model.NewError(model.ErrPlatformRejected, model.PlatformFacebook, "post update was not accepted"))
	}
	return model.Published(postID, a.permalink(ctx, postID, token))
}

func (a *Adapter) Delete(ctx context.Context, postID string) (bool, error) {
	if postID == "" {
		return false, model.MissingParameter(model.PlatformFacebook, "post_id")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return false, err
	}
	var resp successResponse
	if err := a.graph.Delete(ctx, postID, token, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

type summary struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
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
	lg := logger.GetLogger().WithField("platform", model.PlatformFacebook).WithField("post_id", postID)
	now := a.now().UTC()
	if postID == "" {
		return model.ZeroMetrics(now)
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		lg.WithField("error", err).Warn("metrics skipped: no valid token")
		return model.ZeroMetrics(now)
	}
	var post struct {
		Shares struct {
			Count int64 `json:"count"`
		} `json:"shares"`
		Reactions summary `json:"reactions"`
		Comments  summary `json:"comments"`
	}
	fields := "shares,reactions.summary(total_count).limit(0),comments.summary(total_count).limit(0)"
	if err := a.graph.Get(ctx, postID, fieldsParams{Fields: fields}, token, &post); err != nil {
		lg.WithField("error", err).Warn("facebook metrics fetch failed")
		return model.ZeroMetrics(now)
	}
	m := &model.PostMetrics{
		Likes:        post.Reactions.Summary.TotalCount,
		Comments:     post.Comments.Summary.TotalCount,
		Shares:       post.Shares.Count,
		LastSyncedAt: now,
	}

	// insights need read_insights; missing permission keeps the counters above
	var insights insightsResponse
	err = a.graph.Get(ctx, postID+"/insights", struct {
		Metric string `url:"metric"`
	}{Metric: "post_impressions,post_impressions_unique"}, token, &insights)
	if err != nil {
		lg.WithField("error", err).Debug("facebook insights unavailable")
		return m.Normalize()
	}
	for _, d := range insights.Data {
		if len(d.Values) == 0 {
			continue
		}
		switch d.Name {
		case "post_impressions":
			m.Views = d.Values[0].Value
		case "post_impressions_unique":
			m.Reach = d.Values[0].Value
		}
	}
	return m.Normalize()
}
