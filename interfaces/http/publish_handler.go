package http

import (
	"net/http"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/logger"
	"crm-social/usecase"

	"github.com/gin-gonic/gin"
)

const defaultMetricsMaxAge = 15 * time.Minute

type IPublishHandler interface {
	Publish(ctx *gin.Context)
	GetStatus(ctx *gin.Context)
	GetPlatforms(ctx *gin.Context)
	Update(ctx *gin.Context)
	Delete(ctx *gin.Context)
	GetMetrics(ctx *gin.Context)
	SyncMetrics(ctx *gin.Context)
}

type PublishHandler struct {
	shareUsecase   usecase.IShareUsecase
	metricsUsecase usecase.IMetricsUsecase
}

func NewPublishHandler(share usecase.IShareUsecase, metrics usecase.IMetricsUsecase) IPublishHandler {
	return &PublishHandler{shareUsecase: share, metricsUsecase: metrics}
}

type publishRequest struct {
	Platforms []string              `json:"platforms"`
	Content   *model.PublishRequest `json:"content"`
	Force     bool                  `json:"force"`
}

// Publish handles POST /api/posts/:postRef/publish
func (h *PublishHandler) Publish(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	postRef := ctx.Param("postRef")
	var req publishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	results, err := h.shareUsecase.Share(ctx.Request.Context(), usecase.ShareRequest{
		PostRef:   postRef,
		UserID:    userID,
		Platforms: req.Platforms,
		Content:   req.Content,
		Force:     req.Force,
	})
	if err != nil {
		logger.GetLogger().WithField("post_ref", postRef).WithField("user_id", userID).WithField("error", err.Error()).Warn("publish request failed")
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"post_ref": postRef, "results": results})
}

// GetStatus handles GET /api/posts/:postRef/status
func (h *PublishHandler) GetStatus(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	postRef := ctx.Param("postRef")
	list, err := h.shareUsecase.GetStatus(ctx.Request.Context(), postRef, userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if list == nil {
		list = []*model.ShareRecord{}
	}
	ctx.JSON(http.StatusOK, gin.H{"post_ref": postRef, "records": list})
}

func (h *PublishHandler) GetPlatforms(ctx *gin.Context) {
	enabled := h.shareUsecase.Platforms()
	caps := make([]gin.H, 0, len(enabled))
	for _, p := range enabled {
		caps = append(caps, gin.H{"platform": p, "messaging": p != model.PlatformYouTube.String()})
	}
	ctx.JSON(http.StatusOK, gin.H{"platforms": caps})
}

// Update handles PATCH /api/platforms/:platform/posts/:postId
func (h *PublishHandler) Update(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	var req model.PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.shareUsecase.Update(ctx.Request.Context(), platform, userID, ctx.Param("postId"), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !res.Success {
		ctx.JSON(statusFor(res.Err), res)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

// Delete handles DELETE /api/platforms/:platform/posts/:postId
func (h *PublishHandler) Delete(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	deleted, err := h.shareUsecase.Delete(ctx.Request.Context(), platform, userID, ctx.Param("postId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// GetMetrics handles GET /api/platforms/:platform/posts/:postId/metrics?max_age=10m
func (h *PublishHandler) GetMetrics(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	maxAge := defaultMetricsMaxAge
	if v := ctx.Query("max_age"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_age"})
			return
		}
		maxAge = d
	}
	metrics, err := h.metricsUsecase.GetMetrics(ctx.Request.Context(), platform, userID, ctx.Param("postId"), maxAge)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, metrics)
}

type syncMetricsRequest struct {
	PostIDs []string `json:"post_ids" binding:"required,max=200"`
}

// SyncMetrics handles POST /api/platforms/:platform/metrics/sync
func (h *PublishHandler) SyncMetrics(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	var req syncMetricsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := h.metricsUsecase.Sync(ctx.Request.Context(), platform, userID, req.PostIDs)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"metrics": out})
}
