package http

import (
	"net/http"

	"crm-social/domain/model"
	"crm-social/infrastructure/logger"

	"github.com/gin-gonic/gin"
)

// statusFor maps an adapter-layer error kind to the HTTP status returned to CRM callers.
func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.ErrMissingParameter, model.ErrMediaRejected, model.ErrUnsupported:
		return http.StatusBadRequest
	case model.ErrAuthExpired, model.ErrRefreshFailed:
		return http.StatusForbidden
	case model.ErrMediaProcessingFailed, model.ErrNoRecipients:
		return http.StatusUnprocessableEntity
	case model.ErrNetwork, model.ErrPlatformRejected:
		return http.StatusBadGateway
	case model.ErrProcessingTimeout:
		return http.StatusGatewayTimeout
	case model.ErrNotImplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func respondError(ctx *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if kind := model.KindOf(err); kind != nil {
		body["kind"] = kind.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.GetLogger().WithField("path", ctx.FullPath()).WithField("error", err).Error("request failed")
	}
	ctx.JSON(status, body)
}

// platformParam reads the :platform path segment, answering 400 when it is unknown.
func platformParam(ctx *gin.Context) (model.Platform, bool) {
	p, err := model.ParsePlatform(ctx.Param("platform"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": model.ErrUnsupported.Error()})
		return "", false
	}
	return p, true
}

func currentUser(ctx *gin.Context) (string, bool) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return "", false
	}
	return userID, true
}
