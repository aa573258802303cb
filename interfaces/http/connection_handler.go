package http

import (
	"net/http"

	"crm-social/usecase"

	"github.com/gin-gonic/gin"
)

type IConnectionHandler interface {
	Status(ctx *gin.Context)
	Disconnect(ctx *gin.Context)
}

type ConnectionHandler struct {
	connectionUsecase usecase.IConnectionUsecase
}

func NewConnectionHandler(uc usecase.IConnectionUsecase) IConnectionHandler {
	return &ConnectionHandler{connectionUsecase: uc}
}

// Status handles GET /api/connections
func (h *ConnectionHandler) Status(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	list, err := h.connectionUsecase.Status(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"connections": list})
}

// Disconnect handles DELETE /api/connections/:platform
func (h *ConnectionHandler) Disconnect(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	if err := h.connectionUsecase.Disconnect(ctx.Request.Context(), platform, userID); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"platform": platform, "connected": false})
}
