package http

import (
	"net/http"

	"crm-social/domain/model"
	"crm-social/usecase"

	"github.com/gin-gonic/gin"
)

type IMessagingHandler interface {
	SendMessage(ctx *gin.Context)
	MarkAsRead(ctx *gin.Context)
	GetCustomerInfo(ctx *gin.Context)
}

type MessagingHandler struct {
	messagingUsecase usecase.IMessagingUsecase
}

func NewMessagingHandler(uc usecase.IMessagingUsecase) IMessagingHandler {
	return &MessagingHandler{messagingUsecase: uc}
}

type sendMessageRequest struct {
	Text        string             `json:"text"`
	Attachments []model.Attachment `json:"attachments"`
}

// SendMessage handles POST /api/platforms/:platform/customers/:customerId/messages
func (h *MessagingHandler) SendMessage(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.messagingUsecase.Send(ctx.Request.Context(), usecase.SendMessageRequest{
		Platform:    platform,
		UserID:      userID,
		RecipientID: ctx.Param("customerId"),
		Text:        req.Text,
		Attachments: req.Attachments,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

// MarkAsRead handles POST /api/platforms/:platform/customers/:customerId/read
func (h *MessagingHandler) MarkAsRead(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	if err := h.messagingUsecase.MarkAsRead(ctx.Request.Context(), platform, userID, ctx.Param("customerId")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// GetCustomerInfo handles GET /api/platforms/:platform/customers/:customerId
func (h *MessagingHandler) GetCustomerInfo(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	info, err := h.messagingUsecase.CustomerInfo(ctx.Request.Context(), platform, userID, ctx.Param("customerId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, info)
}
