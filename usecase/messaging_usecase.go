package usecase

import (
	"context"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/logger"
)

// SendMessageRequest is a direct message from a CRM agent to an end user.
type SendMessageRequest struct {
	Platform    model.Platform     `json:"platform"`
	UserID      string             `json:"-"`
	RecipientID string             `json:"recipient_id"`
	Text        string             `json:"text"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

type IMessagingUsecase interface {
	Send(ctx context.Context, req SendMessageRequest) (*model.SendMessageResult, error)
	MarkAsRead(ctx context.Context, platform model.Platform, userID, recipientID string) error
	CustomerInfo(ctx context.Context, platform model.Platform, userID, recipientID string) (*model.CustomerInfo, error)
}

type messagingUsecase struct {
	factory repository.IPlatformFactory
}

func NewMessagingUsecase(factory repository.IPlatformFactory) IMessagingUsecase {
	return &messagingUsecase{factory: factory}
}

// Send shows a typing indicator when the platform supports it, then sends
// text and attachments. With attachments the result of the last call is returned.
func (u *messagingUsecase) Send(ctx context.Context, req SendMessageRequest) (*model.SendMessageResult, error) {
	adapter, err := u.factory.Create(ctx, req.Platform, req.UserID)
	if err != nil {
		return nil, err
	}
	if typing, ok := adapter.(repository.ITypingIndicator); ok && req.RecipientID != "" {
		if err := typing.SendTypingIndicator(ctx, req.RecipientID, true); err != nil {
			logger.GetLogger().WithField("platform", req.Platform).WithField("error", err).Debug("typing indicator failed")
		}
	}
	if len(req.Attachments) == 0 {
		return adapter.SendMessage(ctx, req.RecipientID, req.Text)
	}
	sender, ok := adapter.(repository.IAttachmentSender)
	if !ok {
		return nil, model.NewError(model.ErrUnsupported, req.Platform, "attachments are not supported")
	}
	return sender.SendMessageWithAttachments(ctx, req.RecipientID, req.Text, req.Attachments)
}

func (u *messagingUsecase) MarkAsRead(ctx context.Context, platform model.Platform, userID, recipientID string) error {
	adapter, err := u.factory.Create(ctx, platform, userID)
	if err != nil {
		return err
	}
	marker, ok := adapter.(repository.IReadMarker)
	if !ok {
		return model.NewError(model.ErrUnsupported, platform, "read receipts are not supported")
	}
	return marker.MarkAsRead(ctx, recipientID)
}

func (u *messagingUsecase) CustomerInfo(ctx context.Context, platform model.Platform, userID, recipientID string) (*model.CustomerInfo, error) {
	adapter, err := u.factory.Create(ctx, platform, userID)
	if err != nil {
		return nil, err
	}
	return adapter.GetCustomerInfo(ctx, recipientID)
}
