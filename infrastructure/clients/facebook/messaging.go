package facebook

import (
	"context"
	"strings"

	"crm-social/domain/model"
	"crm-social/infrastructure/clients/content"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/logger"
)

const sendPath = "me/messages"

func (a *Adapter) SendMessage(ctx context.Context, platformUserID, text string) (*model.SendMessageResult, error) {
	if platformUserID == "" || strings.TrimSpace(text) == "" {
		return nil, model.MissingParameter(model.PlatformFacebook, "platform_user_id", "content")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return a.graph.Send(ctx, sendPath, token, graph.TextMessage(platformUserID, text))
}

// SendMessageWithAttachments sends the text and then one call per attachment.
func (a *Adapter) SendMessageWithAttachments(ctx context.Context, platformUserID, text string, attachments []model.Attachment) (*model.SendMessageResult, error) {
	if platformUserID == "" {
		return nil, model.MissingParameter(model.PlatformFacebook, "platform_user_id")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return content.SendSequence(ctx, model.PlatformFacebook, text, attachments,
		func(ctx context.Context, text string) (*model.SendMessageResult, error) {
			return a.graph.Send(ctx, sendPath, token, graph.TextMessage(platformUserID, text))
		},
		func(ctx context.Context, att model.Attachment) (*model.SendMessageResult, error) {
			return a.graph.Send(ctx, sendPath, token, graph.AttachmentMessage(platformUserID, att))
		})
}

func (a *Adapter) senderAction(ctx context.Context, platformUserID, action string) error {
	if platformUserID == "" {
		return model.MissingParameter(model.PlatformFacebook, "platform_user_id")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err == nil {
		_, err = a.graph.Send(ctx, sendPath, token, graph.SendRequest{
			Recipient:    graph.Recipient{ID: platformUserID},
			SenderAction: action,
		})
	}
	if err != nil {
		logger.GetLogger().WithField("platform", model.PlatformFacebook).WithField("action", action).
			WithField("error", err).Warn("sender action failed")
	}
	return nil
}

// SendTypingIndicator is advisory: failures are logged only.
func (a *Adapter) SendTypingIndicator(ctx context.Context, platformUserID string, on bool) error {
	action := graph.ActionTypingOff
	if on {
		action = graph.ActionTypingOn
	}
	return a.senderAction(ctx, platformUserID, action)
}

// MarkAsRead is advisory: failures are logged only.
func (a *Adapter) MarkAsRead(ctx context.Context, platformUserID string) error {
	return a.senderAction(ctx, platformUserID, graph.ActionMarkSeen)
}

type profileResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ProfilePic string `json:"profile_pic"`
}

func (a *Adapter) GetCustomerInfo(ctx context.Context, platformUserID string) (*model.CustomerInfo, error) {
	if platformUserID == "" {
		return nil, model.MissingParameter(model.PlatformFacebook, "platform_user_id")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	var p profileResponse
	if err := a.graph.Get(ctx, platformUserID, fieldsParams{Fields: "first_name,last_name,name,profile_pic"}, token, &p); err != nil {
		return nil, err
	}
	name := p.Name
	if name == "" {
		name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	return &model.CustomerInfo{PlatformUserID: platformUserID, Name: name, Avatar: p.ProfilePic}, nil
}
