package instagram

import (
	"context"
	"strings"

	"crm-social/domain/model"
	"crm-social/infrastructure/clients/content"
	"crm-social/infrastructure/clients/graph"
)

const sendPath = "me/messages"

func (a *Adapter) SendMessage(ctx context.Context, platformUserID, text string) (*model.SendMessageResult, error) {
	if platformUserID == "" || strings.TrimSpace(text) == "" {
		return nil, model.MissingParameter(model.PlatformInstagram, "platform_user_id", "content")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return a.graph.Send(ctx, sendPath, token, graph.TextMessage(platformUserID, text))
}

// SendMessageWithAttachments sends the text and then one call per attachment.
// Instagram has no generic file attachment; such parts fail as unsupported.
func (a *Adapter) SendMessageWithAttachments(ctx context.Context, platformUserID, text string, attachments []model.Attachment) (*model.SendMessageResult, error) {
	if platformUserID == "" {
		return nil, model.MissingParameter(model.PlatformInstagram, "platform_user_id")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return content.SendSequence(ctx, model.PlatformInstagram, text, attachments,
		func(ctx context.Context, text string) (*model.SendMessageResult, error) {
			return a.graph.Send(ctx, sendPath, token, graph.TextMessage(platformUserID, text))
		},
		func(ctx context.Context, att model.Attachment) (*model.SendMessageResult, error) {
			if att.Type == model.AttachmentFile {
				return nil, model.NewError(model.ErrUnsupported, model.PlatformInstagram, "file attachments are not supported")
			}
			return a.graph.Send(ctx, sendPath, token, graph.AttachmentMessage(platformUserID, att))
		})
}

func (a *Adapter) GetCustomerInfo(ctx context.Context, platformUserID string) (*model.CustomerInfo, error) {
	if platformUserID == "" {
		return nil, model.MissingParameter(model.PlatformInstagram, "platform_user_id")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	var p struct {
		Name       string `json:"name"`
		Username   string `json:"username"`
		ProfilePic string `json:"profile_pic"`
	}
	if err := a.graph.Get(ctx, platformUserID, fieldsParams{Fields: "name,username,profile_pic"}, token, &p); err != nil {
		return nil, err
	}
	name := p.Name
	if name == "" {
		name = p.Username
	}
	return &model.CustomerInfo{PlatformUserID: platformUserID, Name: name, Avatar: p.ProfilePic}, nil
}
