package zalo

import (
	"context"
	"strings"

	"crm-social/domain/model"
	"crm-social/infrastructure/clients/content"
)

type recipient struct {
	UserID string `json:"user_id"`
}

type mediaElement struct {
	MediaType    string `json:"media_type"`
	AttachmentID string `json:"attachment_id"`
}

type attachmentPayload struct {
	TemplateType string         `json:"template_type,omitempty"`
	Elements     []mediaElement `json:"elements,omitempty"`
	Token        string         `json:"token,omitempty"`
}

type attachment struct {
	Type    string            `json:"type"`
	Payload attachmentPayload `json:"payload"`
}

type message struct {
	Text       string      `json:"text,omitempty"`
	Attachment *attachment `json:"attachment,omitempty"`
}

type sendRequest struct {
	Recipient recipient `json:"recipient"`
	Message   message   `json:"message"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

func (a *Adapter) send(ctx context.Context, token, userID string, msg message) (*model.SendMessageResult, error) {
	var resp sendResponse
	if err := a.api.PostJSON(ctx, pathMessageCS, sendRequest{Recipient: recipient{UserID: userID}, Message: msg}, token, &resp); err != nil {
		return nil, err
	}
	return &model.SendMessageResult{Success: true, PlatformMessageID: resp.MessageID}, nil
}

func (a *Adapter) sendText(ctx context.Context, token, userID, text string) (*model.SendMessageResult, error) {
	return a.send(ctx, token, userID, message{Text: text})
}

func (a *Adapter) sendImage(ctx context.Context, token, userID, text, attachmentID string) (*model.SendMessageResult, error) {
	return a.send(ctx, token, userID, message{
		Text: text,
		Attachment: &attachment{Type: "template", Payload: attachmentPayload{
			TemplateType: "media",
			Elements:     []mediaElement{{MediaType: "image", AttachmentID: attachmentID}},
		}},
	})
}

func (a *Adapter) sendFile(ctx context.Context, token, userID, fileToken string) (*model.SendMessageResult, error) {
	return a.send(ctx, token, userID, message{Attachment: &attachment{Type: "file", Payload: attachmentPayload{Token: fileToken}}})
}

func (a *Adapter) SendMessage(ctx context.Context, platformUserID, text string) (*model.SendMessageResult, error) {
	if platformUserID == "" || strings.TrimSpace(text) == "" {
		return nil, model.MissingParameter(model.PlatformZalo, "platform_user_id", "content")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return a.sendText(ctx, token, platformUserID, content.Truncate(text, textLimit))
}

// SendMessageWithAttachments uploads and sends each attachment separately
// after the text. Video and audio cannot be sent by an OA.
func (a *Adapter) SendMessageWithAttachments(ctx context.Context, platformUserID, text string, attachments []model.Attachment) (*model.SendMessageResult, error) {
	if platformUserID == "" {
		return nil, model.MissingParameter(model.PlatformZalo, "platform_user_id")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return content.SendSequence(ctx, model.PlatformZalo, text, attachments,
		func(ctx context.Context, text string) (*model.SendMessageResult, error) {
			return a.sendText(ctx, token, platformUserID, content.Truncate(text, textLimit))
		},
		func(ctx context.Context, att model.Attachment) (*model.SendMessageResult, error) {
			switch att.Type {
			case model.AttachmentImage:
				id, err := a.uploadImage(ctx, token, att.URL)
				if err != nil {
					return nil, err
				}
				return a.sendImage(ctx, token, platformUserID, "", id)
			case model.AttachmentFile:
				fileToken, err := a.uploadFile(ctx, token, att.URL)
				if err != nil {
					return nil, err
				}
				return a.sendFile(ctx, token, platformUserID, fileToken)
			}
			return nil, model.NewError(model.ErrUnsupported, model.PlatformZalo, string(att.Type)+" attachments are not supported")
		})
}

type userDetail struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	Avatars     struct {
		Large string `json:"240"`
		Small string `json:"120"`
	} `json:"avatars"`
}

func (a *Adapter) GetCustomerInfo(ctx context.Context, platformUserID string) (*model.CustomerInfo, error) {
	if platformUserID == "" {
		return nil, model.MissingParameter(model.PlatformZalo, "platform_user_id")
	}
	token, err := a.auth.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	params, err := jsonParam(map[string]string{"user_id": platformUserID})
	if err != nil {
		return nil, err
	}
	var d userDetail
	if err := a.api.Get(ctx, pathUserDetail, params, token, &d); err != nil {
		return nil, err
	}
	avatar := d.Avatar
	if avatar == "" {
		avatar = d.Avatars.Large
	}
	return &model.CustomerInfo{PlatformUserID: platformUserID, Name: d.DisplayName, Avatar: avatar}, nil
}
