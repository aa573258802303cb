package graph

import (
	"context"

	"crm-social/domain/model"
)

type Recipient struct {
	ID string `json:"id"`
}

type AttachmentPayload struct {
	URL        string `json:"url"`
	IsReusable bool   `json:"is_reusable,omitempty"`
}

type MessageAttachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

type Message struct {
	Text       string             `json:"text,omitempty"`
	Attachment *MessageAttachment `json:"attachment,omitempty"`
}

// SendRequest is the body of the Send API shared by Messenger and Instagram messaging.
type SendRequest struct {
	Recipient     Recipient `json:"recipient"`
	MessagingType string    `json:"messaging_type,omitempty"`
	Message       *Message  `json:"message,omitempty"`
	SenderAction  string    `json:"sender_action,omitempty"`
}

type SendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// Sender actions.
const (
	ActionTypingOn  = "typing_on"
	ActionTypingOff = "typing_off"
	ActionMarkSeen  = "mark_seen"
)

// TextMessage builds a RESPONSE text message to recipientID.
func TextMessage(recipientID, text string) SendRequest {
	return SendRequest{Recipient: Recipient{ID: recipientID}, MessagingType: "RESPONSE", Message: &Message{Text: text}}
}

// AttachmentMessage builds a RESPONSE message carrying one attachment by URL.
func AttachmentMessage(recipientID string, att model.Attachment) SendRequest {
	return SendRequest{
		Recipient:     Recipient{ID: recipientID},
		MessagingType: "RESPONSE",
		Message: &Message{Attachment: &MessageAttachment{
			Type:    string(att.Type),
			Payload: AttachmentPayload{URL: att.URL, IsReusable: true},
		}},
	}
}

// Send posts req to path (e.g. "me/messages") and maps the reply.
func (c *Client) Send(ctx context.Context, path, accessToken string, req SendRequest) (*model.SendMessageResult, error) {
	var resp SendResponse
	if err := c.PostJSON(ctx, path, req, accessToken, &resp); err != nil {
		return nil, err
	}
	return &model.SendMessageResult{Success: true, PlatformMessageID: resp.MessageID}, nil
}
