package model

// SendMessageResult is returned by every messaging send call.
type SendMessageResult struct {
	Success           bool   `json:"success"`
	PlatformMessageID string `json:"platform_message_id,omitempty"`
}

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
	AttachmentFile  AttachmentType = "file"
)

// Attachment is a remotely hosted file sent alongside a direct message.
type Attachment struct {
	Type AttachmentType `json:"type"`
	URL  string         `json:"url"`
	Name string         `json:"name,omitempty"`
}

// CustomerInfo is the basic profile of an end user on a messaging platform.
type CustomerInfo struct {
	PlatformUserID string `json:"platform_user_id"`
	Name           string `json:"name"`
	Avatar         string `json:"avatar"`
}
