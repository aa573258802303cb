package repository

import (
	"context"

	"crm-social/domain/model"
)

// IPostingAdapter publishes content to a platform and reads back engagement.
type IPostingAdapter interface {
	Publish(ctx context.Context, req *model.PublishRequest) *model.PublishResult
	Update(ctx context.Context, postID string, req *model.PublishRequest) *model.PublishResult
	Delete(ctx context.Context, postID string) (bool, error)
	// GetMetrics never fails; any platform error yields zeroed metrics.
	GetMetrics(ctx context.Context, postID string) *model.PostMetrics
}

// IMessagingAdapter sends direct messages to an end user of a platform.
type IMessagingAdapter interface {
	SendMessage(ctx context.Context, platformUserID, content string) (*model.SendMessageResult, error)
	GetCustomerInfo(ctx context.Context, platformUserID string) (*model.CustomerInfo, error)
}

// IAttachmentSender is implemented by messaging adapters able to send files.
type IAttachmentSender interface {
	// SendMessageWithAttachments returns the outcome of the last platform call only.
	SendMessageWithAttachments(ctx context.Context, platformUserID, content string, attachments []model.Attachment) (*model.SendMessageResult, error)
}

// ITypingIndicator is implemented by messaging adapters supporting typing indicators.
type ITypingIndicator interface {
	SendTypingIndicator(ctx context.Context, platformUserID string, on bool) error
}

// IReadMarker is implemented by messaging adapters supporting read receipts.
type IReadMarker interface {
	MarkAsRead(ctx context.Context, platformUserID string) error
}

// IPlatformAdapter is the per (platform, user) instance cached by the factory.
type IPlatformAdapter interface {
	IPostingAdapter
	IMessagingAdapter
	Platform() model.Platform
	// VerifyAuth probes the platform with the current token; false on any failure.
	VerifyAuth(ctx context.Context) bool
}

// IPlatformFactory resolves one adapter instance per (platform, user).
type IPlatformFactory interface {
	Create(ctx context.Context, platform model.Platform, userID string) (IPlatformAdapter, error)
	ClearCache()
	ClearUserCache(platform model.Platform, userID string)
}
