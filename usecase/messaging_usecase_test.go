package usecase_test

import (
	"context"
	"testing"

	"crm-social/domain/model"
	"crm-social/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMessagingUsecase_SendText(t *testing.T) {
	factory := new(MockFactory)
	fb := &MockAdapter{platform: model.PlatformFacebook}
	factory.On("Create", mock.Anything, model.PlatformFacebook, "u1").Return(fb, nil)
	fb.On("SendTypingIndicator", mock.Anything, "psid-1", true).Return(assert.AnError)
	fb.On("SendMessage", mock.Anything, "psid-1", "hello").Return(&model.SendMessageResult{Success: true, PlatformMessageID: "m1"}, nil)

	res, err := usecase.NewMessagingUsecase(factory).Send(context.Background(), usecase.SendMessageRequest{Platform: model.PlatformFacebook, UserID: "u1", RecipientID: "psid-1", Text: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "m1", res.PlatformMessageID)
	fb.AssertExpectations(t)
}

func TestMessagingUsecase_SendAttachments(t *testing.T) {
	factory := new(MockFactory)
	zl := &MockAdapter{platform: model.PlatformZalo}
	atts := []model.Attachment{{Type: model.AttachmentImage, URL: "https://cdn/a.png"}}
	factory.On("Create", mock.Anything, model.PlatformZalo, "u1").Return(zl, nil)
	zl.On("SendTypingIndicator", mock.Anything, "z-1", true).Return(nil)
	zl.On("SendMessageWithAttachments", mock.Anything, "z-1", "see", atts).Return(&model.SendMessageResult{Success: true, PlatformMessageID: "last"}, nil)

	res, err := usecase.NewMessagingUsecase(factory).Send(context.Background(), usecase.SendMessageRequest{Platform: model.PlatformZalo, UserID: "u1", RecipientID: "z-1", Text: "see", Attachments: atts})

	require.NoError(t, err)
	assert.Equal(t, "last", res.PlatformMessageID)
}

func TestMessagingUsecase_AttachmentsUnsupported(t *testing.T) {
	factory := new(MockFactory)
	inner := &MockAdapter{platform: model.PlatformYouTube}
	factory.On("Create", mock.Anything, model.PlatformYouTube, "u1").Return(basicAdapter{inner}, nil)

	_, err := usecase.NewMessagingUsecase(factory).Send(context.Background(), usecase.SendMessageRequest{
		Platform: model.PlatformYouTube, UserID: "u1", RecipientID: "c", Attachments: []model.Attachment{{Type: model.AttachmentFile, URL: "https://cdn/f.pdf"}},
	})

	assert.ErrorIs(t, err, model.ErrUnsupported)
}

func TestMessagingUsecase_NotImplementedPassesThrough(t *testing.T) {
	factory := new(MockFactory)
	inner := &MockAdapter{platform: model.PlatformYouTube}
	factory.On("Create", mock.Anything, model.PlatformYouTube, "u1").Return(basicAdapter{inner}, nil)
	inner.On("SendMessage", mock.Anything, "c", "hi").Return(nil, model.NewError(model.ErrNotImplemented, model.PlatformYouTube, "messaging not yet implemented"))

	_, err := usecase.NewMessagingUsecase(factory).Send(context.Background(), usecase.SendMessageRequest{Platform: model.PlatformYouTube, UserID: "u1", RecipientID: "c", Text: "hi"})

	assert.ErrorIs(t, err, model.ErrNotImplemented)
}

func TestMessagingUsecase_MarkAsReadAndCustomerInfo(t *testing.T) {
	factory := new(MockFactory)
	fb := &MockAdapter{platform: model.PlatformFacebook}
	ig := &MockAdapter{platform: model.PlatformInstagram}
	factory.On("Create", mock.Anything, model.PlatformFacebook, "u1").Return(fb, nil)
	factory.On("Create", mock.Anything, model.PlatformInstagram, "u1").Return(basicAdapter{ig}, nil)
	fb.On("MarkAsRead", mock.Anything, "psid-1").Return(nil)
	fb.On("GetCustomerInfo", mock.Anything, "psid-1").Return(&model.CustomerInfo{PlatformUserID: "psid-1", Name: "Lan"}, nil)

	uc := usecase.NewMessagingUsecase(factory)
	require.NoError(t, uc.MarkAsRead(context.Background(), model.PlatformFacebook, "u1", "psid-1"))
	assert.ErrorIs(t, uc.MarkAsRead(context.Background(), model.PlatformInstagram, "u1", "ig-1"), model.ErrUnsupported)

	info, err := uc.CustomerInfo(context.Background(), model.PlatformFacebook, "u1", "psid-1")
	require.NoError(t, err)
	assert.Equal(t, "Lan", info.Name)
}
