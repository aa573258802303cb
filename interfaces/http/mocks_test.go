package http_test

import (
	"context"
	"time"

	"crm-social/domain/model"
	"crm-social/usecase"

	"github.com/stretchr/testify/mock"
)

type mockShareUsecase struct {
	mock.Mock
}

func (m *mockShareUsecase) Share(ctx context.Context, req usecase.ShareRequest) ([]usecase.ShareResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]usecase.ShareResult), args.Error(1)
}

func (m *mockShareUsecase) GetStatus(ctx context.Context, postRef, userID string) ([]*model.ShareRecord, error) {
	args := m.Called(ctx, postRef, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ShareRecord), args.Error(1)
}

func (m *mockShareUsecase) Update(ctx context.Context, platform model.Platform, userID, postID string, req *model.PublishRequest) (*model.PublishResult, error) {
	args := m.Called(ctx, platform, userID, postID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PublishResult), args.Error(1)
}

func (m *mockShareUsecase) Delete(ctx context.Context, platform model.Platform, userID, postID string) (bool, error) {
	args := m.Called(ctx, platform, userID, postID)
	return args.Bool(0), args.Error(1)
}

func (m *mockShareUsecase) Platforms() []string {
	return m.Called().Get(0).([]string)
}

type mockMetricsUsecase struct {
	mock.Mock
}

func (m *mockMetricsUsecase) GetMetrics(ctx context.Context, platform model.Platform, userID, postID string, maxAge time.Duration) (*model.PostMetrics, error) {
	args := m.Called(ctx, platform, userID, postID, maxAge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PostMetrics), args.Error(1)
}

func (m *mockMetricsUsecase) Sync(ctx context.Context, platform model.Platform, userID string, postIDs []string) (map[string]*model.PostMetrics, error) {
	args := m.Called(ctx, platform, userID, postIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*model.PostMetrics), args.Error(1)
}

type mockMessagingUsecase struct {
	mock.Mock
}

func (m *mockMessagingUsecase) Send(ctx context.Context, req usecase.SendMessageRequest) (*model.SendMessageResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendMessageResult), args.Error(1)
}

func (m *mockMessagingUsecase) MarkAsRead(ctx context.Context, platform model.Platform, userID, recipientID string) error {
	return m.Called(ctx, platform, userID, recipientID).Error(0)
}

func (m *mockMessagingUsecase) CustomerInfo(ctx context.Context, platform model.Platform, userID, recipientID string) (*model.CustomerInfo, error) {
	args := m.Called(ctx, platform, userID, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CustomerInfo), args.Error(1)
}

type mockConnectionUsecase struct {
	mock.Mock
}

func (m *mockConnectionUsecase) Connect(ctx context.Context, cred *model.PlatformCredential) error {
	return m.Called(ctx, cred).Error(0)
}

func (m *mockConnectionUsecase) Disconnect(ctx context.Context, platform model.Platform, userID string) error {
	return m.Called(ctx, platform, userID).Error(0)
}

func (m *mockConnectionUsecase) Status(ctx context.Context, userID string) ([]usecase.ConnectionStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]usecase.ConnectionStatus), args.Error(1)
}
