package usecase_test

import (
	"context"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"

	"github.com/stretchr/testify/mock"
)

type MockShareRepo struct {
	mock.Mock
}

func (m *MockShareRepo) UpsertRecords(ctx context.Context, postRef, userID string, platforms []string, initialStatus string) ([]*model.ShareRecord, error) {
	args := m.Called(ctx, postRef, userID, platforms, initialStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ShareRecord), args.Error(1)
}

func (m *MockShareRepo) GetShareStatus(ctx context.Context, postRef, userID string) ([]*model.ShareRecord, error) {
	args := m.Called(ctx, postRef, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ShareRecord), args.Error(1)
}

func (m *MockShareRepo) UpdateRecordResult(ctx context.Context, recordID int64, status string, externalRef, permalink, errMsg *string) error {
	args := m.Called(ctx, recordID, status, externalRef, permalink, errMsg)
	return args.Error(0)
}

func (m *MockShareRepo) CreateAudit(ctx context.Context, audits []*model.ShareAudit) error {
	args := m.Called(ctx, audits)
	return args.Error(0)
}

type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) Create(ctx context.Context, platform model.Platform, userID string) (repository.IPlatformAdapter, error) {
	args := m.Called(ctx, platform, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.IPlatformAdapter), args.Error(1)
}

func (m *MockFactory) ClearCache() {
	m.Called()
}

func (m *MockFactory) ClearUserCache(platform model.Platform, userID string) {
	m.Called(platform, userID)
}

// MockAdapter implements the adapter contract plus every optional messaging capability.
type MockAdapter struct {
	mock.Mock
	platform model.Platform
}

func (m *MockAdapter) Platform() model.Platform { return m.platform }

func (m *MockAdapter) VerifyAuth(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockAdapter) Publish(ctx context.Context, req *model.PublishRequest) *model.PublishResult {
	return m.Called(ctx, req).Get(0).(*model.PublishResult)
}

func (m *MockAdapter) Update(ctx context.Context, postID string, req *model.PublishRequest) *model.PublishResult {
	return m.Called(ctx, postID, req).Get(0).(*model.PublishResult)
}

func (m *MockAdapter) Delete(ctx context.Context, postID string) (bool, error) {
	args := m.Called(ctx, postID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdapter) GetMetrics(ctx context.Context, postID string) *model.PostMetrics {
	return m.Called(ctx, postID).Get(0).(*model.PostMetrics)
}

func (m *MockAdapter) SendMessage(ctx context.Context, platformUserID, content string) (*model.SendMessageResult, error) {
	args := m.Called(ctx, platformUserID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendMessageResult), args.Error(1)
}

func (m *MockAdapter) GetCustomerInfo(ctx context.Context, platformUserID string) (*model.CustomerInfo, error) {
	args := m.Called(ctx, platformUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CustomerInfo), args.Error(1)
}

func (m *MockAdapter) SendMessageWithAttachments(ctx context.Context, platformUserID, content string, attachments []model.Attachment) (*model.SendMessageResult, error) {
	args := m.Called(ctx, platformUserID, content, attachments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendMessageResult), args.Error(1)
}

func (m *MockAdapter) SendTypingIndicator(ctx context.Context, platformUserID string, on bool) error {
	return m.Called(ctx, platformUserID, on).Error(0)
}

func (m *MockAdapter) MarkAsRead(ctx context.Context, platformUserID string) error {
	return m.Called(ctx, platformUserID).Error(0)
}

// basicAdapter hides the optional capabilities of the wrapped adapter.
type basicAdapter struct {
	repository.IPlatformAdapter
}

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) PublishEvent(ctx context.Context, evt *model.Event) error {
	return m.Called(ctx, evt).Error(0)
}

type MockCredentialRepo struct {
	mock.Mock
}

func (m *MockCredentialRepo) GetCredential(ctx context.Context, platform model.Platform, userID string) (*model.PlatformCredential, error) {
	args := m.Called(ctx, platform, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlatformCredential), args.Error(1)
}

func (m *MockCredentialRepo) SaveRefreshedToken(ctx context.Context, platform model.Platform, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	return m.Called(ctx, platform, userID, accessToken, refreshToken, expiresAt).Error(0)
}

func (m *MockCredentialRepo) UpsertCredential(ctx context.Context, cred *model.PlatformCredential) error {
	return m.Called(ctx, cred).Error(0)
}

func (m *MockCredentialRepo) DeleteCredential(ctx context.Context, platform model.Platform, userID string) error {
	return m.Called(ctx, platform, userID).Error(0)
}

type MockSnapshots struct {
	mock.Mock
}

func (m *MockSnapshots) GetSnapshot(ctx context.Context, platform model.Platform, postID string) (*model.PostMetrics, error) {
	args := m.Called(ctx, platform, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PostMetrics), args.Error(1)
}

func (m *MockSnapshots) UpsertSnapshot(ctx context.Context, platform model.Platform, postID string, metrics *model.PostMetrics) error {
	return m.Called(ctx, platform, postID, metrics).Error(0)
}
