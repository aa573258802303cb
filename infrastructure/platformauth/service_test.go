package platformauth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/platformauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, cred model.PlatformCredential) (*platformauth.RefreshedToken, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platformauth.RefreshedToken), args.Error(1)
}

func (m *MockRefresher) Probe(ctx context.Context, cred model.PlatformCredential, accessToken string) error {
	args := m.Called(ctx, cred, accessToken)
	return args.Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func credential(expiresAt time.Time) *model.PlatformCredential {
	return &model.PlatformCredential{
		UserID:       "u1",
		Platform:     model.PlatformYouTube,
		AccessToken:  "t1",
		RefreshToken: "r1",
		ExpiresAt:    expiresAt,
	}
}

func TestGetValidAccessToken_ReturnsCachedToken(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	refresher := new(MockRefresher)
	svc := platformauth.NewService(credential(clock.now.Add(time.Hour)), refresher, platformauth.WithClock(clock.Now))

	tok, err := svc.GetValidAccessToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "t1", tok)
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestGetValidAccessToken_RefreshesInsideBuffer(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.Anything).
		Return(&platformauth.RefreshedToken{AccessToken: "t2", ExpiresIn: time.Hour}, nil).
		Once()
	// expires in 4 minutes: inside the 5 minute buffer
	svc := platformauth.NewService(credential(clock.now.Add(4*time.Minute)), refresher, platformauth.WithClock(clock.Now))

	tok, err := svc.GetValidAccessToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "t2", tok)
	refresher.AssertExpectations(t)
}

func TestGetValidAccessToken_ExpiredThenCachedWithinFiveMinutes(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.MatchedBy(func(c model.PlatformCredential) bool { return c.RefreshToken == "r1" })).
		Return(&platformauth.RefreshedToken{AccessToken: "t2", ExpiresIn: 3600 * time.Second}, nil).
		Once()
	svc := platformauth.NewService(credential(clock.now.Add(-time.Second)), refresher, platformauth.WithClock(clock.Now))

	first, err := svc.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	second, err := svc.GetValidAccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "t2", first)
	assert.Equal(t, "t2", second)
	assert.Equal(t, clock.now.Add(-5*time.Minute).Add(time.Hour), svc.Credential().ExpiresAt)
	refresher.AssertNumberOfCalls(t, "Refresh", 1)
}

type blockingRefresher struct {
	calls   int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRefresher) Refresh(ctx context.Context, cred model.PlatformCredential) (*platformauth.RefreshedToken, error) {
	if atomic.AddInt32(&b.calls, 1) == 1 {
		close(b.entered)
	}
	<-b.release
	return &platformauth.RefreshedToken{AccessToken: "fresh", ExpiresIn: time.Hour}, nil
}

func (b *blockingRefresher) Probe(ctx context.Context, cred model.PlatformCredential, accessToken string) error {
	return nil
}

func TestGetValidAccessToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	refresher := &blockingRefresher{entered: make(chan struct{}), release: make(chan struct{})}
	svc := platformauth.NewService(credential(time.Now().Add(-time.Minute)), refresher)

	const callers = 25
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = svc.GetValidAccessToken(context.Background())
		}(i)
	}
	<-refresher.entered
	time.Sleep(20 * time.Millisecond)
	close(refresher.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.calls))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "fresh", tokens[i])
	}
}

func TestGetValidAccessToken_NoRefreshPathIsAuthExpired(t *testing.T) {
	svc := platformauth.NewService(credential(time.Now().Add(-time.Minute)), nil)

	_, err := svc.GetValidAccessToken(context.Background())

	assert.ErrorIs(t, err, model.ErrAuthExpired)
}

func TestGetValidAccessToken_MissingCredentialIsAuthExpired(t *testing.T) {
	svc := platformauth.NewService(nil, new(MockRefresher))

	_, err := svc.GetValidAccessToken(context.Background())

	assert.ErrorIs(t, err, model.ErrAuthExpired)
}

func TestGetValidAccessToken_RefreshErrorIsRefreshFailed(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.Anything).Return(nil, errors.New("invalid_grant")).Once()
	svc := platformauth.NewService(credential(time.Now().Add(-time.Minute)), refresher)

	_, err := svc.GetValidAccessToken(context.Background())

	assert.ErrorIs(t, err, model.ErrRefreshFailed)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestRefreshToken_InvokesHookWithUpdatedCredential(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.Anything).
		Return(&platformauth.RefreshedToken{AccessToken: "t2", RefreshToken: "r2", ExpiresIn: time.Hour}, nil)
	var got model.PlatformCredential
	svc := platformauth.NewService(credential(time.Now().Add(-time.Minute)), refresher,
		platformauth.WithRefreshHook(func(ctx context.Context, cred model.PlatformCredential) { got = cred }))

	_, err := svc.RefreshToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "t2", got.AccessToken)
	assert.Equal(t, "r2", got.RefreshToken)
	assert.Equal(t, "u1", got.UserID)
}

func TestVerifyAuth(t *testing.T) {
	t.Run("probe_ok", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Probe", mock.Anything, mock.Anything, "t1").Return(nil).Once()
		svc := platformauth.NewService(credential(time.Now().Add(time.Hour)), refresher)
		assert.True(t, svc.VerifyAuth(context.Background()))
	})
	t.Run("probe_failure_is_false_not_error", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Probe", mock.Anything, mock.Anything, "t1").Return(errors.New("OAuthException")).Once()
		svc := platformauth.NewService(credential(time.Now().Add(time.Hour)), refresher)
		assert.False(t, svc.VerifyAuth(context.Background()))
	})
	t.Run("expired_without_refresh_is_false", func(t *testing.T) {
		svc := platformauth.NewService(credential(time.Now().Add(-time.Hour)), nil)
		assert.False(t, svc.VerifyAuth(context.Background()))
	})
}
