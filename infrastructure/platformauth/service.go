// Package platformauth owns the per-credential OAuth token lifecycle: cached
// access tokens, buffered expiry checks, single-flight refresh and probe
// verification.
package platformauth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/logger"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultExpiryBuffer is subtracted from expiresAt before a token is considered usable.
const DefaultExpiryBuffer = 5 * time.Minute

// RefreshedToken is the outcome of a platform refresh exchange.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string        // empty when the platform does not rotate refresh tokens
	ExpiresIn    time.Duration // 0 when the new token does not expire
}

// Refresher is the platform-specific half of the token lifecycle.
type Refresher interface {
	Refresh(ctx context.Context, cred model.PlatformCredential) (*RefreshedToken, error)
	// Probe makes a lightweight authenticated call with accessToken.
	Probe(ctx context.Context, cred model.PlatformCredential, accessToken string) error
}

// RefreshHook is invoked after every successful refresh with the updated credential.
type RefreshHook func(ctx context.Context, cred model.PlatformCredential)

type Option func(*Service)

// WithBuffer overrides DefaultExpiryBuffer.
func WithBuffer(d time.Duration) Option { return func(s *Service) { s.buffer = d } }

// WithClock injects the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRefreshHook registers a callback run after each successful refresh.
func WithRefreshHook(h RefreshHook) Option { return func(s *Service) { s.onRefreshed = h } }

// Service caches one credential's token in memory. It never writes to the
// credential store itself; persistence is left to the RefreshHook owner.
type Service struct {
	platform    model.Platform
	refresher   Refresher
	buffer      time.Duration
	now         func() time.Time
	onRefreshed RefreshHook

	mu    sync.RWMutex
	cred  *model.PlatformCredential
	group singleflight.Group
}

// NewService builds a token service around a copy of cred. A nil refresher
// means the credential has no refresh path.
func NewService(cred *model.PlatformCredential, refresher Refresher, opts ...Option) *Service {
	s := &Service{refresher: refresher, buffer: DefaultExpiryBuffer, now: time.Now}
	if cred != nil {
		c := *cred
		s.cred = &c
		s.platform = c.Platform
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credential returns a snapshot of the current credential.
func (s *Service) Credential() model.PlatformCredential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return model.PlatformCredential{Platform: s.platform}
	}
	return *s.cred
}

func (s *Service) cachedToken() (string, bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return "", false, false
	}
	if s.cred.AccessToken == "" || s.cred.ExpiresWithin(s.now(), s.buffer) {
		return "", false, true
	}
	return s.cred.AccessToken, true, true
}

// GetValidAccessToken returns the cached token while now < expiresAt - buffer,
// otherwise refreshes it. Concurrent callers share one in-flight refresh.
func (s *Service) GetValidAccessToken(ctx context.Context) (string, error) {
	tok, valid, exists := s.cachedToken()
	if !exists {
		return "", model.NewError(model.ErrAuthExpired, s.platform, "no credential stored for platform")
	}
	if valid {
		return tok, nil
	}

	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		// a refresh that finished just before this flight started already did the work
		if tok, valid, _ := s.cachedToken(); valid {
			return tok, nil
		}
		return s.RefreshToken(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// RefreshToken performs the platform exchange and caches the new token.
func (s *Service) RefreshToken(ctx context.Context) (string, error) {
	cred := s.Credential()
	if s.refresher == nil {
		return "", model.NewError(model.ErrAuthExpired, s.platform, "access token expired and platform has no refresh path")
	}
	refreshed, err := s.refresher.Refresh(ctx, cred)
	if err != nil {
		logger.GetLogger().WithField("platform", s.platform).WithField("user_id", cred.UserID).WithField("error", err).Warn("token refresh failed")
		return "", model.WrapError(model.ErrRefreshFailed, s.platform, "token refresh failed", err)
	}
	if refreshed == nil || refreshed.AccessToken == "" {
		return "", model.NewError(model.ErrRefreshFailed, s.platform, "platform returned an empty access token")
	}

	s.mu.Lock()
	if s.cred == nil {
		s.cred = &cred
	}
	s.cred.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		s.cred.RefreshToken = refreshed.RefreshToken
	}
	if refreshed.ExpiresIn > 0 {
		s.cred.ExpiresAt = s.now().Add(refreshed.ExpiresIn).UTC()
	} else {
		s.cred.ExpiresAt = time.Time{}
	}
	updated := *s.cred
	s.mu.Unlock()

	logger.GetLogger().WithFields(map[string]interface{}{
		"platform":  s.platform,
		"user_id":   updated.UserID,
		"expiresAt": updated.ExpiresAt,
	}).Info("access token refreshed")
	if s.onRefreshed != nil {
		s.onRefreshed(ctx, updated)
	}
	return updated.AccessToken, nil
}

// VerifyAuth is a health check: any failure yields false rather than an error.
func (s *Service) VerifyAuth(ctx context.Context) bool {
	tok, err := s.GetValidAccessToken(ctx)
	if err != nil {
		return false
	}
	if s.refresher == nil {
		return true
	}
	if err := s.refresher.Probe(ctx, s.Credential(), tok); err != nil {
		logger.GetLogger().WithField("platform", s.platform).WithField("error", err).Info("auth verification failed")
		return false
	}
	return true
}

type tokenSource struct {
	ctx context.Context
	s   *Service
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.s.GetValidAccessToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer", Expiry: ts.s.Credential().ExpiresAt}, nil
}

// TokenSource adapts the service to oauth2 for clients built on golang.org/x/oauth2.
func (s *Service) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, s: s}
}

// HTTPClient returns a client that sets the bearer token on every request.
func (s *Service) HTTPClient(ctx context.Context, base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   base.Timeout,
		Transport: &oauth2.Transport{Source: s.TokenSource(ctx), Base: transport},
	}
}
