// Package platform resolves one adapter instance per (platform, user). Each
// instance owns a token service bound to the user's stored credential.
package platform

import (
	"context"
	"net/http"
	"sync"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/clients/facebook"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/clients/instagram"
	"crm-social/infrastructure/clients/youtube"
	"crm-social/infrastructure/clients/zalo"
	"crm-social/infrastructure/configuration"
	"crm-social/infrastructure/logger"
	"crm-social/infrastructure/platformauth"
	"crm-social/infrastructure/retry"

	"golang.org/x/sync/singleflight"
)

const graphRetryBase = 500 * time.Millisecond

// Builder constructs the platform half of an adapter.
type Builder struct {
	// Refresher may return nil for platforms without a refresh path.
	Refresher func() platformauth.Refresher
	Adapter   func(ctx context.Context, auth *platformauth.Service) (repository.IPlatformAdapter, error)
}

// Deps are the collaborators shared by every adapter the factory builds.
type Deps struct {
	Credentials repository.ICredentialStore
	// Events is optional; refreshed tokens are then only persisted.
	Events     repository.IEventPublisher
	Platforms  configuration.Platforms
	Adapter    configuration.Adapter
	HTTPClient *http.Client
}

// Factory caches adapters by "platform:userId". Concurrent Create calls for
// the same key build a single instance.
type Factory struct {
	deps     Deps
	builders map[model.Platform]Builder

	mu    sync.RWMutex
	cache map[string]repository.IPlatformAdapter
	// epoch moves on ClearCache, gens[key] on ClearUserCache of that key.
	epoch uint64
	gens  map[string]uint64
	group singleflight.Group
}

var _ repository.IPlatformFactory = (*Factory)(nil)

func NewFactory(deps Deps) *Factory {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: deps.Adapter.HTTPTimeout()}
	}
	f := &Factory{
		deps:  deps,
		cache: make(map[string]repository.IPlatformAdapter),
		gens:  make(map[string]uint64),
	}
	f.builders = map[model.Platform]Builder{
		model.PlatformFacebook:  f.facebookBuilder(),
		model.PlatformInstagram: f.instagramBuilder(),
		model.PlatformYouTube:   f.youtubeBuilder(),
		model.PlatformZalo:      f.zaloBuilder(),
	}
	return f
}

// Register replaces the builder of platform.
func (f *Factory) Register(platform model.Platform, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[platform] = b
}

func (f *Factory) Create(ctx context.Context, platform model.Platform, userID string) (repository.IPlatformAdapter, error) {
	if userID == "" {
		return nil, model.MissingParameter(platform, "userId")
	}
	key := model.CacheKey(platform, userID)

	f.mu.RLock()
	adapter, ok := f.cache[key]
	builder, known := f.builders[platform]
	f.mu.RUnlock()
	if ok {
		return adapter, nil
	}
	if !known {
		return nil, model.NewError(model.ErrUnsupported, platform, "unsupported platform")
	}

	ch := f.group.DoChan(key, func() (interface{}, error) {
		f.mu.RLock()
		cached, ok := f.cache[key]
		epoch, gen := f.epoch, f.gens[key]
		f.mu.RUnlock()
		if ok {
			return cached, nil
		}
		built, err := f.build(context.WithoutCancel(ctx), platform, userID, builder)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		// a clear of this key issued while building must not let the stale instance in
		if f.epoch == epoch && f.gens[key] == gen {
			f.cache[key] = built
		}
		f.mu.Unlock()
		return built, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(repository.IPlatformAdapter), nil
	}
}

func (f *Factory) build(ctx context.Context, platform model.Platform, userID string, b Builder) (repository.IPlatformAdapter, error) {
	cred, err := f.deps.Credentials.GetCredential(ctx, platform, userID)
	if err != nil {
		return nil, model.WrapError(model.ErrNetwork, platform, "failed to load credential", err)
	}
	if cred == nil {
		return nil, model.NewError(model.ErrAuthExpired, platform, "platform is not connected for this user")
	}
	app := f.deps.Platforms.App(platform)
	if cred.AppID == "" {
		cred.AppID = app.AppID
	}
	if cred.AppSecret == "" {
		cred.AppSecret = app.AppSecret
	}

	var refresher platformauth.Refresher
	if b.Refresher != nil {
		refresher = b.Refresher()
	}
	opts := []platformauth.Option{platformauth.WithRefreshHook(f.persistRefresh)}
	if buf := f.deps.Adapter.TokenBuffer(); buf > 0 {
		opts = append(opts, platformauth.WithBuffer(buf))
	}
	auth := platformauth.NewService(cred, refresher, opts...)

	adapter, err := b.Adapter(ctx, auth)
	if err != nil {
		return nil, err
	}
	logger.GetLogger().WithField("platform", platform).WithField("user_id", userID).Debug("platform adapter created")
	return adapter, nil
}

// persistRefresh stores a refreshed token. A failure is logged only; the
// in-memory token stays usable until the process restarts.
func (f *Factory) persistRefresh(ctx context.Context, cred model.PlatformCredential) {
	err := f.deps.Credentials.SaveRefreshedToken(ctx, cred.Platform, cred.UserID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt)
	if err != nil {
		logger.GetLogger().WithField("platform", cred.Platform).WithField("user_id", cred.UserID).WithField("error", err).Error("failed to persist refreshed token")
	}
	if f.deps.Events == nil {
		return
	}
	attrs := map[string]string{}
	if !cred.ExpiresAt.IsZero() {
		attrs["expires_at"] = cred.ExpiresAt.Format(time.RFC3339)
	}
	evt := &model.Event{Type: model.EventTokenRefreshed, Platform: cred.Platform, UserID: cred.UserID, Attributes: attrs, OccurredAt: time.Now().UTC()}
	if err := f.deps.Events.PublishEvent(ctx, evt); err != nil {
		logger.GetLogger().WithField("platform", cred.Platform).WithField("error", err).Warn("failed to publish token.refreshed event")
	}
}

func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]repository.IPlatformAdapter)
	f.gens = make(map[string]uint64)
	f.epoch++
}

func (f *Factory) ClearUserCache(platform model.Platform, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := model.CacheKey(platform, userID)
	delete(f.cache, key)
	f.gens[key]++
}

func (f *Factory) graphClient(platform model.Platform, baseURL string) *graph.Client {
	return graph.NewClient(platform, baseURL, f.deps.HTTPClient, retry.Exponential(f.deps.Adapter.GraphRetries, graphRetryBase))
}

func (f *Factory) zaloClient(baseURL string) *zalo.Client {
	return zalo.NewClient(baseURL, f.deps.HTTPClient).WithRetry(retry.Exponential(f.deps.Adapter.GraphRetries, graphRetryBase))
}

func (f *Factory) facebookBuilder() Builder {
	app := f.deps.Platforms.Facebook
	return Builder{
		Refresher: func() platformauth.Refresher {
			return facebook.NewRefresher(f.graphClient(model.PlatformFacebook, app.AuthBaseURL))
		},
		Adapter: func(_ context.Context, auth *platformauth.Service) (repository.IPlatformAdapter, error) {
			return facebook.NewAdapter(auth, f.graphClient(model.PlatformFacebook, app.APIBaseURL)), nil
		},
	}
}

func (f *Factory) instagramBuilder() Builder {
	app := f.deps.Platforms.Instagram
	return Builder{
		Refresher: func() platformauth.Refresher {
			return instagram.NewRefresher(
				f.graphClient(model.PlatformInstagram, app.AuthBaseURL),
				f.graphClient(model.PlatformInstagram, app.APIBaseURL))
		},
		Adapter: func(_ context.Context, auth *platformauth.Service) (repository.IPlatformAdapter, error) {
			return instagram.NewAdapter(auth, f.graphClient(model.PlatformInstagram, app.APIBaseURL), instagram.Options{
				PollAttempts: f.deps.Adapter.ContainerPollAttempts,
				PollInterval: f.deps.Adapter.ContainerPollInterval(),
			}), nil
		},
	}
}

func (f *Factory) youtubeBuilder() Builder {
	app := f.deps.Platforms.YouTube
	return Builder{
		Refresher: func() platformauth.Refresher {
			return youtube.NewRefresher(f.deps.HTTPClient, app.AuthBaseURL, app.APIBaseURL)
		},
		Adapter: func(ctx context.Context, auth *platformauth.Service) (repository.IPlatformAdapter, error) {
			// uploads are bounded by the caller's context, not a client timeout
			uploads := &http.Client{Transport: f.deps.HTTPClient.Transport}
			return youtube.NewClient(ctx, auth, youtube.Options{
				APIBaseURL:      app.APIBaseURL,
				HTTPClient:      uploads,
				UploadRetries:   f.deps.Adapter.UploadRetries,
				UploadBaseDelay: f.deps.Adapter.UploadBaseDelay(),
				ResumeAttempts:  f.deps.Adapter.ResumeAttempts,
				PollAttempts:    f.deps.Adapter.UploadPollAttempts,
				PollInterval:    f.deps.Adapter.UploadPollInterval(),
			})
		},
	}
}

func (f *Factory) zaloBuilder() Builder {
	app := f.deps.Platforms.Zalo
	return Builder{
		Refresher: func() platformauth.Refresher {
			return zalo.NewRefresher(app.AuthBaseURL, f.zaloClient(app.APIBaseURL), f.deps.HTTPClient)
		},
		Adapter: func(_ context.Context, auth *platformauth.Service) (repository.IPlatformAdapter, error) {
			return zalo.NewAdapter(auth, f.zaloClient(app.APIBaseURL), zalo.Options{
				BatchSize:   f.deps.Adapter.FanOutBatchSize,
				Concurrency: f.deps.Adapter.FanOutConcurrency,
				MediaClient: f.deps.HTTPClient,
			}), nil
		},
	}
}
