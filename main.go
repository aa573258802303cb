package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/cache"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/configuration"
	"crm-social/infrastructure/logger"
	"crm-social/infrastructure/platform"
	"crm-social/infrastructure/realtime"
	"crm-social/infrastructure/retry"
	httpHandler "crm-social/interfaces/http"
	"crm-social/server"
	"crm-social/usecase"

	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)
	app := configuration.C.App

	st, err := InitiateDatabase(ctx)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		os.Exit(1)
	}
	defer st.close()

	publisher, closePublisher := InitiateEvents(ctx)
	defer closePublisher()

	var stateStore repository.IOAuthStateStore
	if rc := configuration.C.RedisClient; rc.Host != "" {
		redisClient, err := cache.NewCache(ctx, fmt.Sprintf("%s:%s", rc.Host, rc.Port), rc.Username, rc.Password)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Redis not available - continuing with in-memory OAuth state")
		} else {
			defer redisClient.Close()
		}
		stateStore = cache.NewStateStore(redisClient)
	} else {
		stateStore = cache.NewStateStore(nil)
	}

	factory := platform.NewFactory(platform.Deps{
		Credentials: st.credentials,
		Events:      publisher,
		Platforms:   configuration.C.Platforms,
		Adapter:     configuration.C.Adapter,
	})

	shareHub := realtime.NewShareHub()
	connectionUsecase := usecase.NewConnectionUsecase(st.credentials, factory)
	messagingUsecase := usecase.NewMessagingUsecase(factory)
	metricsUsecase := usecase.NewMetricsUsecase(factory, st.snapshots)

	handlers := server.Handlers{
		Messaging:  httpHandler.NewMessagingHandler(messagingUsecase),
		Connection: httpHandler.NewConnectionHandler(connectionUsecase),
	}
	if st.shares != nil {
		shareUsecase := usecase.NewShareUsecase(st.shares, factory, publisher, configuration.C.Share.Platforms).
			WithBroadcaster(shareHub.BroadcastShareStatus)
		handlers.Publish = httpHandler.NewPublishHandler(shareUsecase, metricsUsecase)
		handlers.ShareStream = shareHub.Serve
	} else {
		logger.GetLogger().Info("No SQL store for publish records in this environment; publish API disabled")
	}

	oauthHTTP := &http.Client{Timeout: configuration.C.Adapter.HTTPTimeout()}
	fb := configuration.C.Platforms.Facebook
	fbGraph := graph.NewClient(model.PlatformFacebook, fb.AuthBaseURL, oauthHTTP, retry.Exponential(configuration.C.Adapter.GraphRetries, 500*time.Millisecond))
	handlers.FacebookOAuth = httpHandler.NewFacebookOAuthHandler(fb, fbGraph, stateStore, connectionUsecase)
	handlers.YouTubeAuth = httpHandler.NewYouTubeAuthHandler(configuration.C.Platforms.YouTube, stateStore, connectionUsecase, oauthHTTP)

	router := server.InitiateRouter(handlers, app.SecretKey, app.AllowOrigins)

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled, "store": configuration.C.Database.Store}).Info("Starting application")
	g.Go(func() error {
		// No write timeout: the SSE stream is long-lived.
		httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
			} else {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}
