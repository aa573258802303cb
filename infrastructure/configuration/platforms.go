package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"crm-social/domain/model"
)

const (
	defaultGraphURL          = "https://graph.facebook.com/v19.0"
	defaultInstagramGraphURL = "https://graph.instagram.com/v21.0"
	defaultInstagramAuthURL  = "https://graph.instagram.com"
)

// App returns the app registration of platform.
func (p *Platforms) App(platform model.Platform) PlatformApp {
	switch platform {
	case model.PlatformFacebook:
		return p.Facebook
	case model.PlatformInstagram:
		return p.Instagram
	case model.PlatformYouTube:
		return p.YouTube
	case model.PlatformZalo:
		return p.Zalo
	}
	return PlatformApp{}
}

func initPlatforms(C *Config) {
	scheme := "http"
	if C.App.TLSEnabled {
		scheme = "https"
	}
	port := C.App.Port
	if port == 0 {
		port = 10001
	}
	apps := []struct {
		app      *PlatformApp
		prefix   string
		api      string
		auth     string
		callback string
	}{
		{&C.Platforms.Facebook, "FACEBOOK", defaultGraphURL, defaultGraphURL, "facebook"},
		{&C.Platforms.Instagram, "INSTAGRAM", defaultInstagramGraphURL, defaultInstagramAuthURL, "instagram"},
		{&C.Platforms.YouTube, "YOUTUBE", "", "", "youtube"},
		{&C.Platforms.Zalo, "ZALO", "https://openapi.zalo.me", "https://oauth.zaloapp.com", "zalo"},
	}
	for _, a := range apps {
		a.app.AppID = getConfigValue(a.app.AppID, a.prefix+"_APP_ID", "")
		a.app.AppSecret = getConfigValue(a.app.AppSecret, a.prefix+"_APP_SECRET", "")
		a.app.RedirectURI = getConfigValue(a.app.RedirectURI, a.prefix+"_REDIRECT_URI",
			fmt.Sprintf("%s://localhost:%d/auth/%s/callback", scheme, port, a.callback))
		a.app.APIBaseURL = getConfigValue(a.app.APIBaseURL, a.prefix+"_API_BASE_URL", a.api)
		a.app.AuthBaseURL = getConfigValue(a.app.AuthBaseURL, a.prefix+"_AUTH_BASE_URL", a.auth)
	}
}

func initAdapter(C *Config) {
	a := &C.Adapter
	setInt := func(field *int, envKey string, def int) {
		if v := os.Getenv(envKey); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*field = n
			}
		}
		if *field <= 0 {
			*field = def
		}
	}
	setInt(&a.ContainerPollAttempts, "ADAPTER_CONTAINER_POLL_ATTEMPTS", 15)
	setInt(&a.ContainerPollIntervalSeconds, "ADAPTER_CONTAINER_POLL_INTERVAL", 2)
	setInt(&a.UploadPollAttempts, "ADAPTER_UPLOAD_POLL_ATTEMPTS", 60)
	setInt(&a.UploadPollIntervalSeconds, "ADAPTER_UPLOAD_POLL_INTERVAL", 5)
	setInt(&a.UploadRetries, "ADAPTER_UPLOAD_RETRIES", 3)
	setInt(&a.UploadBaseDelayMillis, "ADAPTER_UPLOAD_BASE_DELAY_MS", 1000)
	setInt(&a.ResumeAttempts, "ADAPTER_RESUME_ATTEMPTS", 10)
	setInt(&a.FanOutBatchSize, "ADAPTER_FANOUT_BATCH_SIZE", 50)
	setInt(&a.FanOutConcurrency, "ADAPTER_FANOUT_CONCURRENCY", 5)
	setInt(&a.TokenBufferSeconds, "ADAPTER_TOKEN_BUFFER", 300)
	setInt(&a.HTTPTimeoutSeconds, "ADAPTER_HTTP_TIMEOUT", 30)
	setInt(&a.GraphRetries, "ADAPTER_GRAPH_RETRIES", 3)
}

func (a Adapter) ContainerPollInterval() time.Duration {
	return time.Duration(a.ContainerPollIntervalSeconds) * time.Second
}

func (a Adapter) UploadPollInterval() time.Duration {
	return time.Duration(a.UploadPollIntervalSeconds) * time.Second
}

func (a Adapter) UploadBaseDelay() time.Duration {
	return time.Duration(a.UploadBaseDelayMillis) * time.Millisecond
}

func (a Adapter) TokenBuffer() time.Duration {
	return time.Duration(a.TokenBufferSeconds) * time.Second
}

func (a Adapter) HTTPTimeout() time.Duration {
	return time.Duration(a.HTTPTimeoutSeconds) * time.Second
}

// getConfigValue gets value from config first, then environment variable, then default
func getConfigValue(configValue, envKey, defaultValue string) string {
	// Environment variable takes precedence when provided
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}
