package http

import (
	"context"
	"net/http"
	"strings"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	youtubeclient "crm-social/infrastructure/clients/youtube"
	"crm-social/infrastructure/configuration"
	"crm-social/infrastructure/logger"
	"crm-social/usecase"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// IYouTubeAuthHandler defines the interface for YouTube authentication handlers
type IYouTubeAuthHandler interface {
	GetAuthURL(ctx *gin.Context)
	HandleCallback(ctx *gin.Context)
}

// YouTubeAuthHandler implements the YouTube OAuth2 connect flow
type YouTubeAuthHandler struct {
	oauth2Config *oauth2.Config
	apiBaseURL   string
	httpClient   *http.Client
	states       repository.IOAuthStateStore
	connection   usecase.IConnectionUsecase
}

// NewYouTubeAuthHandler uses app.AuthBaseURL as token endpoint when set.
func NewYouTubeAuthHandler(app configuration.PlatformApp, states repository.IOAuthStateStore, connection usecase.IConnectionUsecase, httpClient *http.Client) IYouTubeAuthHandler {
	conf := youtubeclient.OAuthConfig(app.AppID, app.AppSecret, app.RedirectURI)
	if app.AuthBaseURL != "" {
		conf.Endpoint.TokenURL = app.AuthBaseURL
	}
	if len(app.Scopes) > 0 {
		conf.Scopes = app.Scopes
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &YouTubeAuthHandler{
		oauth2Config: conf,
		apiBaseURL:   app.APIBaseURL,
		httpClient:   httpClient,
		states:       states,
		connection:   connection,
	}
}

// GetAuthURL handles GET /api/auth/youtube
func (h *YouTubeAuthHandler) GetAuthURL(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	if h.oauth2Config.ClientID == "" || h.oauth2Config.RedirectURL == "" {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "youtube oauth not configured"})
		return
	}
	state := randomState()
	if err := h.states.Save(ctx.Request.Context(), state, userID, stateTTL); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed to save youtube oauth state")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "state_store_failed"})
		return
	}
	authURL := h.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	ctx.JSON(http.StatusOK, gin.H{"auth_url": authURL, "state": state})
}

// HandleCallback handles GET /auth/youtube/callback
func (h *YouTubeAuthHandler) HandleCallback(ctx *gin.Context) {
	lg := logger.GetLogger()
	if errorParam := ctx.Query("error"); errorParam != "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":       "OAuth error: " + errorParam,
			"description": ctx.Query("error_description"),
		})
		return
	}
	code := ctx.Query("code")
	if code == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Authorization code not found"})
		return
	}
	reqCtx := ctx.Request.Context()
	userID, ok, err := h.states.Consume(reqCtx, ctx.Query("state"))
	if err != nil {
		lg.WithField("error", err).Error("failed to read youtube oauth state")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "state_store_failed"})
		return
	}
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state", "action": "request a new auth_url"})
		return
	}

	oauthCtx := context.WithValue(reqCtx, oauth2.HTTPClient, h.httpClient)
	token, err := h.oauth2Config.Exchange(oauthCtx, code)
	if err != nil {
		lg.WithField("error", err).Error("youtube code exchange failed")
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "Failed to exchange code for token"})
		return
	}
	if token.RefreshToken == "" {
		lg.WithField("user_id", userID).Warn("youtube returned no refresh token; the connection will expire with the access token")
	}
	channel, err := h.lookupChannel(oauthCtx, token)
	if err != nil {
		lg.WithField("error", err).Error("youtube channel lookup failed")
		respondError(ctx, err)
		return
	}

	if err := h.connection.Connect(reqCtx, &model.PlatformCredential{
		UserID:            userID,
		Platform:          model.PlatformYouTube,
		AppID:             h.oauth2Config.ClientID,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         token.Expiry,
		PlatformAccountID: channel.Id,
		AccountName:       channel.Snippet.Title,
		Scopes:            strings.Join(h.oauth2Config.Scopes, " "),
	}); err != nil {
		lg.WithField("error", err).Error("failed to store youtube credential")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "store_token_failed"})
		return
	}
	if ctx.Query("frontend") == "1" {
		ctx.Data(http.StatusOK, "text/html; charset=utf-8", []byte(connectedPage("youtube-oauth", channel.Id, channel.Snippet.Title)))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"connected": true, "channel_id": channel.Id, "channel_name": channel.Snippet.Title})
}

func (h *YouTubeAuthHandler) lookupChannel(ctx context.Context, token *oauth2.Token) (*youtube.Channel, error) {
	opts := []option.ClientOption{option.WithHTTPClient(h.oauth2Config.Client(ctx, token))}
	if h.apiBaseURL != "" {
		opts = append(opts, option.WithEndpoint(h.apiBaseURL))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	resp, err := service.Channels.List([]string{"id", "snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, model.WrapError(model.ErrNetwork, model.PlatformYouTube, "channel lookup failed", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, model.NewError(model.ErrPlatformRejected, model.PlatformYouTube, "no channel found for authenticated user")
	}
	return resp.Items[0], nil
}
