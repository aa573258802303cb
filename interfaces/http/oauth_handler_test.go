package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/cache"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/configuration"
	"crm-social/infrastructure/retry"
	httpHandler "crm-social/interfaces/http"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newFakeGraph(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case q.Get("grant_type") == "fb_exchange_token":
			assert.Equal(t, "short-token", q.Get("fb_exchange_token"))
			_, _ = w.Write([]byte(`{"access_token":"long-token","token_type":"bearer","expires_in":5183944}`))
		case q.Get("code") == "good-code":
			assert.Equal(t, "fb-app", q.Get("client_id"))
			_, _ = w.Write([]byte(`{"access_token":"short-token","token_type":"bearer","expires_in":3600}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid verification code format.","type":"OAuthException","code":100}}`))
		}
	})
	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "long-token", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"page-1","name":"Shop One","access_token":"page-token-1"},{"id":"page-2","name":"Shop Two","access_token":"page-token-2"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func authURLState(t *testing.T, router *gin.Engine, path string) string {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		AuthURL string `json:"auth_url"`
		State   string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	u, err := url.Parse(body.AuthURL)
	require.NoError(t, err)
	assert.Equal(t, body.State, u.Query().Get("state"))
	return body.State
}

func TestFacebookOAuthHandler_ConnectFlow(t *testing.T) {
	srv := newFakeGraph(t)
	conn := new(mockConnectionUsecase)
	conn.On("Connect", mock.Anything, mock.MatchedBy(func(c *model.PlatformCredential) bool {
		return c.UserID == "u1" && c.Platform == model.PlatformFacebook && c.AccessToken == "page-token-2" &&
			c.PlatformAccountID == "page-2" && c.AccountName == "Shop Two" && c.ExpiresAt.IsZero() && c.RefreshToken == ""
	})).Return(nil).Once()
	app := configuration.PlatformApp{AppID: "fb-app", AppSecret: "fb-secret", RedirectURI: "https://crm.example.com/auth/facebook/callback"}
	h := httpHandler.NewFacebookOAuthHandler(app, graph.NewClient(model.PlatformFacebook, srv.URL, srv.Client(), retry.Policy{}), cache.NewMemoryStateStore(), conn)

	r := gin.New()
	r.GET("/api/auth/facebook", asUser("u1"), h.GetAuthURL)
	r.GET("/auth/facebook/callback", h.Callback)

	state := authURLState(t, r, "/api/auth/facebook")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/facebook/callback?code=good-code&page_id=page-2&state="+state, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "page-2", decode(t, w)["page_id"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/facebook/callback?code=good-code&state="+state, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_state", decode(t, w)["error"])
	conn.AssertExpectations(t)
}

func TestFacebookOAuthHandler_BadCode(t *testing.T) {
	srv := newFakeGraph(t)
	conn := new(mockConnectionUsecase)
	states := cache.NewMemoryStateStore()
	app := configuration.PlatformApp{AppID: "fb-app", AppSecret: "fb-secret", RedirectURI: "https://crm.example.com/cb"}
	h := httpHandler.NewFacebookOAuthHandler(app, graph.NewClient(model.PlatformFacebook, srv.URL, srv.Client(), retry.Policy{}), states, conn)
	r := gin.New()
	r.GET("/auth/facebook/callback", h.Callback)
	require.NoError(t, states.Save(t.Context(), "s1", "u1", time.Minute))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/facebook/callback?code=bad&state=s1", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, model.ErrPlatformRejected.Error(), decode(t, w)["kind"])
	conn.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
}

func TestFacebookOAuthHandler_NotConfigured(t *testing.T) {
	h := httpHandler.NewFacebookOAuthHandler(configuration.PlatformApp{}, nil, cache.NewMemoryStateStore(), new(mockConnectionUsecase))
	r := gin.New()
	r.GET("/api/auth/facebook", asUser("u1"), h.GetAuthURL)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/facebook", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestYouTubeAuthHandler_ConnectFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "yt-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.a","refresh_token":"1//r","expires_in":3600,"token_type":"Bearer"}`))
	})
	mux.HandleFunc("GET /youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ya29.a", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("mine"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"UC123","snippet":{"title":"My Channel"}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := new(mockConnectionUsecase)
	conn.On("Connect", mock.Anything, mock.MatchedBy(func(c *model.PlatformCredential) bool {
		return c.UserID == "u7" && c.Platform == model.PlatformYouTube && c.AccessToken == "ya29.a" &&
			c.RefreshToken == "1//r" && c.PlatformAccountID == "UC123" && !c.ExpiresAt.IsZero()
	})).Return(nil).Once()
	app := configuration.PlatformApp{
		AppID:       "yt-client",
		AppSecret:   "yt-secret",
		RedirectURI: "https://crm.example.com/auth/youtube/callback",
		AuthBaseURL: srv.URL + "/token",
		APIBaseURL:  srv.URL + "/",
	}
	h := httpHandler.NewYouTubeAuthHandler(app, cache.NewMemoryStateStore(), conn, srv.Client())
	r := gin.New()
	r.GET("/api/auth/youtube", asUser("u7"), h.GetAuthURL)
	r.GET("/auth/youtube/callback", h.HandleCallback)

	state := authURLState(t, r, "/api/auth/youtube")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/youtube/callback?code=yt-code&state="+state, nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "UC123", body["channel_id"])
	assert.Equal(t, "My Channel", body["channel_name"])
	conn.AssertExpectations(t)
}

func TestYouTubeAuthHandler_OAuthError(t *testing.T) {
	h := httpHandler.NewYouTubeAuthHandler(configuration.PlatformApp{}, cache.NewMemoryStateStore(), new(mockConnectionUsecase), nil)
	r := gin.New()
	r.GET("/auth/youtube/callback", h.HandleCallback)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/youtube/callback?error=access_denied", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
