package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-social/domain/model"
	httpHandler "crm-social/interfaces/http"
	"crm-social/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}

type fixture struct {
	share     *mockShareUsecase
	metrics   *mockMetricsUsecase
	messaging *mockMessagingUsecase
	conn      *mockConnectionUsecase
	router    *gin.Engine
}

func newFixture(userID string) *fixture {
	f := &fixture{
		share:     new(mockShareUsecase),
		metrics:   new(mockMetricsUsecase),
		messaging: new(mockMessagingUsecase),
		conn:      new(mockConnectionUsecase),
	}
	publish := httpHandler.NewPublishHandler(f.share, f.metrics)
	messaging := httpHandler.NewMessagingHandler(f.messaging)
	connection := httpHandler.NewConnectionHandler(f.conn)

	r := gin.New()
	api := r.Group("/api", asUser(userID))
	api.GET("/platforms", publish.GetPlatforms)
	api.POST("/posts/:postRef/publish", publish.Publish)
	api.GET("/posts/:postRef/status", publish.GetStatus)
	api.PATCH("/platforms/:platform/posts/:postId", publish.Update)
	api.DELETE("/platforms/:platform/posts/:postId", publish.Delete)
	api.GET("/platforms/:platform/posts/:postId/metrics", publish.GetMetrics)
	api.POST("/platforms/:platform/metrics/sync", publish.SyncMetrics)
	api.POST("/platforms/:platform/customers/:customerId/messages", messaging.SendMessage)
	api.POST("/platforms/:platform/customers/:customerId/read", messaging.MarkAsRead)
	api.GET("/platforms/:platform/customers/:customerId", messaging.GetCustomerInfo)
	api.GET("/connections", connection.Status)
	api.DELETE("/connections/:platform", connection.Disconnect)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPublishHandler_Publish(t *testing.T) {
	f := newFixture("u1")
	f.share.On("Share", mock.Anything, mock.MatchedBy(func(req usecase.ShareRequest) bool {
		return req.PostRef == "p1" && req.UserID == "u1" && len(req.Platforms) == 2 && req.Content != nil && req.Content.Body == "hello" && req.Force
	})).Return([]usecase.ShareResult{
		{Platform: "facebook", Status: model.ShareStatusSuccess, PostID: "fb1"},
		{Platform: "zalo", Status: model.ShareStatusFailed, ErrorMessage: "no recipients"},
	}, nil)

	w := f.do(http.MethodPost, "/api/posts/p1/publish", gin.H{
		"platforms": []string{"facebook", "zalo"},
		"content":   gin.H{"body": "hello"},
		"force":     true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "p1", body["post_ref"])
	assert.Len(t, body["results"], 2)
	f.share.AssertExpectations(t)
}

func TestPublishHandler_PublishValidationError(t *testing.T) {
	f := newFixture("u1")
	f.share.On("Share", mock.Anything, mock.Anything).Return(nil, model.NewError(model.ErrMissingParameter, "", "content required"))

	w := f.do(http.MethodPost, "/api/posts/p1/publish", gin.H{"platforms": []string{"facebook"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, model.ErrMissingParameter.Error(), decode(t, w)["kind"])
}

func TestPublishHandler_RequiresUser(t *testing.T) {
	f := newFixture("")

	w := f.do(http.MethodPost, "/api/posts/p1/publish", gin.H{"platforms": []string{"facebook"}})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.share.AssertNotCalled(t, "Share", mock.Anything, mock.Anything)
}

func TestPublishHandler_GetStatusEmpty(t *testing.T) {
	f := newFixture("u1")
	f.share.On("GetStatus", mock.Anything, "p1", "u1").Return(nil, nil)

	w := f.do(http.MethodGet, "/api/posts/p1/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["records"])
}

func TestPublishHandler_GetPlatforms(t *testing.T) {
	f := newFixture("u1")
	f.share.On("Platforms").Return([]string{"facebook", "youtube"})

	w := f.do(http.MethodGet, "/api/platforms", nil)

	require.Equal(t, http.StatusOK, w.Code)
	caps := decode(t, w)["platforms"].([]interface{})
	require.Len(t, caps, 2)
	assert.Equal(t, true, caps[0].(map[string]interface{})["messaging"])
	assert.Equal(t, false, caps[1].(map[string]interface{})["messaging"])
}

func TestPublishHandler_UpdateRejected(t *testing.T) {
	f := newFixture("u1")
	rejected := model.PublishFailed(model.Rejected(model.PlatformFacebook, "100", "Invalid parameter"))
	f.share.On("Update", mock.Anything, model.PlatformFacebook, "u1", "post-1", mock.Anything).Return(rejected, nil)

	w := f.do(http.MethodPatch, "/api/platforms/facebook/posts/post-1", gin.H{"body": "edited"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestPublishHandler_DeleteUnsupported(t *testing.T) {
	f := newFixture("u1")
	f.share.On("Delete", mock.Anything, model.PlatformZalo, "u1", "m1").
		Return(false, model.NewError(model.ErrUnsupported, model.PlatformZalo, "broadcast messages cannot be deleted"))

	w := f.do(http.MethodDelete, "/api/platforms/zalo/posts/m1", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublishHandler_UnknownPlatform(t *testing.T) {
	f := newFixture("u1")

	w := f.do(http.MethodDelete, "/api/platforms/tiktok/posts/m1", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, model.ErrUnsupported.Error(), decode(t, w)["kind"])
}

func TestPublishHandler_GetMetrics(t *testing.T) {
	f := newFixture("u1")
	f.metrics.On("GetMetrics", mock.Anything, model.PlatformYouTube, "u1", "v1", time.Minute).
		Return(&model.PostMetrics{Views: 12, Engagement: 3}, nil)

	w := f.do(http.MethodGet, "/api/platforms/youtube/posts/v1/metrics?max_age=1m", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(12), decode(t, w)["views"])

	w = f.do(http.MethodGet, "/api/platforms/youtube/posts/v1/metrics?max_age=soon", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublishHandler_SyncMetrics(t *testing.T) {
	f := newFixture("u1")
	f.metrics.On("Sync", mock.Anything, model.PlatformFacebook, "u1", []string{"a", "b"}).
		Return(map[string]*model.PostMetrics{"a": {Likes: 1}, "b": {Likes: 2}}, nil)

	w := f.do(http.MethodPost, "/api/platforms/facebook/metrics/sync", gin.H{"post_ids": []string{"a", "b"}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["metrics"], 2)
}

func TestMessagingHandler_SendMessage(t *testing.T) {
	f := newFixture("u1")
	f.messaging.On("Send", mock.Anything, mock.MatchedBy(func(req usecase.SendMessageRequest) bool {
		return req.Platform == model.PlatformZalo && req.RecipientID == "z1" && req.Text == "hi" && len(req.Attachments) == 1
	})).Return(&model.SendMessageResult{Success: true, PlatformMessageID: "m9"}, nil)

	w := f.do(http.MethodPost, "/api/platforms/zalo/customers/z1/messages", gin.H{
		"text":        "hi",
		"attachments": []gin.H{{"type": "image", "url": "https://cdn.example.com/a.png"}},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m9", decode(t, w)["platform_message_id"])
}

func TestMessagingHandler_SendMessageNotImplemented(t *testing.T) {
	f := newFixture("u1")
	f.messaging.On("Send", mock.Anything, mock.Anything).
		Return(nil, model.NewError(model.ErrNotImplemented, model.PlatformYouTube, "messaging not yet implemented"))

	w := f.do(http.MethodPost, "/api/platforms/youtube/customers/c1/messages", gin.H{"text": "hi"})

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestMessagingHandler_MarkAsReadAndCustomerInfo(t *testing.T) {
	f := newFixture("u1")
	f.messaging.On("MarkAsRead", mock.Anything, model.PlatformFacebook, "u1", "psid").Return(nil)
	f.messaging.On("CustomerInfo", mock.Anything, model.PlatformFacebook, "u1", "psid").
		Return(&model.CustomerInfo{PlatformUserID: "psid", Name: "Lan"}, nil)

	w := f.do(http.MethodPost, "/api/platforms/facebook/customers/psid/read", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(http.MethodGet, "/api/platforms/facebook/customers/psid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Lan", decode(t, w)["name"])
}

func TestConnectionHandler(t *testing.T) {
	f := newFixture("u1")
	f.conn.On("Status", mock.Anything, "u1").Return([]usecase.ConnectionStatus{
		{Platform: model.PlatformFacebook, Connected: true, Valid: true},
		{Platform: model.PlatformZalo},
	}, nil)
	f.conn.On("Disconnect", mock.Anything, model.PlatformFacebook, "u1").Return(nil)

	w := f.do(http.MethodGet, "/api/connections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["connections"], 2)

	w = f.do(http.MethodDelete, "/api/connections/facebook", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["connected"])
	f.conn.AssertExpectations(t)
}
