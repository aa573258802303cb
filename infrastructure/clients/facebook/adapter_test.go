package facebook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/clients/facebook"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/platformauth"
	"crm-social/infrastructure/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, mux *http.ServeMux) *facebook.Adapter {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	cred := &model.PlatformCredential{
		UserID:            "u1",
		Platform:          model.PlatformFacebook,
		AccessToken:       "page-token",
		ExpiresAt:         time.Now().Add(time.Hour),
		PlatformAccountID: "page1",
	}
	client := graph.NewClient(model.PlatformFacebook, srv.URL, srv.Client(), retry.Constant(1, 0))
	return facebook.NewAdapter(platformauth.NewService(cred, nil), client)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestPublish_TextPostUsesFeed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /page1/feed", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "Opening hours changed\n\n#news", r.PostForm.Get("message"))
		assert.Equal(t, "page-token", r.PostForm.Get("access_token"))
		writeJSON(w, http.StatusOK, map[string]string{"id": "page1_123"})
	})
	mux.HandleFunc("GET /page1_123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "permalink_url", r.URL.Query().Get("fields"))
		writeJSON(w, http.StatusOK, map[string]string{"permalink_url": "https://www.facebook.com/page1/posts/123"})
	})
	a := newAdapter(t, mux)

	res := a.Publish(context.Background(), &model.PublishRequest{Body: "Opening hours changed", Hashtags: []string{"news"}})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "page1_123", res.PostID)
	assert.Equal(t, "https://www.facebook.com/page1/posts/123", res.Permalink)
}

func TestPublish_PhotoPrefersPostIDAndFallsBackPermalink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /page1/photos", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "https://cdn.example.com/p.jpg", r.PostForm.Get("url"))
		writeJSON(w, http.StatusOK, map[string]string{"id": "photo9", "post_id": "page1_9"})
	})
	mux.HandleFunc("GET /page1_9", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "page1_9"})
	})
	a := newAdapter(t, mux)

	res := a.Publish(context.Background(), &model.PublishRequest{
		Body:  "New arrivals",
		Media: []model.MediaItem{{Type: model.MediaTypeImage, URL: "https://cdn.example.com/p.jpg"}},
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "page1_9", res.PostID)
	assert.Equal(t, "https://www.facebook.com/page1_9", res.Permalink)
}

func TestPublish_GraphErrorIsSurfaced(t *testing.T) {
	tests := []struct {
		name string
		code int
		kind error
	}{
		{name: "permission", code: 200, kind: model.ErrPlatformRejected},
		{name: "invalid_token", code: 190, kind: model.ErrAuthExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /page1/feed", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"error": map[string]interface{}{"message": "(#200) Permissions error", "type": "OAuthException", "code": tt.code},
				})
			})
			a := newAdapter(t, mux)

			res := a.Publish(context.Background(), &model.PublishRequest{Body: "hi"})

			assert.False(t, res.Success)
			assert.Contains(t, res.Error, "Permissions error")
			assert.ErrorIs(t, res.Err, tt.kind)
		})
	}
}

func TestPublish_EmptyRequestIsMissingParameter(t *testing.T) {
	a := newAdapter(t, http.NewServeMux())

	res := a.Publish(context.Background(), &model.PublishRequest{})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, model.ErrMissingParameter)
}

func TestDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /page1_1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	a := newAdapter(t, mux)

	ok, err := a.Delete(context.Background(), "page1_1")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetMetrics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /page1_1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"shares":    map[string]int{"count": 2},
			"reactions": map[string]interface{}{"summary": map[string]int{"total_count": 10}},
			"comments":  map[string]interface{}{"summary": map[string]int{"total_count": 3}},
		})
	})
	mux.HandleFunc("GET /page1_1/insights", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []map[string]interface{}{
			{"name": "post_impressions", "values": []map[string]int{{"value": 400}}},
			{"name": "post_impressions_unique", "values": []map[string]int{{"value": 250}}},
		}})
	})
	a := newAdapter(t, mux)

	m := a.GetMetrics(context.Background(), "page1_1")

	assert.Equal(t, int64(10), m.Likes)
	assert.Equal(t, int64(3), m.Comments)
	assert.Equal(t, int64(2), m.Shares)
	assert.Equal(t, int64(400), m.Views)
	assert.Equal(t, int64(250), m.Reach)
	assert.Equal(t, int64(15), m.Engagement)
}

func TestGetMetrics_FailureIsZeroed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /page1_1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": map[string]interface{}{"message": "Unsupported get request", "code": 100}})
	})
	a := newAdapter(t, mux)

	m := a.GetMetrics(context.Background(), "page1_1")

	assert.Equal(t, int64(0), m.Likes+m.Comments+m.Shares+m.Views+m.Reach+m.Engagement)
	assert.False(t, m.LastSyncedAt.IsZero())
}

func TestSendMessageWithAttachments_ReturnsLastCallOutcome(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /me/messages", func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body graph.SendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "psid-1", body.Recipient.ID)
		if calls == 1 {
			assert.Equal(t, "see attached", body.Message.Text)
			writeJSON(w, http.StatusOK, map[string]string{"recipient_id": "psid-1", "message_id": "mid.text"})
			return
		}
		assert.Equal(t, "image", body.Message.Attachment.Type)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": map[string]interface{}{"message": "Invalid attachment url", "code": 100}})
	})
	a := newAdapter(t, mux)

	res, err := a.SendMessageWithAttachments(context.Background(), "psid-1", "see attached",
		[]model.Attachment{{Type: model.AttachmentImage, URL: "https://cdn.example.com/a.png"}})

	assert.Equal(t, 2, calls)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, model.ErrPlatformRejected)
	assert.Contains(t, err.Error(), "Invalid attachment url")
}

func TestSendMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /me/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"recipient_id": "psid-1", "message_id": "mid.1"})
	})
	a := newAdapter(t, mux)

	res, err := a.SendMessage(context.Background(), "psid-1", "hello")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "mid.1", res.PlatformMessageID)

	_, err = a.SendMessage(context.Background(), "", "hello")
	assert.ErrorIs(t, err, model.ErrMissingParameter)
}

func TestTypingIndicatorFailureIsNotPropagated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /me/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": map[string]interface{}{"message": "temporarily unavailable", "code": 2}})
	})
	a := newAdapter(t, mux)

	assert.NoError(t, a.SendTypingIndicator(context.Background(), "psid-1", true))
	assert.NoError(t, a.MarkAsRead(context.Background(), "psid-1"))
	assert.ErrorIs(t, a.MarkAsRead(context.Background(), ""), model.ErrMissingParameter)
}

func TestGetCustomerInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /psid-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"first_name": "Lan", "last_name": "Pham", "profile_pic": "https://cdn/p.jpg"})
	})
	mux.HandleFunc("GET /psid-2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": map[string]interface{}{"message": "No profile available for that user", "code": 2018218}})
	})
	a := newAdapter(t, mux)

	info, err := a.GetCustomerInfo(context.Background(), "psid-1")
	require.NoError(t, err)
	assert.Equal(t, "Lan Pham", info.Name)
	assert.Equal(t, "https://cdn/p.jpg", info.Avatar)

	_, err = a.GetCustomerInfo(context.Background(), "psid-2")
	assert.ErrorIs(t, err, model.ErrPlatformRejected)
	assert.Contains(t, err.Error(), "No profile available for that user")
}
