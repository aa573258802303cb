package zalo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/clients/zalo"
	"crm-social/infrastructure/platformauth"
	"crm-social/infrastructure/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOA struct {
	t         *testing.T
	srv       *httptest.Server
	followers []string
	failFor   map[string]bool

	listErrors int  // next getlist calls answering 502
	noTotal    bool // total=0 and the first page for every offset

	mu      sync.Mutex
	pages   []int
	uploads int
	sent    map[string]map[string]interface{}
}

func newFakeOA(t *testing.T, followers ...string) *fakeOA {
	f := &fakeOA{t: t, followers: followers, failFor: map[string]bool{}, sent: map[string]map[string]interface{}{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3.0/oa/user/getlist", f.getList)
	mux.HandleFunc("POST /v3.0/oa/message/cs", f.send)
	mux.HandleFunc("POST /v2.0/oa/upload/image", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "oa-token", r.Header.Get("access_token"))
		_, _, err := r.FormFile("file")
		assert.NoError(t, err)
		f.mu.Lock()
		f.uploads++
		f.mu.Unlock()
		writeJSON(w, map[string]interface{}{"error": 0, "message": "Success", "data": map[string]string{"attachment_id": "att-1"}})
	})
	mux.HandleFunc("GET /v3.0/oa/user/detail", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"error": 0, "data": map[string]interface{}{
			"user_id": "z1", "display_name": "Minh", "avatars": map[string]string{"240": "https://s240.avatar/z1.jpg"},
		}})
	})
	mux.HandleFunc("GET /media/banner.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeOA) getList(w http.ResponseWriter, r *http.Request) {
	var q struct {
		Offset int `json:"offset"`
		Count  int `json:"count"`
	}
	assert.NoError(f.t, json.Unmarshal([]byte(r.URL.Query().Get("data")), &q))
	f.mu.Lock()
	f.pages = append(f.pages, q.Offset)
	fail := f.listErrors > 0
	if fail {
		f.listErrors--
	}
	f.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	total := len(f.followers)
	if f.noTotal {
		q.Offset, total = 0, 0
	}
	end := q.Offset + q.Count
	if end > len(f.followers) {
		end = len(f.followers)
	}
	users := []map[string]string{}
	for _, id := range f.followers[min(q.Offset, len(f.followers)):end] {
		users = append(users, map[string]string{"user_id": id})
	}
	writeJSON(w, map[string]interface{}{"error": 0, "message": "Success", "data": map[string]interface{}{
		"total": total, "count": len(users), "offset": q.Offset, "users": users,
	}})
}

func (f *fakeOA) send(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Recipient struct {
			UserID string `json:"user_id"`
		} `json:"recipient"`
		Message map[string]interface{} `json:"message"`
	}
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	uid := body.Recipient.UserID
	f.mu.Lock()
	f.sent[uid] = body.Message
	f.mu.Unlock()
	if f.failFor[uid] {
		writeJSON(w, map[string]interface{}{"error": -213, "message": "User has not interacted with the OA in the last 7 days"})
		return
	}
	writeJSON(w, map[string]interface{}{"error": 0, "message": "Success", "data": map[string]string{"message_id": "msg-" + uid, "user_id": uid}})
}

func (f *fakeOA) adapter(batchSize int) *zalo.Adapter {
	cred := &model.PlatformCredential{
		UserID:      "u1",
		Platform:    model.PlatformZalo,
		AccessToken: "oa-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	api := zalo.NewClient(f.srv.URL, f.srv.Client()).WithRetry(retry.Constant(3, 0))
	return zalo.NewAdapter(platformauth.NewService(cred, nil), api, zalo.Options{
		BatchSize:   batchSize,
		Concurrency: 2,
		MediaClient: f.srv.Client(),
	})
}

func TestPublish_NoFollowers(t *testing.T) {
	f := newFakeOA(t)

	res := f.adapter(0).Publish(context.Background(), &model.PublishRequest{Body: "Flash sale today"})

	assert.False(t, res.Success)
	assert.Equal(t, "No followers to send message to", res.Error)
	assert.ErrorIs(t, res.Err, model.ErrNoRecipients)
	assert.Empty(t, f.sent)
}

func TestPublish_OneOfThreeDeliveredIsSuccess(t *testing.T) {
	f := newFakeOA(t, "z1", "z2", "z3")
	f.failFor["z1"] = true
	f.failFor["z3"] = true

	res := f.adapter(0).Publish(context.Background(), &model.PublishRequest{Body: "Flash sale today"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "msg-z2", res.PostID)
	assert.Len(t, f.sent, 3)
}

func TestPublish_FirstSuccessInFollowerOrderIsPostID(t *testing.T) {
	f := newFakeOA(t, "z1", "z2", "z3")
	f.failFor["z1"] = true

	res := f.adapter(0).Publish(context.Background(), &model.PublishRequest{Body: "hello"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "msg-z2", res.PostID)
}

func TestPublish_AllDeliveriesFail(t *testing.T) {
	f := newFakeOA(t, "z1", "z2")
	f.failFor["z1"] = true
	f.failFor["z2"] = true

	res := f.adapter(0).Publish(context.Background(), &model.PublishRequest{Body: "hello"})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, model.ErrPlatformRejected)
	assert.Contains(t, res.Error, "all 2 followers")
}

func TestPublish_FollowersArePaged(t *testing.T) {
	f := newFakeOA(t, "z1", "z2", "z3", "z4", "z5")

	res := f.adapter(2).Publish(context.Background(), &model.PublishRequest{Body: "hello"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []int{0, 2, 4}, f.pages)
	assert.Len(t, f.sent, 5)
}

func TestPublish_FollowerPageServerErrorIsRetried(t *testing.T) {
	f := newFakeOA(t, "z1", "z2")
	f.listErrors = 1

	res := f.adapter(0).Publish(context.Background(), &model.PublishRequest{Body: "hello"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []int{0, 0}, f.pages)
	assert.Len(t, f.sent, 2)
}

func TestPublish_FollowerServerErrorExhaustsRetries(t *testing.T) {
	f := newFakeOA(t, "z1")
	f.listErrors = 5

	res := f.adapter(0).Publish(context.Background(), &model.PublishRequest{Body: "hello"})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, model.ErrNetwork)
	assert.Len(t, f.pages, 3)
	assert.Empty(t, f.sent)
}

func TestFollowers_StopsWhenPagesRepeat(t *testing.T) {
	f := newFakeOA(t, "z1", "z2", "z3", "z4")
	f.noTotal = true

	ids, err := f.adapter(2).Followers(context.Background(), "oa-token")

	require.NoError(t, err)
	assert.Equal(t, []string{"z1", "z2"}, ids)
	assert.Equal(t, []int{0, 2}, f.pages)
}

func TestPublish_MediaIsUploadedOnce(t *testing.T) {
	f := newFakeOA(t, "z1", "z2", "z3")

	res := f.adapter(0).Publish(context.Background(), &model.PublishRequest{
		Body:  "New banner",
		Media: []model.MediaItem{{Type: model.MediaTypeImage, URL: f.srv.URL + "/media/banner.jpg"}},
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, f.uploads)
	for _, uid := range []string{"z1", "z2", "z3"} {
		att := f.sent[uid]["attachment"].(map[string]interface{})
		payload := att["payload"].(map[string]interface{})
		elements := payload["elements"].([]interface{})
		assert.Equal(t, "att-1", elements[0].(map[string]interface{})["attachment_id"])
	}
}

func TestUpdateDeleteUnsupportedAndMetricsZeroed(t *testing.T) {
	f := newFakeOA(t)
	a := f.adapter(0)

	assert.ErrorIs(t, a.Update(context.Background(), "msg-1", &model.PublishRequest{Body: "x"}).Err, model.ErrUnsupported)
	ok, err := a.Delete(context.Background(), "msg-1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, model.ErrUnsupported)
	m := a.GetMetrics(context.Background(), "msg-1")
	assert.Equal(t, int64(0), m.Views+m.Likes+m.Engagement)
}

func TestGetCustomerInfo(t *testing.T) {
	f := newFakeOA(t)

	info, err := f.adapter(0).GetCustomerInfo(context.Background(), "z1")

	require.NoError(t, err)
	assert.Equal(t, "Minh", info.Name)
	assert.Equal(t, "https://s240.avatar/z1.jpg", info.Avatar)
}

func TestSendMessage_PlatformErrorIsSurfaced(t *testing.T) {
	f := newFakeOA(t)
	f.failFor["z9"] = true

	_, err := f.adapter(0).SendMessage(context.Background(), "z9", "hi")

	assert.ErrorIs(t, err, model.ErrPlatformRejected)
	assert.Contains(t, err.Error(), "not interacted")
}
