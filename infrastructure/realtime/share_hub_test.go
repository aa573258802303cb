package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm-social/domain/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastShareStatus_OnlyOwner(t *testing.T) {
	hub := NewShareHub()
	mine := make(chan ShareStatusEvent, 1)
	other := make(chan ShareStatusEvent, 1)
	hub.addSubscriber("u1", mine)
	hub.addSubscriber("u2", other)

	ref := "p1"
	hub.BroadcastShareStatus(&model.ShareRecord{PostRef: "post-1", Platform: "instagram", UserID: "u1", Status: model.ShareStatusSuccess, ExternalRef: &ref, AttemptCount: 2})

	select {
	case evt := <-mine:
		assert.Equal(t, "post-1", evt.PostRef)
		assert.Equal(t, "p1", *evt.ExternalRef)
		assert.Equal(t, 2, evt.AttemptCount)
	default:
		t.Fatal("owner did not receive the event")
	}
	assert.Len(t, other, 0)
}

func TestBroadcastShareStatus_FullSubscriberDoesNotBlock(t *testing.T) {
	hub := NewShareHub()
	ch := make(chan ShareStatusEvent)
	hub.addSubscriber("u1", ch)

	done := make(chan struct{})
	go func() {
		hub.BroadcastShareStatus(&model.ShareRecord{UserID: "u1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
}

func TestServe_RequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/share/stream", nil)

	NewShareHub().Serve(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServe_StreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewShareHub()
	router := gin.New()
	router.GET("/stream", func(c *gin.Context) {
		c.Set("user_id", "u1")
		hub.Serve(c)
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	reader := bufio.NewReader(res.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ":ok\n", line)
	require.Equal(t, 1, hub.Subscribers("u1"))

	hub.BroadcastShareStatus(&model.ShareRecord{PostRef: "post-9", Platform: "zalo", UserID: "u1", Status: model.ShareStatusFailed})

	var data string
	for data == "" {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	var evt ShareStatusEvent
	require.NoError(t, json.Unmarshal([]byte(data), &evt))
	assert.Equal(t, "post-9", evt.PostRef)
	assert.Equal(t, model.ShareStatusFailed, evt.Status)
}
