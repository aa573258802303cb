package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"crm-social/domain/model"

	"github.com/gin-gonic/gin"
)

// ShareStatusEvent represents an SSE payload for publish status updates.
type ShareStatusEvent struct {
	Type         string  `json:"type"`
	PostRef      string  `json:"post_ref"`
	Platform     string  `json:"platform"`
	Status       string  `json:"status"`
	AttemptCount int     `json:"attempt_count"`
	ExternalRef  *string `json:"external_ref,omitempty"`
	Permalink    *string `json:"permalink,omitempty"`
	Error        *string `json:"error,omitempty"`
}

// Hub maintains per-user subscribers listening for publish status events.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[chan ShareStatusEvent]struct{}
}

func NewShareHub() *Hub {
	return &Hub{users: make(map[string]map[chan ShareStatusEvent]struct{})}
}

// Serve registers an SSE stream for the authenticated user (user_id set by middleware).
func (h *Hub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan ShareStatusEvent, 8)
	h.addSubscriber(userID, ch)
	defer h.removeSubscriber(userID, ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: share_status\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *Hub) addSubscriber(userID string, ch chan ShareStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan ShareStatusEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(userID string, ch chan ShareStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.users[userID]; subs != nil {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}

// Subscribers returns the number of open streams of userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// BroadcastShareStatus broadcasts to all subscribers of the user who owns the record.
// Slow subscribers miss events rather than block the publisher.
func (h *Hub) BroadcastShareStatus(rec *model.ShareRecord) {
	if rec == nil {
		return
	}
	evt := ShareStatusEvent{
		Type:         "share_status",
		PostRef:      rec.PostRef,
		Platform:     rec.Platform,
		Status:       rec.Status,
		AttemptCount: rec.AttemptCount,
		ExternalRef:  rec.ExternalRef,
		Permalink:    rec.Permalink,
		Error:        rec.ErrorMessage,
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.users[rec.UserID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
