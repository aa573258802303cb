package model

import (
	"errors"
	"time"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaItem is a remotely hosted media file attached to a publish request.
type MediaItem struct {
	Type            MediaType `json:"type"`
	URL             string    `json:"url"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
}

// PublishRequest is immutable for the duration of one publish attempt.
type PublishRequest struct {
	Title    string      `json:"title,omitempty"`
	Body     string      `json:"body,omitempty"`
	Media    []MediaItem `json:"media,omitempty"`
	Hashtags []string    `json:"hashtags,omitempty"`
	Mentions []string    `json:"mentions,omitempty"`
	Privacy  string      `json:"privacy,omitempty"`
}

// FirstMedia returns the first media item, if any.
func (r *PublishRequest) FirstMedia() (MediaItem, bool) {
	if r == nil || len(r.Media) == 0 {
		return MediaItem{}, false
	}
	return r.Media[0], true
}

// PublishResult is returned once per publish/update call and never mutated afterwards.
type PublishResult struct {
	Success   bool   `json:"success"`
	PostID    string `json:"post_id,omitempty"`
	Permalink string `json:"permalink,omitempty"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// Published builds a successful result.
func Published(postID, permalink string) *PublishResult {
	return &PublishResult{Success: true, PostID: postID, Permalink: permalink}
}

// PublishFailed builds a failed result; the error string is always populated.
func PublishFailed(err error) *PublishResult {
	if err == nil {
		err = errors.New("publish failed")
	}
	return &PublishResult{Success: false, Error: err.Error(), Err: err}
}

// ContainerStatus is the processing state of a platform-side media container.
type ContainerStatus string

const (
	ContainerInProgress ContainerStatus = "IN_PROGRESS"
	ContainerPending    ContainerStatus = "PENDING"
	ContainerFinished   ContainerStatus = "FINISHED"
	ContainerError      ContainerStatus = "ERROR"
	ContainerUnknown    ContainerStatus = "UNKNOWN"
)

// ParseContainerStatus maps a platform status code onto ContainerStatus.
func ParseContainerStatus(s string) ContainerStatus {
	switch ContainerStatus(s) {
	case ContainerInProgress, ContainerPending, ContainerFinished, ContainerError:
		return ContainerStatus(s)
	case "PUBLISHED":
		return ContainerFinished
	case "EXPIRED":
		return ContainerError
	}
	return ContainerUnknown
}

// UploadStatus is the processing state of a resumable upload after the bytes are transferred.
type UploadStatus string

const (
	UploadProcessing UploadStatus = "processing"
	UploadReady      UploadStatus = "ready"
	UploadFailed     UploadStatus = "failed"
)

// PostMetrics is the normalised engagement snapshot of a published post.
type PostMetrics struct {
	Views        int64     `json:"views"`
	Likes        int64     `json:"likes"`
	Comments     int64     `json:"comments"`
	Shares       int64     `json:"shares"`
	Reach        int64     `json:"reach"`
	Engagement   int64     `json:"engagement"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// ZeroMetrics is what GetMetrics returns when the platform could not be queried.
func ZeroMetrics(now time.Time) *PostMetrics {
	return &PostMetrics{LastSyncedAt: now}
}

// Normalize recomputes engagement from its parts.
func (m *PostMetrics) Normalize() *PostMetrics {
	m.Engagement = m.Likes + m.Comments + m.Shares
	return m
}
