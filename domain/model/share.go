package model

import (
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	ShareStatusPending = "pending"
	ShareStatusSuccess = "success"
	ShareStatusFailed  = "failed"
)

// ShareRecord represents the latest state of a publish attempt per (post, platform, user)
type ShareRecord struct {
	ID           int64     `json:"id"`
	PostRef      string    `json:"post_ref"`
	Platform     string    `json:"platform"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"` // pending | success | failed
	ErrorMessage *string   `json:"error_message,omitempty"`
	ExternalRef  *string   `json:"external_ref,omitempty"`
	Permalink    *string   `json:"permalink,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ShareAudit is an append-only log of publish attempts
type ShareAudit struct {
	ID           int64     `json:"id"`
	RecordID     int64     `json:"record_id"`
	PostRef      string    `json:"post_ref"`
	Platform     string    `json:"platform"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	EventPostPublished  = "post.published"
	EventPostFailed     = "post.failed"
	EventTokenRefreshed = "token.refreshed"
)

// Event is emitted to the message bus after adapter-layer state changes.
type Event struct {
	Type       string            `json:"type"`
	Platform   Platform          `json:"platform"`
	UserID     string            `json:"user_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// UserClaims are the JWT claims issued by the CRM login flow.
type UserClaims struct {
	UserName string `json:"user_name"`
	jwt.StandardClaims
}
