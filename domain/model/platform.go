package model

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a third-party social platform the CRM integrates with.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformZalo      Platform = "zalo"
)

// Platforms lists every supported platform in a stable order.
var Platforms = []Platform{PlatformFacebook, PlatformInstagram, PlatformYouTube, PlatformZalo}

// ParsePlatform normalises a platform name coming from configuration or a request path.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported platform: %s", s)
}

func (p Platform) String() string { return string(p) }

// PlatformCredential stores OAuth credentials per (platform, user)
type PlatformCredential struct {
	ID                int64     `json:"id"`
	UserID            string    `json:"user_id"`
	Platform          Platform  `json:"platform"`
	AppID             string    `json:"app_id"`
	AppSecret         string    `json:"-"`
	AccessToken       string    `json:"-"`
	RefreshToken      string    `json:"-"`
	ExpiresAt         time.Time `json:"expires_at"`          // zero when the platform issued a non-expiring token
	PlatformAccountID string    `json:"platform_account_id"` // page / OA / channel / IG business account id
	AccountName       string    `json:"account_name"`
	Scopes            string    `json:"scopes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ExpiresWithin reports whether the access token expires within d of now.
func (c *PlatformCredential) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt.Add(-d))
}

// HasRefreshToken returns true if a refresh token is available
func (c *PlatformCredential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// CacheKey returns the adapter cache key for a (platform, user) pair.
func CacheKey(platform Platform, userID string) string {
	return string(platform) + ":" + userID
}
