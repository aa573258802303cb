package repository

import (
	"context"
	"time"

	"crm-social/domain/model"
)

// ICredentialStore is what the adapter layer needs from credential persistence.
type ICredentialStore interface {
	// GetCredential returns nil, nil when the user never connected the platform.
	GetCredential(ctx context.Context, platform model.Platform, userID string) (*model.PlatformCredential, error)
	SaveRefreshedToken(ctx context.Context, platform model.Platform, userID, accessToken, refreshToken string, expiresAt time.Time) error
}

// ICredentialRepository adds the connect/disconnect writes used by OAuth flows.
type ICredentialRepository interface {
	ICredentialStore
	UpsertCredential(ctx context.Context, cred *model.PlatformCredential) error
	DeleteCredential(ctx context.Context, platform model.Platform, userID string) error
}
