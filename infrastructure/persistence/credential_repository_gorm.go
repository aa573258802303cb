package persistence

import (
	"context"
	"errors"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// credentialRow is the gorm mapping of platform_credentials.
type credentialRow struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	UserID            string `gorm:"size:128;not null;uniqueIndex:ux_credential_user_platform"`
	Platform          string `gorm:"size:32;not null;uniqueIndex:ux_credential_user_platform"`
	AppID             string `gorm:"size:128"`
	AccessToken       string `gorm:"type:text;not null"`
	RefreshToken      string `gorm:"type:text"`
	ExpiresAt         *time.Time
	PlatformAccountID string `gorm:"size:128"`
	AccountName       string `gorm:"size:255"`
	Scopes            string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (credentialRow) TableName() string { return "platform_credentials" }

func (r credentialRow) toModel() *model.PlatformCredential {
	c := &model.PlatformCredential{
		ID:                r.ID,
		UserID:            r.UserID,
		Platform:          model.Platform(r.Platform),
		AppID:             r.AppID,
		AccessToken:       r.AccessToken,
		RefreshToken:      r.RefreshToken,
		PlatformAccountID: r.PlatformAccountID,
		AccountName:       r.AccountName,
		Scopes:            r.Scopes,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.ExpiresAt != nil {
		c.ExpiresAt = *r.ExpiresAt
	}
	return c
}

func expiryPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// CredentialRepositoryGorm stores credentials in MySQL through gorm.
type CredentialRepositoryGorm struct{ db *gorm.DB }

var _ repository.ICredentialRepository = (*CredentialRepositoryGorm)(nil)

func NewCredentialRepositoryGorm(db *gorm.DB) *CredentialRepositoryGorm {
	return &CredentialRepositoryGorm{db: db}
}

// Migrate creates or updates the platform_credentials table.
func (r *CredentialRepositoryGorm) Migrate() error {
	return r.db.AutoMigrate(&credentialRow{})
}

func (r *CredentialRepositoryGorm) UpsertCredential(ctx context.Context, c *model.PlatformCredential) error {
	row := credentialRow{
		UserID:            c.UserID,
		Platform:          string(c.Platform),
		AppID:             c.AppID,
		AccessToken:       c.AccessToken,
		RefreshToken:      c.RefreshToken,
		ExpiresAt:         expiryPtr(c.ExpiresAt),
		PlatformAccountID: c.PlatformAccountID,
		AccountName:       c.AccountName,
		Scopes:            c.Scopes,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"app_id", "access_token", "refresh_token", "expires_at",
			"platform_account_id", "account_name", "scopes", "updated_at",
		}),
	}).Create(&row).Error
}

func (r *CredentialRepositoryGorm) GetCredential(ctx context.Context, platform model.Platform, userID string) (*model.PlatformCredential, error) {
	var row credentialRow
	err := r.db.WithContext(ctx).Where("user_id = ? AND platform = ?", userID, string(platform)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *CredentialRepositoryGorm) SaveRefreshedToken(ctx context.Context, platform model.Platform, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   expiryPtr(expiresAt),
		"updated_at":   time.Now().UTC(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.WithContext(ctx).Model(&credentialRow{}).
		Where("user_id = ? AND platform = ?", userID, string(platform)).
		Updates(updates).Error
}

func (r *CredentialRepositoryGorm) DeleteCredential(ctx context.Context, platform model.Platform, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND platform = ?", userID, string(platform)).Delete(&credentialRow{}).Error
}
