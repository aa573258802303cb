package persistence

import (
	"context"
	"errors"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const credentialCollection = "platform_credentials"

type credentialDoc struct {
	UserID            string     `bson:"user_id"`
	Platform          string     `bson:"platform"`
	AppID             string     `bson:"app_id"`
	AccessToken       string     `bson:"access_token"`
	RefreshToken      string     `bson:"refresh_token"`
	ExpiresAt         *time.Time `bson:"expires_at,omitempty"`
	PlatformAccountID string     `bson:"platform_account_id"`
	AccountName       string     `bson:"account_name"`
	Scopes            string     `bson:"scopes"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at"`
}

// mongoCollection is the part of *mongo.Collection the credential store uses.
type mongoCollection interface {
	Indexes() mongo.IndexView
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
}

// CredentialRepositoryMongo stores credentials in the CRM's MongoDB.
type CredentialRepositoryMongo struct {
	collection mongoCollection
}

var _ repository.ICredentialRepository = (*CredentialRepositoryMongo)(nil)

func NewCredentialRepositoryMongo(db *mongo.Database) *CredentialRepositoryMongo {
	return &CredentialRepositoryMongo{collection: db.Collection(credentialCollection)}
}

func credentialIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "platform", Value: 1}},
		Options: options.Index().SetName("ux_credential_user_platform").SetUnique(true),
	}
}

// EnsureIndexes creates the unique (user_id, platform) index.
func (r *CredentialRepositoryMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, credentialIndex())
	return err
}

func credentialFilter(platform model.Platform, userID string) bson.D {
	return bson.D{{Key: "user_id", Value: userID}, {Key: "platform", Value: string(platform)}}
}

func (r *CredentialRepositoryMongo) UpsertCredential(ctx context.Context, c *model.PlatformCredential) error {
	now := time.Now().UTC()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "app_id", Value: c.AppID},
			{Key: "access_token", Value: c.AccessToken},
			{Key: "refresh_token", Value: c.RefreshToken},
			{Key: "expires_at", Value: expiryPtr(c.ExpiresAt)},
			{Key: "platform_account_id", Value: c.PlatformAccountID},
			{Key: "account_name", Value: c.AccountName},
			{Key: "scopes", Value: c.Scopes},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: now}}},
	}
	_, err := r.collection.UpdateOne(ctx, credentialFilter(c.Platform, c.UserID), update, options.UpdateOne().SetUpsert(true))
	return err
}

func (r *CredentialRepositoryMongo) GetCredential(ctx context.Context, platform model.Platform, userID string) (*model.PlatformCredential, error) {
	var doc credentialDoc
	err := r.collection.FindOne(ctx, credentialFilter(platform, userID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := &model.PlatformCredential{
		UserID:            doc.UserID,
		Platform:          model.Platform(doc.Platform),
		AppID:             doc.AppID,
		AccessToken:       doc.AccessToken,
		RefreshToken:      doc.RefreshToken,
		PlatformAccountID: doc.PlatformAccountID,
		AccountName:       doc.AccountName,
		Scopes:            doc.Scopes,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	if doc.ExpiresAt != nil {
		c.ExpiresAt = *doc.ExpiresAt
	}
	return c, nil
}

func (r *CredentialRepositoryMongo) SaveRefreshedToken(ctx context.Context, platform model.Platform, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	set := bson.D{
		{Key: "access_token", Value: accessToken},
		{Key: "expires_at", Value: expiryPtr(expiresAt)},
		{Key: "updated_at", Value: time.Now().UTC()},
	}
	if refreshToken != "" {
		set = append(set, bson.E{Key: "refresh_token", Value: refreshToken})
	}
	_, err := r.collection.UpdateOne(ctx, credentialFilter(platform, userID), bson.D{{Key: "$set", Value: set}})
	return err
}

func (r *CredentialRepositoryMongo) DeleteCredential(ctx context.Context, platform model.Platform, userID string) error {
	_, err := r.collection.DeleteOne(ctx, credentialFilter(platform, userID))
	return err
}
