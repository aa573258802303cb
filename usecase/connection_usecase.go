package usecase

import (
	"context"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/logger"

	"golang.org/x/sync/errgroup"
)

// ConnectionStatus describes one platform connection of a user.
type ConnectionStatus struct {
	Platform    model.Platform `json:"platform"`
	Connected   bool           `json:"connected"`
	Valid       bool           `json:"valid"`
	AccountID   string         `json:"account_id,omitempty"`
	AccountName string         `json:"account_name,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
}

type IConnectionUsecase interface {
	// Connect stores a credential obtained by an OAuth flow and drops any cached adapter.
	Connect(ctx context.Context, cred *model.PlatformCredential) error
	Disconnect(ctx context.Context, platform model.Platform, userID string) error
	Status(ctx context.Context, userID string) ([]ConnectionStatus, error)
}

type connectionUsecase struct {
	credentials repository.ICredentialRepository
	factory     repository.IPlatformFactory
}

func NewConnectionUsecase(credentials repository.ICredentialRepository, factory repository.IPlatformFactory) IConnectionUsecase {
	return &connectionUsecase{credentials: credentials, factory: factory}
}

func (u *connectionUsecase) Connect(ctx context.Context, cred *model.PlatformCredential) error {
	if cred == nil || cred.UserID == "" || cred.AccessToken == "" {
		return model.NewError(model.ErrMissingParameter, "", "credential with user and access token required")
	}
	if err := u.credentials.UpsertCredential(ctx, cred); err != nil {
		return err
	}
	u.factory.ClearUserCache(cred.Platform, cred.UserID)
	logger.GetLogger().WithField("platform", cred.Platform).WithField("user_id", cred.UserID).Info("platform connected")
	return nil
}

func (u *connectionUsecase) Disconnect(ctx context.Context, platform model.Platform, userID string) error {
	if userID == "" {
		return model.MissingParameter(platform, "userId")
	}
	if err := u.credentials.DeleteCredential(ctx, platform, userID); err != nil {
		return err
	}
	u.factory.ClearUserCache(platform, userID)
	logger.GetLogger().WithField("platform", platform).WithField("user_id", userID).Info("platform disconnected")
	return nil
}

// Status verifies every supported platform concurrently.
func (u *connectionUsecase) Status(ctx context.Context, userID string) ([]ConnectionStatus, error) {
	if userID == "" {
		return nil, model.MissingParameter("", "userId")
	}
	out := make([]ConnectionStatus, len(model.Platforms))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range model.Platforms {
		g.Go(func() error {
			st := ConnectionStatus{Platform: p}
			cred, err := u.credentials.GetCredential(gctx, p, userID)
			if err != nil {
				return err
			}
			if cred != nil {
				st.Connected = true
				st.AccountID = cred.PlatformAccountID
				st.AccountName = cred.AccountName
				if !cred.ExpiresAt.IsZero() {
					exp := cred.ExpiresAt
					st.ExpiresAt = &exp
				}
				if adapter, err := u.factory.Create(gctx, p, userID); err == nil {
					st.Valid = adapter.VerifyAuth(gctx)
				}
			}
			out[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
