package instagram

import (
	"context"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/platformauth"
)

// Refresher extends a long-lived Instagram token with the ig_refresh_token
// grant. The refresh endpoint is unversioned, hence the separate client.
type Refresher struct {
	auth  *graph.Client
	graph *graph.Client
}

var _ platformauth.Refresher = (*Refresher)(nil)

func NewRefresher(authClient, apiClient *graph.Client) *Refresher {
	return &Refresher{auth: authClient, graph: apiClient}
}

func (r *Refresher) Refresh(ctx context.Context, cred model.PlatformCredential) (*platformauth.RefreshedToken, error) {
	if cred.AccessToken == "" {
		return nil, model.MissingParameter(model.PlatformInstagram, "access_token")
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	err := r.auth.Get(ctx, "refresh_access_token", struct {
		GrantType string `url:"grant_type"`
	}{GrantType: "ig_refresh_token"}, cred.AccessToken, &resp)
	if err != nil {
		return nil, err
	}
	return &platformauth.RefreshedToken{
		AccessToken: resp.AccessToken,
		ExpiresIn:   time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

func (r *Refresher) Probe(ctx context.Context, cred model.PlatformCredential, accessToken string) error {
	var me struct {
		UserID string `json:"user_id"`
	}
	return r.graph.Get(ctx, "me", fieldsParams{Fields: "user_id,username"}, accessToken, &me)
}
