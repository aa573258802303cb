package facebook

import (
	"context"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/platformauth"
)

// Refresher extends a long-lived token through the fb_exchange_token grant.
// Page tokens derived from a long-lived user token do not expire, so the
// exchange mostly matters for user-level credentials.
type Refresher struct {
	graph *graph.Client
}

var _ platformauth.Refresher = (*Refresher)(nil)

func NewRefresher(client *graph.Client) *Refresher {
	return &Refresher{graph: client}
}

type exchangeParams struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FBExchangeToken string `url:"fb_exchange_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (r *Refresher) Refresh(ctx context.Context, cred model.PlatformCredential) (*platformauth.RefreshedToken, error) {
	if cred.AppID == "" || cred.AppSecret == "" {
		return nil, model.MissingParameter(model.PlatformFacebook, "app_id", "app_secret")
	}
	current := cred.RefreshToken
	if current == "" {
		current = cred.AccessToken
	}
	if current == "" {
		return nil, model.MissingParameter(model.PlatformFacebook, "access_token")
	}
	var resp tokenResponse
	err := r.graph.Get(ctx, "oauth/access_token", exchangeParams{
		GrantType:       "fb_exchange_token",
		ClientID:        cred.AppID,
		ClientSecret:    cred.AppSecret,
		FBExchangeToken: current,
	}, "", &resp)
	if err != nil {
		return nil, err
	}
	return &platformauth.RefreshedToken{
		AccessToken: resp.AccessToken,
		ExpiresIn:   time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

// Probe reads the page id with the token.
func (r *Refresher) Probe(ctx context.Context, cred model.PlatformCredential, accessToken string) error {
	var me struct {
		ID string `json:"id"`
	}
	return r.graph.Get(ctx, "me", fieldsParams{Fields: "id"}, accessToken, &me)
}
