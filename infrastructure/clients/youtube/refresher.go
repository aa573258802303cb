package youtube

import (
	"context"
	"net/http"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/platformauth"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Scopes requested by the connect flow and kept on refresh.
var Scopes = []string{
	youtube.YoutubeScope,
	youtube.YoutubeUploadScope,
	youtube.YoutubeForceSslScope,
}

// OAuthConfig builds the Google OAuth2 config for an app.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

// Refresher exchanges the stored refresh token through Google's token endpoint.
type Refresher struct {
	endpoint   oauth2.Endpoint
	httpClient *http.Client
	apiBaseURL string
}

var _ platformauth.Refresher = (*Refresher)(nil)

// NewRefresher uses google.Endpoint unless tokenURL is set.
func NewRefresher(httpClient *http.Client, tokenURL, apiBaseURL string) *Refresher {
	endpoint := google.Endpoint
	if tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Refresher{endpoint: endpoint, httpClient: httpClient, apiBaseURL: apiBaseURL}
}

func (r *Refresher) Refresh(ctx context.Context, cred model.PlatformCredential) (*platformauth.RefreshedToken, error) {
	if !cred.HasRefreshToken() {
		return nil, model.MissingParameter(model.PlatformYouTube, "refresh_token")
	}
	conf := &oauth2.Config{ClientID: cred.AppID, ClientSecret: cred.AppSecret, Endpoint: r.endpoint, Scopes: Scopes}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken, Expiry: time.Unix(1, 0)}).Token()
	if err != nil {
		return nil, err
	}
	out := &platformauth.RefreshedToken{AccessToken: tok.AccessToken}
	if tok.RefreshToken != cred.RefreshToken {
		out.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		out.ExpiresIn = time.Until(tok.Expiry).Round(time.Second)
	}
	return out, nil
}

// Probe lists the authenticated channel.
func (r *Refresher) Probe(ctx context.Context, cred model.PlatformCredential, accessToken string) error {
	client := &http.Client{Transport: &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
		Base:   r.httpClient.Transport,
	}}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if r.apiBaseURL != "" {
		opts = append(opts, option.WithEndpoint(r.apiBaseURL))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return err
	}
	resp, err := service.Channels.List([]string{"id"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return classify(err)
	}
	if len(resp.Items) == 0 {
		return model.NewError(model.ErrPlatformRejected, model.PlatformYouTube, "no channel found for authenticated user")
	}
	return nil
}
