package zalo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crm-social/domain/model"
	"crm-social/infrastructure/logger"
	"crm-social/infrastructure/platformauth"

	"github.com/google/go-querystring/query"
)

// DefaultTokenLifetime is the OA access token lifetime assumed when the token
// response carries no usable expires_in.
const DefaultTokenLifetime = 25 * time.Hour

// Refresher rotates OA tokens. Zalo refresh tokens are single-use, so the
// new refresh token must be persisted by the refresh hook.
type Refresher struct {
	oauthBase  string
	api        *Client
	httpClient *http.Client
}

var _ platformauth.Refresher = (*Refresher)(nil)

func NewRefresher(oauthBase string, api *Client, httpClient *http.Client) *Refresher {
	if oauthBase == "" {
		oauthBase = DefaultOAuthBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Refresher{oauthBase: strings.TrimRight(oauthBase, "/"), api: api, httpClient: httpClient}
}

type refreshForm struct {
	AppID        string `url:"app_id"`
	RefreshToken string `url:"refresh_token"`
	GrantType    string `url:"grant_type"`
}

type refreshResponse struct {
	AccessToken      string          `json:"access_token"`
	RefreshToken     string          `json:"refresh_token"`
	ExpiresIn        json.RawMessage `json:"expires_in"`
	Error            int             `json:"error"`
	ErrorName        string          `json:"error_name"`
	ErrorDescription string          `json:"error_description"`
}

func (r *Refresher) Refresh(ctx context.Context, cred model.PlatformCredential) (*platformauth.RefreshedToken, error) {
	if !cred.HasRefreshToken() {
		return nil, model.MissingParameter(model.PlatformZalo, "refresh_token")
	}
	if cred.AppID == "" || cred.AppSecret == "" {
		return nil, model.MissingParameter(model.PlatformZalo, "app_id", "app_secret")
	}
	form, err := query.Values(refreshForm{AppID: cred.AppID, RefreshToken: cred.RefreshToken, GrantType: "refresh_token"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.oauthBase+"/v4/oa/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("secret_key", cred.AppSecret)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, model.WrapError(model.ErrNetwork, model.PlatformZalo, "token refresh request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out refreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode zalo token response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != 0 || out.AccessToken == "" {
		msg := out.ErrorDescription
		if msg == "" {
			msg = out.ErrorName
		}
		return nil, model.Rejected(model.PlatformZalo, strconv.Itoa(out.Error), msg)
	}
	lifetime := DefaultTokenLifetime
	if secs, ok := seconds(out.ExpiresIn); ok {
		lifetime = time.Duration(secs) * time.Second
	} else {
		logger.GetLogger().WithField("platform", model.PlatformZalo).WithField("expires_in", string(out.ExpiresIn)).Warn("zalo token response without usable expires_in, assuming default lifetime")
	}
	return &platformauth.RefreshedToken{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    lifetime,
	}, nil
}

// seconds reads expires_in, which Zalo sends either as a number or a quoted number.
func seconds(raw json.RawMessage) (int64, bool) {
	v := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return secs, true
}

// Probe reads the OA profile.
func (r *Refresher) Probe(ctx context.Context, cred model.PlatformCredential, accessToken string) error {
	var oa struct {
		OAID string `json:"oa_id"`
	}
	return r.api.Get(ctx, "v2.0/oa/getoa", nil, accessToken, &oa)
}
