package http

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/clients/graph"
	"crm-social/infrastructure/configuration"
	"crm-social/infrastructure/logger"
	"crm-social/usecase"

	"github.com/gin-gonic/gin"
)

var facebookScopes = []string{
	"pages_show_list",
	"pages_read_engagement",
	"pages_manage_posts",
	"pages_messaging",
	"public_profile",
}

type IFacebookOAuthHandler interface {
	GetAuthURL(ctx *gin.Context)
	Callback(ctx *gin.Context)
}

type facebookOAuthHandler struct {
	app        configuration.PlatformApp
	graph      *graph.Client
	states     repository.IOAuthStateStore
	connection usecase.IConnectionUsecase
	dialogURL  string
}

func NewFacebookOAuthHandler(app configuration.PlatformApp, client *graph.Client, states repository.IOAuthStateStore, connection usecase.IConnectionUsecase) IFacebookOAuthHandler {
	return &facebookOAuthHandler{
		app:        app,
		graph:      client,
		states:     states,
		connection: connection,
		dialogURL:  "https://www.facebook.com/v19.0/dialog/oauth",
	}
}

// GetAuthURL builds the Facebook login dialog URL for the authenticated CRM user.
func (h *facebookOAuthHandler) GetAuthURL(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if h.app.AppID == "" || h.app.RedirectURI == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "facebook oauth not configured"})
		return
	}
	state := randomState()
	if err := h.states.Save(c.Request.Context(), state, userID, stateTTL); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed to save facebook oauth state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "state_store_failed"})
		return
	}
	scopes := facebookScopes
	if len(h.app.Scopes) > 0 {
		scopes = h.app.Scopes
	}
	q := url.Values{}
	q.Set("client_id", h.app.AppID)
	q.Set("redirect_uri", h.app.RedirectURI)
	q.Set("state", state)
	q.Set("scope", strings.Join(scopes, ","))
	c.JSON(http.StatusOK, gin.H{"auth_url": h.dialogURL + "?" + q.Encode(), "state": state})
}

type codeExchangeParams struct {
	ClientID     string `url:"client_id"`
	ClientSecret string `url:"client_secret"`
	RedirectURI  string `url:"redirect_uri"`
	Code         string `url:"code"`
}

type longLivedParams struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FBExchangeToken string `url:"fb_exchange_token"`
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type pageAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

type fieldsParams struct {
	Fields string `url:"fields"`
}

// Callback exchanges the code for a long-lived user token, then stores the
// token of the selected page. Page tokens obtained this way do not expire.
func (h *facebookOAuthHandler) Callback(c *gin.Context) {
	lg := logger.GetLogger()
	if e := c.Query("error"); e != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": e, "description": c.Query("error_description")})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	ctx := c.Request.Context()
	userID, ok, err := h.states.Consume(ctx, c.Query("state"))
	if err != nil {
		lg.WithField("error", err).Error("failed to read facebook oauth state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "state_store_failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state"})
		return
	}

	var short accessTokenResponse
	if err := h.graph.Get(ctx, "oauth/access_token", codeExchangeParams{
		ClientID:     h.app.AppID,
		ClientSecret: h.app.AppSecret,
		RedirectURI:  h.app.RedirectURI,
		Code:         code,
	}, "", &short); err != nil {
		lg.WithField("error", err).Error("facebook token exchange failed")
		respondError(c, err)
		return
	}
	var long accessTokenResponse
	if err := h.graph.Get(ctx, "oauth/access_token", longLivedParams{
		GrantType:       "fb_exchange_token",
		ClientID:        h.app.AppID,
		ClientSecret:    h.app.AppSecret,
		FBExchangeToken: short.AccessToken,
	}, "", &long); err != nil {
		lg.WithField("error", err).Error("facebook long-lived exchange failed")
		respondError(c, err)
		return
	}
	var pages struct {
		Data []pageAccount `json:"data"`
	}
	if err := h.graph.Get(ctx, "me/accounts", fieldsParams{Fields: "id,name,access_token"}, long.AccessToken, &pages); err != nil {
		lg.WithField("error", err).Error("facebook pages fetch failed")
		respondError(c, err)
		return
	}
	page, found := selectPage(pages.Data, c.Query("page_id"))
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_pages_available"})
		return
	}

	scopes := facebookScopes
	if len(h.app.Scopes) > 0 {
		scopes = h.app.Scopes
	}
	if err := h.connection.Connect(ctx, &model.PlatformCredential{
		UserID:            userID,
		Platform:          model.PlatformFacebook,
		AppID:             h.app.AppID,
		AccessToken:       page.AccessToken,
		PlatformAccountID: page.ID,
		AccountName:       page.Name,
		Scopes:            strings.Join(scopes, ","),
	}); err != nil {
		lg.WithField("error", err).Error("failed to store facebook credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_token_failed"})
		return
	}
	if c.Query("frontend") == "1" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(connectedPage("facebook-oauth", page.ID, page.Name)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "page_id": page.ID, "page_name": page.Name})
}

// selectPage picks pageID when given, otherwise the first page listed.
func selectPage(pages []pageAccount, pageID string) (pageAccount, bool) {
	for _, p := range pages {
		if pageID == "" || p.ID == pageID {
			return p, p.AccessToken != ""
		}
	}
	return pageAccount{}, false
}

// connectedPage notifies the opener window of a popup-based connect flow.
func connectedPage(source, accountID, accountName string) string {
	js := template.JSEscapeString
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>Connected</title></head><body><script>`+
		`if (window.opener){window.opener.postMessage({source:'%s',connected:true,account_id:'%s',account_name:'%s'},'*');window.close();}`+
		`else{document.body.textContent='Connected: %s';}</script></body></html>`,
		js(source), js(accountID), js(accountName), js(accountName))
}
