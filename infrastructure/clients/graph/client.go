// Package graph is a small client for Meta's Graph API, shared by the
// Facebook and Instagram adapters. It maps the Graph error object into the
// adapter-layer error taxonomy.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"crm-social/domain/model"
	"crm-social/infrastructure/retry"

	"github.com/google/go-querystring/query"
)

// APIError is the Graph API error object.
type APIError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode"`
	UserTitle string `json:"error_user_title"`
	UserMsg   string `json:"error_user_msg"`
	TraceID   string `json:"fbtrace_id"`
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// Graph error codes that mean the token can no longer be used.
const (
	codeInvalidToken   = 190
	codeSessionExpired = 102
)

// Client issues Graph requests with the access token passed per call.
type Client struct {
	platform   model.Platform
	baseURL    string
	httpClient *http.Client
	retry      retry.Policy
}

// NewClient builds a client for baseURL, e.g. https://graph.facebook.com/v19.0.
// Idempotent GETs are retried on transport errors and 5xx responses per policy.
func NewClient(platform model.Platform, baseURL string, httpClient *http.Client, policy retry.Policy) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{platform: platform, baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient, retry: policy}
}

// BaseURL returns the versioned API root.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) endpoint(path string, params interface{}, accessToken string) (string, error) {
	v := url.Values{}
	if params != nil {
		encoded, err := query.Values(params)
		if err != nil {
			return "", fmt.Errorf("encode graph params: %w", err)
		}
		v = encoded
	}
	if accessToken != "" {
		v.Set("access_token", accessToken)
	}
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if enc := v.Encode(); enc != "" {
		u += "?" + enc
	}
	return u, nil
}

// Get performs a GET and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, path string, params interface{}, accessToken string, out interface{}) error {
	u, err := c.endpoint(path, params, accessToken)
	if err != nil {
		return model.WrapError(model.ErrMissingParameter, c.platform, "invalid graph parameters", err)
	}
	return retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		err = c.do(req, out)
		if isTransient(err) {
			return err
		}
		return retry.Permanent(err)
	})
}

// PostForm performs a form-encoded POST; params travel in the body.
func (c *Client) PostForm(ctx context.Context, path string, params interface{}, accessToken string, out interface{}) error {
	form := url.Values{}
	if params != nil {
		encoded, err := query.Values(params)
		if err != nil {
			return model.WrapError(model.ErrMissingParameter, c.platform, "invalid graph parameters", err)
		}
		form = encoded
	}
	if accessToken != "" {
		form.Set("access_token", accessToken)
	}
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

// PostJSON performs a JSON POST with the access token in the query string.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}, accessToken string, out interface{}) error {
	u, err := c.endpoint(path, nil, accessToken)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode graph body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// Delete performs a DELETE on path.
func (c *Client) Delete(ctx context.Context, path string, accessToken string, out interface{}) error {
	u, err := c.endpoint(path, nil, accessToken)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return model.WrapError(model.ErrNetwork, c.platform, "graph request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.WrapError(model.ErrNetwork, c.platform, "read graph response", err)
	}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		return c.classify(resp.StatusCode, env.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pe := model.NewError(model.ErrNetwork, c.platform, fmt.Sprintf("unexpected graph status %d", resp.StatusCode))
		pe.Code = strconv.Itoa(resp.StatusCode)
		return pe
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return model.WrapError(model.ErrNetwork, c.platform, "decode graph response", err)
	}
	return nil
}

func (c *Client) classify(status int, apiErr *APIError) error {
	msg := apiErr.Message
	if apiErr.UserMsg != "" {
		msg = apiErr.UserMsg
	}
	code := strconv.Itoa(apiErr.Code)
	switch {
	case apiErr.Code == codeInvalidToken || apiErr.Code == codeSessionExpired:
		pe := model.NewError(model.ErrAuthExpired, c.platform, msg)
		pe.Code = code
		return pe
	case status >= 500:
		pe := model.NewError(model.ErrNetwork, c.platform, msg)
		pe.Code = code
		return pe
	}
	return model.Rejected(c.platform, code, msg)
}

func isTransient(err error) bool {
	return err != nil && errors.Is(err, model.ErrNetwork)
}

// IsAuthError reports whether err means the token was rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, model.ErrAuthExpired)
}
