// Package zalo implements the Official Account adapter: broadcast posting
// by fan-out to followers and customer-service messaging.
package zalo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"crm-social/domain/model"
	"crm-social/infrastructure/retry"

	"github.com/google/go-querystring/query"
)

const (
	DefaultAPIBaseURL   = "https://openapi.zalo.me"
	DefaultOAuthBaseURL = "https://oauth.zaloapp.com"
)

// Zalo error codes meaning the access token is unusable.
var authErrorCodes = map[int]bool{
	-216: true, // access token invalid
	-124: true, // access token expired
	-230: true, // user has not granted the oa permission
}

type envelope struct {
	Error   int             `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client speaks the OA open API; the access token travels in a header.
// Reads are retried on network errors and 5xx answers.
type Client struct {
	apiBase    string
	httpClient *http.Client
	retry      retry.Policy
}

func NewClient(apiBase string, httpClient *http.Client) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{apiBase: strings.TrimRight(apiBase, "/"), httpClient: httpClient}
}

// WithRetry sets the policy applied to Get.
func (c *Client) WithRetry(p retry.Policy) *Client {
	c.retry = p
	return c
}

// dataParam carries the JSON-encoded "data" query argument used by OA reads.
type dataParam struct {
	Data string `url:"data"`
}

func jsonParam(v interface{}) (dataParam, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return dataParam{}, err
	}
	return dataParam{Data: string(raw)}, nil
}

func (c *Client) Get(ctx context.Context, path string, params interface{}, token string, out interface{}) error {
	u := c.apiBase + "/" + strings.TrimLeft(path, "/")
	if params != nil {
		v, err := query.Values(params)
		if err != nil {
			return fmt.Errorf("encode zalo params: %w", err)
		}
		u += "?" + v.Encode()
	}
	return retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("access_token", token)
		err = c.do(req, out)
		if errors.Is(err, model.ErrNetwork) {
			return err
		}
		return retry.Permanent(err)
	})
}

func (c *Client) PostJSON(ctx context.Context, path string, body interface{}, token string, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode zalo body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/"+strings.TrimLeft(path, "/"), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", token)
	return c.do(req, out)
}

// Upload sends one file as multipart "file".
func (c *Client) Upload(ctx context.Context, path, filename string, data []byte, token string, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/"+strings.TrimLeft(path, "/"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("access_token", token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return model.WrapError(model.ErrNetwork, model.PlatformZalo, "zalo request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.WrapError(model.ErrNetwork, model.PlatformZalo, "read zalo response", err)
	}
	if resp.StatusCode >= 500 {
		pe := model.NewError(model.ErrNetwork, model.PlatformZalo, fmt.Sprintf("zalo answered %d", resp.StatusCode))
		pe.Code = strconv.Itoa(resp.StatusCode)
		return pe
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.WrapError(model.ErrNetwork, model.PlatformZalo, "decode zalo response", err)
	}
	if env.Error != 0 {
		return classify(env.Error, env.Message)
	}
	if resp.StatusCode >= 300 {
		return model.Rejected(model.PlatformZalo, strconv.Itoa(resp.StatusCode), "zalo request rejected")
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return model.WrapError(model.ErrNetwork, model.PlatformZalo, "decode zalo data", err)
	}
	return nil
}

func classify(code int, message string) error {
	if message == "" {
		message = "zalo request rejected"
	}
	if authErrorCodes[code] {
		pe := model.NewError(model.ErrAuthExpired, model.PlatformZalo, message)
		pe.Code = strconv.Itoa(code)
		return pe
	}
	return model.Rejected(model.PlatformZalo, strconv.Itoa(code), message)
}

// download fetches a media file, refusing anything above limit bytes.
func download(ctx context.Context, httpClient *http.Client, mediaURL string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", model.WrapError(model.ErrMediaRejected, model.PlatformZalo, "invalid media url", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", model.WrapError(model.ErrNetwork, model.PlatformZalo, "media download failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		pe := model.NewError(model.ErrMediaRejected, model.PlatformZalo, fmt.Sprintf("media download answered %d", resp.StatusCode))
		pe.Code = strconv.Itoa(resp.StatusCode)
		return nil, "", pe
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", model.WrapError(model.ErrNetwork, model.PlatformZalo, "media download failed", err)
	}
	if int64(len(data)) > limit {
		return nil, "", model.NewError(model.ErrMediaRejected, model.PlatformZalo, fmt.Sprintf("media exceeds %d bytes", limit))
	}
	return data, fileName(mediaURL), nil
}

func fileName(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return "upload"
	}
	parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	if name := parts[len(parts)-1]; name != "" {
		return name
	}
	return "upload"
}
