package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"crm-social/domain/model"
	"crm-social/infrastructure/logger"
	"crm-social/infrastructure/retry"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"
)

const statusResumeIncomplete = 308

// mediaSize reads the byte size of the source media with a HEAD request.
func (c *Client) mediaSize(ctx context.Context, mediaURL string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, mediaURL, nil)
	if err != nil {
		return 0, "", model.WrapError(model.ErrMediaRejected, model.PlatformYouTube, "invalid media url", err)
	}
	resp, err := c.media.Do(req)
	if err != nil {
		return 0, "", transportError(err, "media HEAD request failed")
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pe := model.NewError(model.ErrMediaRejected, model.PlatformYouTube, fmt.Sprintf("media url answered HEAD with %d", resp.StatusCode))
		pe.Code = strconv.Itoa(resp.StatusCode)
		return 0, "", pe
	}
	if resp.ContentLength <= 0 {
		return 0, "", model.NewError(model.ErrMediaRejected, model.PlatformYouTube, "media size is unknown")
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") {
		contentType = "video/*"
	}
	return resp.ContentLength, contentType, nil
}

// initSession opens a resumable upload session and returns its URI.
func (c *Client) initSession(ctx context.Context, video *youtube.Video, size int64, contentType string) (string, error) {
	body, err := json.Marshal(video)
	if err != nil {
		return "", fmt.Errorf("encode video metadata: %w", err)
	}
	u := c.opts.UploadURL + "?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Upload-Content-Type", contentType)

	resp, err := c.authed.Do(req)
	if err != nil {
		return "", transportError(err, "upload session request failed")
	}
	defer resp.Body.Close()
	if err := googleapi.CheckResponse(resp); err != nil {
		return "", classify(err)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", model.NewError(model.ErrNetwork, model.PlatformYouTube, "upload session returned no location")
	}
	return location, nil
}

type putResult struct {
	status  int
	videoID string
	offset  int64 // next byte the session expects after a 308
}

// transfer streams the media into the session. A 308 means the session has
// part of the bytes and the upload resumes from the acknowledged offset; 5xx
// responses are retried with exponential backoff after asking the session for
// its offset; any other status fails at once.
func (c *Client) transfer(ctx context.Context, session, mediaURL string, size int64, contentType string) (string, error) {
	lg := logger.GetLogger().WithField("platform", model.PlatformYouTube)
	policy := retry.Exponential(c.opts.UploadRetries+1, c.opts.UploadBaseDelay).WithSleep(c.opts.Sleep)
	var (
		offset  int64
		resumes int
		videoID string
	)
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			st, err := c.queryOffset(ctx, session, size)
			if err != nil {
				return err
			}
			if st.videoID != "" {
				videoID = st.videoID
				return nil
			}
			offset = st.offset
			lg.WithField("attempt", attempt).WithField("offset", offset).Info("resuming upload after server error")
		}
		for {
			res, err := c.putFrom(ctx, session, mediaURL, offset, size, contentType)
			if err != nil {
				return err
			}
			switch {
			case res.status == http.StatusOK || res.status == http.StatusCreated:
				videoID = res.videoID
				return nil
			case res.status == statusResumeIncomplete:
				resumes++
				if resumes > c.opts.ResumeAttempts {
					return retry.Permanent(model.NewError(model.ErrNetwork, model.PlatformYouTube,
						fmt.Sprintf("upload still incomplete after %d resumptions", c.opts.ResumeAttempts)))
				}
				offset = res.offset
				lg.WithField("offset", offset).Debug("upload incomplete, resuming")
			case res.status >= 500:
				pe := model.NewError(model.ErrNetwork, model.PlatformYouTube, fmt.Sprintf("upload failed with status %d", res.status))
				pe.Code = strconv.Itoa(res.status)
				return pe
			default:
				return retry.Permanent(uploadStatusError(res))
			}
		}
	})
	if err != nil {
		return "", err
	}
	if videoID == "" {
		return "", model.NewError(model.ErrNetwork, model.PlatformYouTube, "upload finished without a video id")
	}
	return videoID, nil
}

func uploadStatusError(res putResult) error {
	if res.status == http.StatusUnauthorized {
		pe := model.NewError(model.ErrAuthExpired, model.PlatformYouTube, "upload session rejected the access token")
		pe.Code = "401"
		return pe
	}
	return model.Rejected(model.PlatformYouTube, strconv.Itoa(res.status), fmt.Sprintf("upload rejected with status %d", res.status))
}

// putFrom sends bytes [offset, size) read from the media URL.
func (c *Client) putFrom(ctx context.Context, session, mediaURL string, offset, size int64, contentType string) (putResult, error) {
	src, err := c.openMedia(ctx, mediaURL, offset)
	if err != nil {
		return putResult{}, err
	}
	defer src.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, src)
	if err != nil {
		return putResult{}, retry.Permanent(err)
	}
	req.ContentLength = size - offset
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, size-1, size))
	return c.doSession(req)
}

// queryOffset asks the session how many bytes it holds.
func (c *Client) queryOffset(ctx context.Context, session string, size int64) (putResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, http.NoBody)
	if err != nil {
		return putResult{}, retry.Permanent(err)
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
	res, err := c.doSession(req)
	if err != nil {
		return putResult{}, err
	}
	switch {
	case res.status == http.StatusOK || res.status == http.StatusCreated:
		return res, nil
	case res.status == statusResumeIncomplete:
		return res, nil
	case res.status >= 500:
		return putResult{}, model.NewError(model.ErrNetwork, model.PlatformYouTube, fmt.Sprintf("upload status query failed with %d", res.status))
	}
	return putResult{}, retry.Permanent(uploadStatusError(res))
}

func (c *Client) doSession(req *http.Request) (putResult, error) {
	resp, err := c.authed.Do(req)
	if err != nil {
		return putResult{}, transportError(err, "upload request failed")
	}
	defer resp.Body.Close()
	res := putResult{status: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var v struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return putResult{}, retry.Permanent(model.WrapError(model.ErrNetwork, model.PlatformYouTube, "decode upload response", err))
		}
		res.videoID = v.ID
	case resp.StatusCode == statusResumeIncomplete:
		res.offset = nextOffset(resp.Header.Get("Range"))
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return res, nil
}

// nextOffset parses "bytes=0-N" into N+1; no header means nothing was stored.
func nextOffset(rangeHeader string) int64 {
	r := strings.TrimPrefix(rangeHeader, "bytes=")
	i := strings.LastIndex(r, "-")
	if i < 0 {
		return 0
	}
	last, err := strconv.ParseInt(r[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return last + 1
}

// openMedia streams the source media from offset. Servers that ignore the
// Range header are skipped forward by discarding the prefix.
func (c *Client) openMedia(ctx context.Context, mediaURL string, offset int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := c.media.Do(req)
	if err != nil {
		return nil, transportError(err, "media download failed")
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusOK:
		if offset > 0 {
			if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
				resp.Body.Close()
				return nil, model.WrapError(model.ErrNetwork, model.PlatformYouTube, "media download failed", err)
			}
		}
		return resp.Body, nil
	}
	resp.Body.Close()
	pe := model.NewError(model.ErrMediaRejected, model.PlatformYouTube, fmt.Sprintf("media download answered %d", resp.StatusCode))
	pe.Code = strconv.Itoa(resp.StatusCode)
	return nil, retry.Permanent(pe)
}
