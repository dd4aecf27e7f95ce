package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"

	"fanwiki/internal/logger"
	"fanwiki/internal/models"
)

const (
	rateLimitRetries = 10
	maxRetryWait     = 90 * time.Second
)

// Client speaks the two-step upload contract of the wiki server.
type Client struct {
	api     *resty.Client
	objects *resty.Client
}

type errorBody struct {
	Error string `json:"error"`
}

type presignRequest struct {
	Step       string `json:"step"`
	FileAmount int    `json:"file_amount"`
}

type submitRequest struct {
	Step string `json:"step"`
	models.PostInput
}

func NewClient(server, token string) *Client {
	api := resty.New().
		SetBaseURL(strings.TrimRight(server, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "fanwiki-importer/1.0").
		SetTimeout(2 * time.Minute).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})).
		SetRetryCount(rateLimitRetries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(maxRetryWait).
		SetRetryAfter(retryAfter).
		AddRetryCondition(func(resp *resty.Response, _ error) bool {
			return resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		}).
		AddRetryHook(func(resp *resty.Response, _ error) {
			if resp != nil {
				clog := logger.Component("importer")
				clog.Debug().
					Str("path", resp.Request.URL).
					Str("retry_after", resp.Header().Get("Retry-After")).
					Msg("rate limited, waiting")
			}
		})
	if token != "" {
		api.SetAuthToken(token)
	}

	return &Client{
		api:     api,
		objects: resty.New().SetTimeout(5 * time.Minute),
	}
}

func newPath(kind models.Kind) string {
	return "/" + string(kind) + "/new"
}

// Presign asks for fileAmount upload URLs. The server appends one more for
// the thumbnail, so the result has fileAmount+1 entries.
func (c *Client) Presign(ctx context.Context, kind models.Kind, fileAmount int) ([]string, error) {
	var result models.PresignResponse
	var apiErr errorBody
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(presignRequest{Step: "1", FileAmount: fileAmount}).
		SetResult(&result).
		SetError(&apiErr).
		Post(newPath(kind))
	if err != nil {
		return nil, fmt.Errorf("presign request failed: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp, apiErr)
	}
	if len(result.PresignedURLs) != fileAmount+1 {
		return nil, fmt.Errorf("asked for %d urls, got %d", fileAmount+1, len(result.PresignedURLs))
	}
	return result.PresignedURLs, nil
}

// PutObject uploads data to a presigned URL with its sniffed content type.
func (c *Client) PutObject(ctx context.Context, url string, data []byte) error {
	resp, err := c.objects.R().
		SetContext(ctx).
		SetHeader("Content-Type", mimetype.Detect(data).String()).
		SetBody(data).
		Put(url)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("upload rejected (%d): %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Submit sends the post metadata and returns the path of the created post.
func (c *Client) Submit(ctx context.Context, kind models.Kind, input models.PostInput) (string, error) {
	var apiErr errorBody
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(submitRequest{Step: "2", PostInput: input}).
		SetError(&apiErr).
		Post(newPath(kind))
	if err != nil {
		return "", fmt.Errorf("submit failed: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusSeeOther:
		return resp.Header().Get("Location"), nil
	case status >= 200 && status < 300:
		return "/" + string(kind) + "/" + input.Slug, nil
	default:
		return "", responseError(resp, apiErr)
	}
}

// retryAfter reads the Retry-After header as seconds or an HTTP date. Zero
// falls back to resty's backoff.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	value := strings.TrimSpace(resp.Header().Get("Retry-After"))
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, nil
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait, nil
		}
	}
	return 0, nil
}

func responseError(resp *resty.Response, body errorBody) error {
	if body.Error != "" {
		return fmt.Errorf("server error (%d): %s", resp.StatusCode(), body.Error)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return errors.New("server error (401): the import token is missing or expired")
	}
	return fmt.Errorf("server error (%d): %s", resp.StatusCode(), resp.String())
}
