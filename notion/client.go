package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"
	// PageSize is the size of the single listing page requested per call.
	PageSize = 100
)

// Credentials authenticate a single call against the store.
type Credentials struct {
	Token string
}

// Client talks to the Notion REST API. It holds no credentials; every call
// takes them explicitly.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string
	limiter    *rate.Limiter
	attempts   uint
	retryDelay time.Duration
	logger     *zap.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithVersion(version string) ClientOption {
	return func(c *Client) {
		if version != "" {
			c.version = version
		}
	}
}

// WithRateLimit caps outgoing requests per second. A limit <= 0 disables limiting.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetries sets how many times a request is attempted in total when the
// store answers 429, 5xx or the transport fails.
func WithRetries(attempts uint, delay time.Duration) ClientOption {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.attempts = attempts
		c.retryDelay = delay
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		version:    DefaultVersion,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		attempts:   3,
		retryDelay: 500 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryDatabase returns the first page of rows of a database.
func (c *Client) QueryDatabase(ctx context.Context, creds Credentials, databaseID string) ([]Page, error) {
	body, err := json.Marshal(map[string]int{"page_size": PageSize})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	var resp listResponse[Page]
	if err := c.do(ctx, creds, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ListBlockChildren returns the first page of direct children of a block or page.
func (c *Client) ListBlockChildren(ctx context.Context, creds Credentials, blockID string) ([]Block, error) {
	path := fmt.Sprintf("/blocks/%s/children?page_size=%d", url.PathEscape(blockID), PageSize)
	var resp listResponse[Block]
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	for _, block := range resp.Results {
		if content, ok := block.Content.(*UnsupportedContent); ok && content.DecodeErr != nil {
			c.logger.Debug("skipping malformed block", zap.String("parentID", blockID), zap.String("blockID", block.ID), zap.Error(content.DecodeErr))
		}
	}
	return resp.Results, nil
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, body []byte, out any) error {
	if creds.Token == "" {
		return ErrMissingToken
	}
	raw, err := retry.DoWithData(
		func() ([]byte, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return c.roundTrip(ctx, creds, method, path, body)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying notion request", zap.String("path", path), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, creds Credentials, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return nil, apiErr
	}
	return data, nil
}
