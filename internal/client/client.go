// Package client performs the blocking HTTP requests the source adapters rely on.
package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"jpoints/ingestion/internal/metrics"
)

// ErrTransient marks failures that may succeed when tried again: network
// errors, timeouts and 429/5xx gateway statuses.
var ErrTransient = crerr.New("upstream transient failure")

// IsTransient reports whether err is, or wraps, a transient failure.
func IsTransient(err error) bool {
	return stderrors.Is(err, ErrTransient)
}

// Config configures a Client.
type Config struct {
	// Source labels request metrics, e.g. "jleague" or "jfa".
	Source     string
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	RetryDelay time.Duration

	// ConstantBackoff waits RetryDelay between every attempt instead of doubling it.
	ConstantBackoff bool
	// HTTPClient is shared between clients when set; Timeout is then ignored.
	HTTPClient      *http.Client
}

// Client is a plain GET client with a per-request timeout and optional bounded retry.
type Client struct {
	source     string
	userAgent  string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	constant   bool
}

// NewHTTPClient builds the pooled HTTP client requests go through.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewClient creates a client. MaxRetries of zero means a single attempt.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.Timeout)
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	source := cfg.Source
	if source == "" {
		source = "http"
	}

	return &Client{
		source:     source,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
		constant:   cfg.ConstantBackoff,
	}
}

// MaxRetries returns the configured retry budget.
func (c *Client) MaxRetries() int {
	return c.maxRetries
}

// Get fetches url and returns the body of a 200 response.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			if c.constant {
				backoff = c.retryDelay
			}
			log.Info().
				Str("url", url).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying request after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.do(ctx, url, attempt)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !IsTransient(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < c.maxRetries {
			log.Warn().
				Err(err).
				Str("url", url).
				Int("attempt", attempt+1).
				Msg("Received retryable error, will retry")
		}
	}

	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string, attempt int) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log.Debug().
		Str("url", url).
		Str("method", req.Method).
		Int("attempt", attempt+1).
		Msg("Making request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(c.source, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: request failed: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordAPICall(c.source, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrTransient, err)
	}
	metrics.RecordAPICall(c.source, fmt.Sprintf("%d", resp.StatusCode), time.Since(start).Seconds())

	switch resp.StatusCode {
	case http.StatusOK:
		log.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("size", len(body)).
			Msg("Request successful")
		return body, nil

	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: %s returned status %d", ErrTransient, url, resp.StatusCode)

	default:
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
}
