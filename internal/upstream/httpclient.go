package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClientConfig configures the rate-limited HTTP transport used for all
// content-backend calls.
type HTTPClientConfig struct {
	// Timeout is the per-request timeout. Uploads of large files and
	// status polls share it.
	Timeout time.Duration

	// RateLimit is the sustained requests per second against the backend.
	RateLimit float64

	// BurstSize is the token bucket burst, sized so one upload batch can
	// negotiate its URLs without throttling.
	BurstSize int

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// RetryDelay is the base delay between retries. A Retry-After header
	// from the backend takes precedence.
	RetryDelay time.Duration

	// UserAgent identifies this service to the backend.
	UserAgent string

	// APIKey authenticates backend calls when set.
	APIKey string

	// APIKeyHeader is the header the key is sent under.
	APIKeyHeader string
}

// HTTPClient executes backend requests with rate limiting and retries on
// 429 and 5xx answers. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates the transport with defaults filled in for any
// unset config field.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "article-intake-service/1.0"
	}

	return &HTTPClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes one backend request. Each attempt waits for the rate limiter
// first; 429 answers are retried honoring Retry-After, 5xx answers and
// transport errors are retried after the configured delay. Requests built
// with a GetBody-capable body are rewound between attempts, so JSON and
// byte-slice payloads survive retries.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == c.config.MaxRetries {
				return nil, lastErr
			}
			if err := c.prepareRetry(req, c.config.RetryDelay); err != nil {
				return nil, err
			}
			continue
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		delay := c.retryDelayFor(resp)
		drainBody(resp)

		if attempt == c.config.MaxRetries {
			return nil, fmt.Errorf("max retries exhausted after %d attempts, last status: %d",
				c.config.MaxRetries+1, resp.StatusCode)
		}
		lastErr = fmt.Errorf("backend returned status %d", resp.StatusCode)
		if err := c.prepareRetry(req, delay); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("no response received")
}

// prepareRetry sleeps for the delay and rewinds the request body for the
// next attempt.
func (c *HTTPClient) prepareRetry(req *http.Request, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
	}

	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("cannot retry request: %w", err)
	}
	req.Body = body
	return nil
}

// retryableStatus reports whether the status code warrants another attempt:
// 429 when the backend throttles, 5xx when it is failing.
func retryableStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// retryDelayFor picks the wait before the next attempt. A Retry-After
// header wins, given either as seconds or as an HTTP date; otherwise the
// configured base delay applies.
func (c *HTTPClient) retryDelayFor(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

// drainBody consumes and closes a response body that will not be returned,
// so the underlying connection can be reused.
func drainBody(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
