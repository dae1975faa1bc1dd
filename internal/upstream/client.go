package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/observability"
)

// sourceName identifies the backend in error messages and logs.
const sourceName = "content-backend"

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 4 * 1024

// Config holds content-backend client configuration.
type Config struct {
	// BaseURL is the backend API base URL (e.g., "https://content.example.com/api").
	BaseURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the burst size for the rate limiter.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header for backend calls.
	UserAgent string

	// APIKey authenticates backend calls when set.
	APIKey string

	// APIKeyHeader is the header name the API key is sent under.
	APIKeyHeader string
}

// Client calls the content backend: upload URL negotiation, raw byte
// transfer, processing-status reads, lookup lists, and final submission.
// It is safe for concurrent use.
type Client struct {
	httpClient *HTTPClient
	baseURL    string
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a new content-backend client.
func NewClient(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("content backend base URL is required")
	}

	return &Client{
		httpClient: NewHTTPClient(HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			MaxRetries:   cfg.MaxRetries,
			RetryDelay:   cfg.RetryDelay,
			UserAgent:    cfg.UserAgent,
			APIKey:       cfg.APIKey,
			APIKeyHeader: cfg.APIKeyHeader,
		}),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger.With().Str("component", "upstream_client").Logger(),
		metrics: metrics,
	}, nil
}

// UploadTarget is the backend's answer to an upload negotiation: the id the
// file will be known by and the URL to transfer bytes to.
type UploadTarget struct {
	UUID      string `json:"uuid"`
	UploadURL string `json:"uploadUrl"`
}

// generateURLRequest is the wire shape of the upload negotiation request.
// The backend expects the content type under both fileType and
// contentFileMimeType.
type generateURLRequest struct {
	FileName            string `json:"fileName"`
	FileSize            int64  `json:"fileSize"`
	FileType            string `json:"fileType"`
	ContentFileMimeType string `json:"contentFileMimeType"`
}

// GenerateUploadURL negotiates an upload with the backend and returns the
// assigned file UUID and the upload target URL.
func (c *Client) GenerateUploadURL(ctx context.Context, name string, size int64, mimeType string) (*UploadTarget, error) {
	var target UploadTarget
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/articles/upload/generate-url", "generate_url",
		generateURLRequest{FileName: name, FileSize: size, FileType: mimeType, ContentFileMimeType: mimeType}, &target)
	if err != nil {
		return nil, err
	}
	if target.UUID == "" || target.UploadURL == "" {
		return nil, domain.NewExternalAPIError(sourceName, http.StatusOK, "upload negotiation returned empty uuid or url", nil)
	}
	return &target, nil
}

// UploadBytes transfers raw file content to a previously negotiated upload URL.
func (c *Client) UploadBytes(ctx context.Context, uploadURL, mimeType string, content []byte) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.ContentLength = int64(len(content))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure("upload", "transport")
		return domain.NewExternalAPIError(sourceName, 0, "upload transfer failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordFailure("upload", "status")
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, readErrorBody(resp.Body), nil)
	}

	c.recordSuccess("upload", time.Since(start))
	return nil
}

// statusResponse is the wire shape of a processing-status read.
type statusResponse struct {
	Status       string           `json:"status"`
	Analysis     *domain.Analysis `json:"analysis"`
	ErrorMessage string           `json:"errorMessage"`
}

// GetProcessingStatus reads the analysis state of an uploaded file. A body
// that cannot be decoded is reported as a retryable external error, not a
// terminal state; the caller's poll loop decides when to give up.
func (c *Client) GetProcessingStatus(ctx context.Context, fileUUID string) (*domain.ProcessingStatus, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/article-idp/"+fileUUID, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure("status", "transport")
		return nil, domain.NewExternalAPIError(sourceName, 0, "status request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.recordFailure("status", "not_found")
		return nil, domain.NewNotFoundError("processing status", fileUUID)
	}
	if resp.StatusCode != http.StatusOK {
		c.recordFailure("status", "status")
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, readErrorBody(resp.Body), nil)
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		c.recordFailure("status", "decode")
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "undecodable status body", err)
	}

	status := domain.FileStatus(sr.Status)
	switch status {
	case domain.FileStatusProcessing, domain.FileStatusCompleted, domain.FileStatusFailed:
	default:
		c.recordFailure("status", "decode")
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, fmt.Sprintf("unknown processing status %q", sr.Status), nil)
	}

	c.recordSuccess("status", time.Since(start))
	return &domain.ProcessingStatus{
		Status:       status,
		Analysis:     sr.Analysis,
		ErrorMessage: sr.ErrorMessage,
	}, nil
}

// SubmitRequest is the wire shape of the batch submission.
type SubmitRequest struct {
	Articles []domain.ArticleSubmission `json:"articles"`
}

// SubmitResult is the backend's answer to a batch submission.
type SubmitResult struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// SubmitArticles delivers the assembled article records as one batch. Any
// non-success answer is a failure of the whole batch.
func (c *Client) SubmitArticles(ctx context.Context, articles []domain.ArticleSubmission) (*SubmitResult, error) {
	var result SubmitResult
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/articles/submit", "submit",
		SubmitRequest{Articles: articles}, &result)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, domain.NewExternalAPIError(sourceName, http.StatusOK, "backend rejected article batch", nil)
	}
	return &result, nil
}

// lookupEndpoints maps each lookup list to its backend path.
var lookupEndpoints = map[string]string{
	"media":                    "/media",
	"sources":                  "/sources",
	"languages":                "/languages",
	"educationalMethodologies": "/educational-methodologies",
	"educationalFrameworks":    "/educational-frameworks",
	"educationalTools":         "/educational-tools",
	"businessUnits":            "/business-units",
	"courses":                  "/courses",
	"regions":                  "/regions",
	"jobTitles":                "/job-titles",
}

// FetchLookups loads all reference lists from the backend concurrently.
// Any single failed list fails the whole fetch.
func (c *Client) FetchLookups(ctx context.Context) (*domain.Lookups, error) {
	lookups := &domain.Lookups{}
	targets := map[string]*[]domain.IdName{
		"media":                    &lookups.Media,
		"sources":                  &lookups.Sources,
		"languages":                &lookups.Languages,
		"educationalMethodologies": &lookups.EducationalMethodologies,
		"educationalFrameworks":    &lookups.EducationalFrameworks,
		"educationalTools":         &lookups.EducationalTools,
		"businessUnits":            &lookups.BusinessUnits,
		"courses":                  &lookups.Courses,
		"regions":                  &lookups.Regions,
		"jobTitles":                &lookups.JobTitles,
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, dst := range targets {
		dst := dst
		path := lookupEndpoints[name]
		g.Go(func() error {
			return c.doJSON(gctx, http.MethodGet, c.baseURL+path, "lookup", nil, dst)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch lookups: %w", err)
	}

	c.logger.Debug().
		Int("business_units", len(lookups.BusinessUnits)).
		Int("courses", len(lookups.Courses)).
		Int("regions", len(lookups.Regions)).
		Int("job_titles", len(lookups.JobTitles)).
		Msg("lookups fetched")

	return lookups, nil
}

// doJSON performs a JSON request/response round trip against the backend.
// A nil body sends no payload; a nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, url, endpoint string, body, out any) error {
	start := time.Now()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(endpoint, "transport")
		return domain.NewExternalAPIError(sourceName, 0, endpoint+" request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordFailure(endpoint, "status")
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, readErrorBody(resp.Body), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.recordFailure(endpoint, "decode")
			return domain.NewExternalAPIError(sourceName, resp.StatusCode, "undecodable "+endpoint+" body", err)
		}
	}

	c.recordSuccess(endpoint, time.Since(start))
	return nil
}

// recordSuccess updates request metrics for a successful call.
func (c *Client) recordSuccess(endpoint string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(endpoint, elapsed.Seconds())
	}
}

// recordFailure updates request metrics for a failed call.
func (c *Client) recordFailure(endpoint, errorType string) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamRequestFailed(endpoint, errorType)
	}
}

// readErrorBody reads a bounded prefix of an error response body.
func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil || len(b) == 0 {
		return "no response body"
	}
	return string(b)
}
