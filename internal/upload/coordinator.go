// Package upload coordinates batch file uploads to the content backend:
// acceptance filtering, upload URL negotiation, and concurrent byte transfer.
package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/knowledgehub/article-intake-service/internal/config"
	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/observability"
	"github.com/knowledgehub/article-intake-service/internal/upstream"
)

// maxConcurrentUploads bounds how many files of one batch are in flight at
// the same time.
const maxConcurrentUploads = 4

// Rejection reasons reported in upload results and metrics labels.
const (
	ReasonUnsupportedType = "unsupported_type"
	ReasonTooLarge        = "too_large"
	ReasonBatchOverflow   = "batch_overflow"
	ReasonDuplicateName   = "duplicate_name"
	ReasonUploadFailed    = "upload_failed"
)

// Negotiator is the subset of the content-backend client the coordinator
// needs: upload negotiation and raw byte transfer.
type Negotiator interface {
	GenerateUploadURL(ctx context.Context, name string, size int64, mimeType string) (*upstream.UploadTarget, error)
	UploadBytes(ctx context.Context, uploadURL, mimeType string, content []byte) error
}

// Candidate is one file offered for upload.
type Candidate struct {
	// Name is the original file name.
	Name string
	// Size is the content length in bytes.
	Size int64
	// MIMEType is the declared content type.
	MIMEType string
	// Content is the file body.
	Content []byte
}

// Rejection names a file that was not uploaded and why.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the outcome of one batch upload. Uploaded handles carry the
// backend-assigned UUIDs; rejected files are reported but never abort the
// batch.
type Result struct {
	Uploaded []domain.FileHandle `json:"uploaded"`
	Rejected []Rejection         `json:"rejected"`
}

// Coordinator uploads file batches to the content backend. It is safe for
// concurrent use.
type Coordinator struct {
	client  Negotiator
	cfg     config.UploadConfig
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewCoordinator creates a new upload coordinator.
func NewCoordinator(client Negotiator, cfg config.UploadConfig, logger zerolog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		client:  client,
		cfg:     cfg,
		logger:  logger.With().Str("component", "upload_coordinator").Logger(),
		metrics: metrics,
	}
}

// UploadBatch filters the candidates against the acceptance rules and
// uploads the accepted ones concurrently. A file that fails to upload is
// dropped from the result with a warn log and a rejection entry; it never
// fails the batch. Files already known to the session must be filtered by
// the caller via the known set (name keyed).
func (c *Coordinator) UploadBatch(ctx context.Context, candidates []Candidate, known map[string]bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	accepted := make([]Candidate, 0, len(candidates))
	inBatch := make(map[string]bool, len(candidates))
	for i, cand := range candidates {
		if reason, ok := c.reject(i, cand, known, inBatch); ok {
			c.logger.Warn().
				Str("file_name", cand.Name).
				Str("reason", reason).
				Int64("file_size", cand.Size).
				Msg("file rejected before upload")
			c.recordRejected(reason)
			result.Rejected = append(result.Rejected, Rejection{Name: cand.Name, Reason: reason})
			continue
		}
		inBatch[cand.Name] = true
		accepted = append(accepted, cand)
	}

	if len(accepted) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)

	for _, cand := range accepted {
		cand := cand
		g.Go(func() error {
			handle, err := c.uploadOne(gctx, cand)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("file_name", cand.Name).
					Int64("file_size", cand.Size).
					Msg("upload failed, dropping file from batch")
				result.Rejected = append(result.Rejected, Rejection{Name: cand.Name, Reason: ReasonUploadFailed})
				return nil
			}
			result.Uploaded = append(result.Uploaded, *handle)
			return nil
		})
	}

	// Workers never return errors; a canceled context surfaces through the
	// per-file failure path instead.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// reject applies the acceptance rules to one candidate. The index is the
// candidate's position in the incoming batch, used for the batch size cap.
// A name counts as a duplicate whether it is already in the session or was
// accepted earlier in the same batch.
func (c *Coordinator) reject(index int, cand Candidate, known, inBatch map[string]bool) (string, bool) {
	if cand.MIMEType != c.cfg.AcceptedMIMEType {
		return ReasonUnsupportedType, true
	}
	if cand.Size > c.cfg.MaxFileSize {
		return ReasonTooLarge, true
	}
	if c.cfg.MaxBatchFiles > 0 && index >= c.cfg.MaxBatchFiles {
		return ReasonBatchOverflow, true
	}
	if known[cand.Name] || inBatch[cand.Name] {
		return ReasonDuplicateName, true
	}
	return "", false
}

// uploadOne negotiates a target for the candidate and transfers its bytes.
func (c *Coordinator) uploadOne(ctx context.Context, cand Candidate) (*domain.FileHandle, error) {
	start := time.Now()
	c.recordStarted()

	target, err := c.client.GenerateUploadURL(ctx, cand.Name, cand.Size, cand.MIMEType)
	if err != nil {
		c.recordFailed("negotiate")
		return nil, fmt.Errorf("negotiate upload for %s: %w", cand.Name, err)
	}

	if err := c.client.UploadBytes(ctx, target.UploadURL, cand.MIMEType, cand.Content); err != nil {
		c.recordFailed("transfer")
		return nil, fmt.Errorf("transfer %s: %w", cand.Name, err)
	}

	c.recordCompleted(time.Since(start))
	c.logger.Info().
		Str("file_name", cand.Name).
		Str("file_uuid", target.UUID).
		Int64("file_size", cand.Size).
		Dur("elapsed", time.Since(start)).
		Msg("file uploaded")

	return &domain.FileHandle{
		Name: cand.Name,
		Size: cand.Size,
		UUID: target.UUID,
	}, nil
}

func (c *Coordinator) recordStarted() {
	if c.metrics != nil {
		c.metrics.RecordUploadStarted()
	}
}

func (c *Coordinator) recordCompleted(elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordUploadCompleted(elapsed.Seconds())
	}
}

func (c *Coordinator) recordFailed(stage string) {
	if c.metrics != nil {
		c.metrics.RecordUploadFailed(stage)
	}
}

func (c *Coordinator) recordRejected(reason string) {
	if c.metrics != nil {
		c.metrics.RecordUploadRejected(reason)
	}
}
