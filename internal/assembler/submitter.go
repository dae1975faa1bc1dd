package assembler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/observability"
	"github.com/knowledgehub/article-intake-service/internal/upstream"
)

// BatchClient is the subset of the content-backend client the submitter
// needs.
type BatchClient interface {
	SubmitArticles(ctx context.Context, articles []domain.ArticleSubmission) (*upstream.SubmitResult, error)
}

// Submitter delivers assembled article batches. Any non-success answer is a
// failure of the whole batch; there is no partial retry.
type Submitter struct {
	client  BatchClient
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewSubmitter creates a batch submitter.
func NewSubmitter(client BatchClient, logger zerolog.Logger, metrics *observability.Metrics) *Submitter {
	return &Submitter{
		client:  client,
		logger:  logger.With().Str("component", "submitter").Logger(),
		metrics: metrics,
	}
}

// Submit sends the batch and returns the backend's accepted count.
func (s *Submitter) Submit(ctx context.Context, articles []domain.ArticleSubmission) (int, error) {
	if len(articles) == 0 {
		return 0, domain.NewValidationError("articles", "nothing to submit")
	}

	start := time.Now()
	result, err := s.client.SubmitArticles(ctx, articles)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSubmissionFailed("backend")
		}
		s.logger.Error().
			Err(err).
			Int("article_count", len(articles)).
			Msg("batch submission failed")
		return 0, err
	}

	s.logger.Info().
		Int("article_count", len(articles)).
		Int("accepted_count", result.Count).
		Dur("elapsed", time.Since(start)).
		Msg("batch submitted")
	return result.Count, nil
}
