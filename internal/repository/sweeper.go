package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/knowledgehub/article-intake-service/internal/domain"
)

// sweepPageSize bounds how many stale drafts one sweep pass loads at a time.
const sweepPageSize = 100

// Abandoner disposes of one session end to end: the live state, its
// tracked files, and the stored draft.
type Abandoner interface {
	Delete(ctx context.Context, sessionID string) error
}

// Sweeper abandons wizard sessions whose drafts have not been touched
// within the retention window. Without it, drafts from closed browser tabs
// accumulate forever.
type Sweeper struct {
	repo      SessionRepository
	abandoner Abandoner
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

// NewSweeper creates a sweeper over the given repository. Sessions are
// abandoned through the abandoner so live state and file tracking are
// cleaned up alongside the draft row.
func NewSweeper(repo SessionRepository, abandoner Abandoner, retention, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		abandoner: abandoner,
		retention: retention,
		interval:  interval,
		logger:    logger.With().Str("component", "draft_sweeper").Logger(),
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("draft sweep failed")
				continue
			}
			if removed > 0 {
				s.logger.Info().Int("removed", removed).Msg("abandoned drafts swept")
			}
		}
	}
}

// SweepOnce abandons every draft last written before the retention cutoff
// and returns how many sessions were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.retention)
	removed := 0

	for {
		drafts, err := s.repo.List(ctx, DraftFilter{UpdatedBefore: &cutoff, Limit: sweepPageSize})
		if err != nil {
			return removed, err
		}
		if len(drafts) == 0 {
			return removed, nil
		}

		for _, draft := range drafts {
			if err := s.abandoner.Delete(ctx, draft.SessionID); err != nil {
				// A concurrently submitted or deleted session is fine.
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return removed, err
			}
			removed++
		}

		if len(drafts) < sweepPageSize {
			return removed, nil
		}
	}
}
