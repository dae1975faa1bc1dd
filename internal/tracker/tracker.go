// Package tracker polls the content backend for the processing state of
// uploaded files and keeps a status map the wizard reads from.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/knowledgehub/article-intake-service/internal/config"
	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/observability"
)

// StatusReader is the subset of the content-backend client the tracker
// needs.
type StatusReader interface {
	GetProcessingStatus(ctx context.Context, fileUUID string) (*domain.ProcessingStatus, error)
}

// Subscriber is notified when a tracked file reaches a terminal state. The
// callback runs on the polling goroutine; implementations must not block.
type Subscriber func(fileUUID string, status domain.ProcessingStatus)

// Tracker polls processing status for tracked files, one goroutine per
// file. It is safe for concurrent use.
type Tracker struct {
	client  StatusReader
	cfg     config.TrackerConfig
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	statuses map[string]domain.ProcessingStatus
	cancels  map[string]context.CancelFunc
	sub      Subscriber

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewTracker creates a new processing-status tracker.
func NewTracker(client StatusReader, cfg config.TrackerConfig, logger zerolog.Logger, metrics *observability.Metrics) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		client:     client,
		cfg:        cfg,
		logger:     logger.With().Str("component", "status_tracker").Logger(),
		metrics:    metrics,
		statuses:   make(map[string]domain.ProcessingStatus),
		cancels:    make(map[string]context.CancelFunc),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Subscribe registers the terminal-transition callback. At most one
// subscriber is supported; a later call replaces the earlier one.
func (t *Tracker) Subscribe(sub Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sub = sub
}

// Track starts polling for the file. Tracking an already tracked file is a
// no-op. Tracking after Close is a no-op.
func (t *Tracker) Track(fileUUID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.baseCtx.Err() != nil {
		return
	}
	if _, ok := t.cancels[fileUUID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(t.baseCtx)
	t.cancels[fileUUID] = cancel
	t.statuses[fileUUID] = domain.ProcessingStatus{Status: domain.FileStatusProcessing}

	if t.metrics != nil {
		t.metrics.RecordTrackingStarted()
	}

	t.wg.Add(1)
	go t.poll(ctx, fileUUID)
}

// Untrack stops polling for the file and removes its status. After Untrack
// returns, no status-map mutation for this file happens: the poll goroutine
// only writes while holding the lock and while the file is still in the
// cancels set, and Untrack removes it from that set under the same lock.
func (t *Tracker) Untrack(fileUUID string) {
	t.mu.Lock()
	cancel, ok := t.cancels[fileUUID]
	delete(t.cancels, fileUUID)
	delete(t.statuses, fileUUID)
	t.mu.Unlock()

	if ok {
		cancel()
		if t.metrics != nil {
			t.metrics.RecordTrackingStopped()
		}
	}
}

// Status returns the current status of a tracked file.
func (t *Tracker) Status(fileUUID string) (domain.ProcessingStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[fileUUID]
	return st, ok
}

// Snapshot returns a copy of the full status map.
func (t *Tracker) Snapshot() map[string]domain.ProcessingStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]domain.ProcessingStatus, len(t.statuses))
	for k, v := range t.statuses {
		out[k] = v
	}
	return out
}

// Close cancels all polling goroutines and waits for them to exit.
func (t *Tracker) Close() {
	t.baseCancel()

	t.mu.Lock()
	for id, cancel := range t.cancels {
		cancel()
		delete(t.cancels, id)
	}
	t.mu.Unlock()

	t.wg.Wait()
}

// poll reads the file's processing status until a terminal state, the
// attempt ceiling, or cancellation.
func (t *Tracker) poll(ctx context.Context, fileUUID string) {
	defer t.wg.Done()

	logger := t.logger.With().Str("file_uuid", fileUUID).Logger()
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if t.metrics != nil {
			t.metrics.RecordPoll()
		}

		status, err := t.client.GetProcessingStatus(ctx, fileUUID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if t.metrics != nil {
				t.metrics.RecordPollFailed()
			}
			logger.Warn().Err(err).Int("attempt", attempt).Msg("status poll failed")
			continue
		}

		if !status.Status.IsTerminal() {
			continue
		}

		t.finish(ctx, fileUUID, *status)
		logger.Info().
			Str("status", string(status.Status)).
			Int("attempts", attempt).
			Msg("file reached terminal state")
		return
	}

	// Attempt ceiling reached without a terminal answer.
	t.finish(ctx, fileUUID, domain.ProcessingStatus{
		Status:       domain.FileStatusFailed,
		ErrorMessage: "processing status polling gave up",
	})
	logger.Warn().Int("max_attempts", t.cfg.MaxAttempts).Msg("status polling exhausted, marking failed")
}

// finish stores the terminal status and notifies the subscriber. The write
// is skipped when the file was untracked while the poll was in flight.
func (t *Tracker) finish(ctx context.Context, fileUUID string, status domain.ProcessingStatus) {
	t.mu.Lock()
	if _, tracked := t.cancels[fileUUID]; !tracked || ctx.Err() != nil {
		t.mu.Unlock()
		return
	}
	t.statuses[fileUUID] = status
	delete(t.cancels, fileUUID)
	sub := t.sub
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordTrackingStopped()
		switch status.Status {
		case domain.FileStatusCompleted:
			t.metrics.RecordProcessingCompleted()
		case domain.FileStatusFailed:
			t.metrics.RecordProcessingFailed("backend")
		}
	}

	if sub != nil {
		sub(fileUUID, status)
	}
}
