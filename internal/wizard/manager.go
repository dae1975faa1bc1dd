package wizard

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/matrix"
	"github.com/knowledgehub/article-intake-service/internal/observability"
)

// DraftStore persists session snapshots between requests.
type DraftStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// FileTracker starts and stops processing-status polling for file uuids.
type FileTracker interface {
	Track(fileUUID string)
	Untrack(fileUUID string)
}

// Manager holds the live wizard sessions, keyed by session id. It wires the
// tracker's terminal-status notifications into the owning session and saves
// a draft after every mutation it performs. It is safe for concurrent use.
type Manager struct {
	catalog   matrix.Catalog
	validator *Validator
	store     DraftStore
	tracker   FileTracker
	logger    zerolog.Logger
	metrics   *observability.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(catalog matrix.Catalog, validator *Validator, store DraftStore, tracker FileTracker, logger zerolog.Logger, metrics *observability.Metrics) *Manager {
	m := &Manager{
		catalog:   catalog,
		validator: validator,
		store:     store,
		tracker:   tracker,
		logger:    logger.With().Str("component", "session_manager").Logger(),
		metrics:   metrics,
	}
	m.sessions = make(map[string]*Session)
	return m
}

// Create starts a new empty session and saves its initial draft.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	session := NewSession(uuid.New().String(), m.catalog, m.validator)

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSessionCreated()
	}
	m.logger.Info().Str("session_id", session.ID()).Msg("session created")

	m.SaveDraft(ctx, session)
	return session, nil
}

// Get returns the live session, loading it from the draft store when it is
// not in memory.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return session, nil
	}

	snap, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session, err = RestoreSession(snap, m.catalog, m.validator)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	// A concurrent load may have won; keep the first restored instance.
	if existing, ok := m.sessions[sessionID]; ok {
		session = existing
	} else {
		m.sessions[sessionID] = session
	}
	m.mu.Unlock()

	return session, nil
}

// Delete abandons a session: stops tracking its files, forgets the live
// session, and drops the draft.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, fileUUID := range session.FileUUIDs() {
		m.tracker.Untrack(fileUUID)
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if m.metrics != nil {
		m.metrics.RecordSessionAbandoned()
	}
	m.logger.Info().Str("session_id", sessionID).Msg("session abandoned")
	return nil
}

// Forget removes a submitted session from memory and the draft store
// without the abandoned bookkeeping.
func (m *Manager) Forget(ctx context.Context, sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("draft cleanup failed")
	}
}

// AddFiles registers uploaded files with the session and starts status
// tracking for each.
func (m *Manager) AddFiles(ctx context.Context, session *Session, handles []domain.FileHandle) error {
	if err := session.AddFiles(handles); err != nil {
		return err
	}
	for _, h := range handles {
		m.tracker.Track(h.UUID)
	}
	m.SaveDraft(ctx, session)
	return nil
}

// RemoveFile removes an ungrouped file from the session and stops its
// status tracking.
func (m *Manager) RemoveFile(ctx context.Context, session *Session, name string) error {
	removed, err := session.RemoveFile(name)
	if err != nil {
		return err
	}
	m.tracker.Untrack(removed.UUID)
	m.SaveDraft(ctx, session)
	return nil
}

// HandleStatus is the tracker subscriber: it routes a terminal status to
// the session owning the file and persists the result. Unknown uuids are
// ignored; the file was removed or its session abandoned.
func (m *Manager) HandleStatus(fileUUID string, status domain.ProcessingStatus) {
	m.mu.RLock()
	var owner *Session
	for _, session := range m.sessions {
		if session.ContainsFileUUID(fileUUID) {
			owner = session
			break
		}
	}
	m.mu.RUnlock()

	if owner == nil {
		m.logger.Debug().Str("file_uuid", fileUUID).Msg("status for unknown file, dropping")
		return
	}

	owner.ApplyStatus(fileUUID, status)
	m.SaveDraft(context.Background(), owner)
}

// SaveDraft persists the session snapshot. Failures are logged and counted,
// never propagated; a lost draft must not fail the mutation that caused it.
func (m *Manager) SaveDraft(ctx context.Context, session *Session) {
	if err := m.store.Save(ctx, session.Snapshot()); err != nil {
		if m.metrics != nil {
			m.metrics.RecordDraftSaveFailure()
		}
		m.logger.Warn().Err(err).Str("session_id", session.ID()).Msg("draft save failed")
		return
	}
	if m.metrics != nil {
		m.metrics.RecordDraftSave()
	}
}
