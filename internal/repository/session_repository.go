package repository

import (
	"context"
	"time"

	"github.com/knowledgehub/article-intake-service/internal/wizard"
)

// SessionDraft is a persisted wizard session snapshot.
type SessionDraft struct {
	// SessionID is the session's id, the primary key.
	SessionID string
	// State is the serialized session snapshot, stored as JSONB.
	State *wizard.Snapshot
	// CreatedAt is when the draft row was first written.
	CreatedAt time.Time
	// UpdatedAt is when the draft row was last written.
	UpdatedAt time.Time
}

// DraftFilter selects drafts for listing.
type DraftFilter struct {
	// UpdatedBefore, when set, limits results to drafts last written before
	// the given time. Used to sweep abandoned sessions.
	UpdatedBefore *time.Time
	// Limit caps the number of results.
	Limit int
	// Offset skips results for pagination.
	Offset int
}

// SessionRepository persists wizard session drafts.
type SessionRepository interface {
	// Save upserts the draft keyed by its session id.
	Save(ctx context.Context, draft *SessionDraft) error

	// Get returns the draft for the session id.
	// Returns domain.ErrNotFound if no draft exists.
	Get(ctx context.Context, sessionID string) (*SessionDraft, error)

	// Delete removes the draft for the session id.
	// Returns domain.ErrNotFound if no draft exists.
	Delete(ctx context.Context, sessionID string) error

	// List returns drafts matching the filter, newest first.
	List(ctx context.Context, filter DraftFilter) ([]*SessionDraft, error)
}
