package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/wizard"
)

// Compile-time interface verification.
var _ SessionRepository = (*PgSessionRepository)(nil)

// PgSessionRepository is a PostgreSQL implementation of SessionRepository.
type PgSessionRepository struct {
	db DBTX
}

// NewPgSessionRepository creates a new PostgreSQL session draft repository.
func NewPgSessionRepository(db DBTX) *PgSessionRepository {
	return &PgSessionRepository{db: db}
}

// Save upserts the draft keyed by its session id.
func (r *PgSessionRepository) Save(ctx context.Context, draft *SessionDraft) error {
	if draft == nil || draft.SessionID == "" {
		return domain.NewValidationError("sessionId", "session id is required")
	}
	if draft.State == nil {
		return domain.NewValidationError("state", "snapshot is required")
	}

	state, err := json.Marshal(draft.State)
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO wizard_sessions (session_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, draft.SessionID, state, now, now); err != nil {
		return fmt.Errorf("failed to save session draft: %w", err)
	}
	return nil
}

// Get returns the draft for the session id.
func (r *PgSessionRepository) Get(ctx context.Context, sessionID string) (*SessionDraft, error) {
	query := `
		SELECT session_id, state, created_at, updated_at
		FROM wizard_sessions
		WHERE session_id = $1`

	draft, err := scanDraft(r.db.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("session draft", sessionID)
		}
		return nil, fmt.Errorf("failed to get session draft: %w", err)
	}
	return draft, nil
}

// Delete removes the draft for the session id.
func (r *PgSessionRepository) Delete(ctx context.Context, sessionID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM wizard_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("session draft", sessionID)
	}
	return nil
}

// List returns drafts matching the filter, newest first.
func (r *PgSessionRepository) List(ctx context.Context, filter DraftFilter) ([]*SessionDraft, error) {
	applyPaginationDefaults(&filter.Limit, &filter.Offset)

	query := `
		SELECT session_id, state, created_at, updated_at
		FROM wizard_sessions`
	args := []interface{}{}

	if filter.UpdatedBefore != nil {
		query += ` WHERE updated_at < $1`
		args = append(args, *filter.UpdatedBefore)
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list session drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*SessionDraft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session draft: %w", err)
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session drafts: %w", err)
	}
	return drafts, nil
}

// scanDraft reads one draft row, decoding the JSONB snapshot.
func scanDraft(row pgx.Row) (*SessionDraft, error) {
	var draft SessionDraft
	var state []byte
	if err := row.Scan(&draft.SessionID, &state, &draft.CreatedAt, &draft.UpdatedAt); err != nil {
		return nil, err
	}
	draft.State = &wizard.Snapshot{}
	if err := json.Unmarshal(state, draft.State); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	return &draft, nil
}

// Compile-time check that the draft store adapter satisfies the wizard's
// persistence port.
var _ wizard.DraftStore = (*DraftStore)(nil)

// DraftStore adapts a SessionRepository to the snapshot-level interface the
// session manager uses.
type DraftStore struct {
	repo SessionRepository
}

// NewDraftStore creates the adapter.
func NewDraftStore(repo SessionRepository) *DraftStore {
	return &DraftStore{repo: repo}
}

// Save persists the snapshot as a draft.
func (s *DraftStore) Save(ctx context.Context, snap *wizard.Snapshot) error {
	return s.repo.Save(ctx, &SessionDraft{
		SessionID: snap.ID,
		State:     snap,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	})
}

// Load returns the stored snapshot for the session id.
func (s *DraftStore) Load(ctx context.Context, sessionID string) (*wizard.Snapshot, error) {
	draft, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return draft.State, nil
}

// Delete removes the stored snapshot for the session id.
func (s *DraftStore) Delete(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}
