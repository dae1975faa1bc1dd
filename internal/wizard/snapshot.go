package wizard

import (
	"fmt"
	"time"

	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/matrix"
)

// Snapshot is the serializable state of a session, used for draft
// persistence. Vectors are stored as raw flattened cells.
type Snapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Selected  string    `json:"selected,omitempty"`

	Ungrouped []domain.FileHandle `json:"ungrouped,omitempty"`
	Groups    []domain.FileGroup  `json:"groups,omitempty"`

	Metadata   map[string]*domain.MetadataRecord   `json:"metadata,omitempty"`
	Validity   map[string]bool                     `json:"validity,omitempty"`
	Relevance  map[string][]int                    `json:"relevance,omitempty"`
	Complexity map[string][]int                    `json:"complexity,omitempty"`
	Statuses   map[string]domain.ProcessingStatus  `json:"statuses,omitempty"`
}

// Snapshot captures the full session state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		ID:         s.id,
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
		Selected:   s.selected,
		Ungrouped:  append([]domain.FileHandle(nil), s.ungrouped...),
		Groups:     make([]domain.FileGroup, 0, len(s.groups)),
		Metadata:   make(map[string]*domain.MetadataRecord, len(s.metadata)),
		Validity:   make(map[string]bool, len(s.validity)),
		Relevance:  make(map[string][]int, len(s.relevance)),
		Complexity: make(map[string][]int, len(s.complexity)),
		Statuses:   make(map[string]domain.ProcessingStatus, len(s.statuses)),
	}

	for _, g := range s.groups {
		snap.Groups = append(snap.Groups, domain.FileGroup{
			ID:    g.ID,
			Files: append([]domain.FileHandle(nil), g.Files...),
		})
	}
	for id, rec := range s.metadata {
		cp := *rec
		cp.FileMetadata = append([]domain.FileOverride(nil), rec.FileMetadata...)
		snap.Metadata[id] = &cp
	}
	for id, v := range s.validity {
		snap.Validity[id] = v
	}
	for id, v := range s.relevance {
		snap.Relevance[id] = v.Cells()
	}
	for id, v := range s.complexity {
		snap.Complexity[id] = v.Cells()
	}
	for id, st := range s.statuses {
		snap.Statuses[id] = st
	}

	return snap
}

// RestoreSession rebuilds a session from a snapshot. Stored vector cells
// must match the catalog's layout.
func RestoreSession(snap *Snapshot, catalog matrix.Catalog, validator *Validator) (*Session, error) {
	s := NewSession(snap.ID, catalog, validator)
	s.createdAt = snap.CreatedAt
	s.updatedAt = snap.UpdatedAt
	s.selected = snap.Selected
	s.ungrouped = append([]domain.FileHandle(nil), snap.Ungrouped...)

	for _, g := range snap.Groups {
		s.groups = append(s.groups, domain.FileGroup{
			ID:    g.ID,
			Files: append([]domain.FileHandle(nil), g.Files...),
		})
	}
	for id, rec := range snap.Metadata {
		cp := *rec
		cp.FileMetadata = append([]domain.FileOverride(nil), rec.FileMetadata...)
		s.metadata[id] = &cp
	}
	for id, v := range snap.Validity {
		s.validity[id] = v
	}
	for id, cells := range snap.Relevance {
		vec, err := matrix.FromCells(catalog, cells)
		if err != nil {
			return nil, fmt.Errorf("restore relevance for %s: %w", id, err)
		}
		s.relevance[id] = vec
	}
	for id, cells := range snap.Complexity {
		vec, err := matrix.FromCells(catalog, cells)
		if err != nil {
			return nil, fmt.Errorf("restore complexity for %s: %w", id, err)
		}
		s.complexity[id] = vec
	}
	for id, st := range snap.Statuses {
		s.statuses[id] = st
	}

	if err := s.checkPartitionLocked(); err != nil {
		return nil, fmt.Errorf("restore session %s: %w", snap.ID, err)
	}
	return s, nil
}
