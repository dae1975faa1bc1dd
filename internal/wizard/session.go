// Package wizard holds the state of one article intake run: the uploaded
// files and their grouping, per-entity metadata and validity, the relevance
// and complexity vectors, and the step gating derived from all of it.
package wizard

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/matrix"
)

// Step is one screen of the intake wizard.
type Step int

const (
	StepUpload Step = iota + 1
	StepMetadata
	StepRelevance
	StepComplexity
	StepReview
)

// Session is the aggregate for one wizard run. Every per-entity map is keyed
// by entity id: the file name for an ungrouped file, the group id for a
// group. All methods are safe for concurrent use.
type Session struct {
	mu sync.RWMutex

	id        string
	createdAt time.Time
	updatedAt time.Time

	catalog   matrix.Catalog
	validator *Validator

	// ungrouped and groups partition the known files: every file is in
	// exactly one of the two, checked after every mutation.
	ungrouped []domain.FileHandle
	groups    []domain.FileGroup
	selected  string

	metadata   map[string]*domain.MetadataRecord
	validity   map[string]bool
	relevance  map[string]*matrix.Vector
	complexity map[string]*matrix.Vector
	statuses   map[string]domain.ProcessingStatus
}

// NewSession creates an empty session.
func NewSession(id string, catalog matrix.Catalog, validator *Validator) *Session {
	now := time.Now().UTC()
	return &Session{
		id:         id,
		createdAt:  now,
		updatedAt:  now,
		catalog:    catalog,
		validator:  validator,
		metadata:   make(map[string]*domain.MetadataRecord),
		validity:   make(map[string]bool),
		relevance:  make(map[string]*matrix.Vector),
		complexity: make(map[string]*matrix.Vector),
		statuses:   make(map[string]domain.ProcessingStatus),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt returns the time of the last mutation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// touch records a mutation. Callers hold the write lock.
func (s *Session) touch() {
	s.updatedAt = time.Now().UTC()
}

// AddFiles adds uploaded files to the ungrouped set. A file whose name is
// already known anywhere in the session is rejected. The first added file
// becomes the selection when nothing is selected yet.
func (s *Session) AddFiles(handles []domain.FileHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := s.knownNamesLocked()
	for _, h := range handles {
		if known[h.Name] {
			return domain.NewAlreadyExistsError("file", h.Name)
		}
		known[h.Name] = true
	}

	for _, h := range handles {
		s.ungrouped = append(s.ungrouped, h)
		s.statuses[h.UUID] = domain.ProcessingStatus{Status: domain.FileStatusProcessing}
	}
	if s.selected == "" && len(handles) > 0 {
		s.selected = handles[0].Name
	}

	s.touch()
	return s.checkPartitionLocked()
}

// RemoveFile removes an ungrouped file and every per-entity entry keyed by
// its name. Removing a grouped file is rejected; the group must be
// dissolved first. When the removed file was selected, selection falls to
// the first remaining entity, or empties.
func (s *Session) RemoveFile(name string) (*domain.FileHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.groups {
		if g.ContainsFile(name) {
			return nil, domain.NewValidationError("fileName", "file is grouped; dissolve the group first")
		}
	}

	idx := -1
	for i, h := range s.ungrouped {
		if h.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.NewNotFoundError("file", name)
	}

	removed := s.ungrouped[idx]
	s.ungrouped = append(s.ungrouped[:idx], s.ungrouped[idx+1:]...)
	s.dropEntityLocked(name)
	delete(s.statuses, removed.UUID)

	if s.selected == name {
		s.selected = s.firstEntityLocked()
	}

	s.touch()
	if err := s.checkPartitionLocked(); err != nil {
		return nil, err
	}
	return &removed, nil
}

// CreateGroup moves the named ungrouped files into a fresh group. Fewer
// than two names, an unknown name, or an already grouped name leaves the
// session unchanged.
func (s *Session) CreateGroup(names []string) (*domain.FileGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(names) < 2 {
		return nil, domain.NewValidationError("files", "a group needs at least two files")
	}

	members := make([]domain.FileHandle, 0, len(names))
	memberIdx := make(map[string]bool, len(names))
	for _, name := range names {
		if memberIdx[name] {
			return nil, domain.NewValidationError("files", fmt.Sprintf("duplicate file %q", name))
		}
		memberIdx[name] = true

		found := false
		for _, h := range s.ungrouped {
			if h.Name == name {
				members = append(members, h)
				found = true
				break
			}
		}
		if !found {
			return nil, domain.NewValidationError("files", fmt.Sprintf("file %q is not an ungrouped file", name))
		}
	}

	remaining := s.ungrouped[:0]
	for _, h := range s.ungrouped {
		if !memberIdx[h.Name] {
			remaining = append(remaining, h)
		}
	}
	s.ungrouped = remaining

	group := domain.FileGroup{
		ID:    "group-" + uuid.New().String(),
		Files: members,
	}
	s.groups = append(s.groups, group)

	// Grouping invalidates the members' standalone entries.
	for _, h := range members {
		s.dropEntityLocked(h.Name)
	}
	if memberIdx[s.selected] {
		s.selected = group.ID
	}

	s.touch()
	if err := s.checkPartitionLocked(); err != nil {
		return nil, err
	}
	return &group, nil
}

// DissolveGroup returns the group's members to the ungrouped set unchanged
// and discards the group's metadata, relevance, and complexity entries.
func (s *Session) DissolveGroup(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, g := range s.groups {
		if g.ID == groupID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.NewNotFoundError("group", groupID)
	}

	group := s.groups[idx]
	s.groups = append(s.groups[:idx], s.groups[idx+1:]...)
	s.ungrouped = append(s.ungrouped, group.Files...)
	s.dropEntityLocked(groupID)

	if s.selected == groupID {
		s.selected = s.firstEntityLocked()
	}

	s.touch()
	return s.checkPartitionLocked()
}

// EntityIDs returns every entity id, groups first, then ungrouped files.
func (s *Session) EntityIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entityIDsLocked()
}

func (s *Session) entityIDsLocked() []string {
	ids := make([]string, 0, len(s.groups)+len(s.ungrouped))
	for _, g := range s.groups {
		ids = append(ids, g.ID)
	}
	for _, h := range s.ungrouped {
		ids = append(ids, h.Name)
	}
	return ids
}

// Files returns the ungrouped files.
func (s *Session) Files() []domain.FileHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FileHandle, len(s.ungrouped))
	copy(out, s.ungrouped)
	return out
}

// Groups returns the file groups.
func (s *Session) Groups() []domain.FileGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FileGroup, len(s.groups))
	copy(out, s.groups)
	return out
}

// KnownFileNames returns the names of every file in the session, grouped or
// not. The upload coordinator uses it to reject duplicate names.
func (s *Session) KnownFileNames() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.knownNamesLocked()
}

func (s *Session) knownNamesLocked() map[string]bool {
	known := make(map[string]bool)
	for _, h := range s.ungrouped {
		known[h.Name] = true
	}
	for _, g := range s.groups {
		for _, h := range g.Files {
			known[h.Name] = true
		}
	}
	return known
}

// FileUUIDs returns the backend uuids of every file in the session.
func (s *Session) FileUUIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, h := range s.ungrouped {
		out = append(out, h.UUID)
	}
	for _, g := range s.groups {
		for _, h := range g.Files {
			out = append(out, h.UUID)
		}
	}
	return out
}

// ContainsFileUUID reports whether the session holds a file with the uuid.
func (s *Session) ContainsFileUUID(fileUUID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.findFileByUUIDLocked(fileUUID)
	return ok
}

// Select makes the entity the current selection.
func (s *Session) Select(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.entityExistsLocked(entityID) {
		return domain.NewNotFoundError("entity", entityID)
	}
	s.selected = entityID
	s.touch()
	return nil
}

// Selected returns the currently selected entity id, or empty.
func (s *Session) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// UpdateMetadata stores the record for the entity, last write wins, and
// refreshes the entity's validity from the schema rules.
func (s *Session) UpdateMetadata(entityID string, record domain.MetadataRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := s.findGroupLocked(entityID)
	if group == nil && !s.ungroupedExistsLocked(entityID) {
		return domain.NewNotFoundError("entity", entityID)
	}

	record.EntityID = entityID
	record.IsGroup = group != nil
	if prev, ok := s.metadata[entityID]; ok {
		// Apply-once state survives user edits.
		if prev.AnalysisState == domain.AnalysisApplied {
			record.AnalysisState = domain.AnalysisApplied
		}
		carryMemberAnalysisState(prev, &record)
	}
	if record.AnalysisState == "" {
		record.AnalysisState = domain.AnalysisUnapplied
	}
	s.metadata[entityID] = &record

	s.validity[entityID] = s.validator.ValidateRecord(&record, group) == nil
	s.touch()
	return nil
}

// carryMemberAnalysisState keeps per-member apply-once marks across record
// rewrites, matched by member file name.
func carryMemberAnalysisState(prev, next *domain.MetadataRecord) {
	if len(prev.FileMetadata) == 0 || len(next.FileMetadata) == 0 {
		return
	}
	applied := make(map[string]bool, len(prev.FileMetadata))
	for _, m := range prev.FileMetadata {
		if m.AnalysisState == domain.AnalysisApplied {
			applied[m.FileName] = true
		}
	}
	for i := range next.FileMetadata {
		if applied[next.FileMetadata[i].FileName] {
			next.FileMetadata[i].AnalysisState = domain.AnalysisApplied
		}
	}
}

// Metadata returns the entity's record, if any.
func (s *Session) Metadata(entityID string) (*domain.MetadataRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.metadata[entityID]
	if !ok {
		return nil, false
	}
	out := *rec
	out.FileMetadata = append([]domain.FileOverride(nil), rec.FileMetadata...)
	return &out, true
}

// Validity returns the tri-state form validity for the entity: nil while
// untouched, otherwise the result of the last validation.
func (s *Session) Validity(entityID string) *bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.validity[entityID]
	if !ok {
		return nil
	}
	return &v
}

// ApplyStatus records a processing status update for a file. A completed
// status with analysis pre-fills the file's metadata suggestions exactly
// once; user edits are never overwritten.
func (s *Session) ApplyStatus(fileUUID string, status domain.ProcessingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.findFileByUUIDLocked(fileUUID)
	if !ok {
		return
	}
	s.statuses[fileUUID] = status

	if status.Status == domain.FileStatusCompleted && status.Analysis != nil {
		s.applyAnalysisLocked(handle, status.Analysis)
	}
	s.touch()
}

// Status returns the processing status for a file uuid.
func (s *Session) Status(fileUUID string) (domain.ProcessingStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[fileUUID]
	return st, ok
}

// applyAnalysisLocked pre-fills suggestion fields for the file, creating a
// skeleton record when none exists. Only empty fields are filled, and only
// on the first completed analysis for the file.
func (s *Session) applyAnalysisLocked(handle domain.FileHandle, analysis *domain.Analysis) {
	if group := s.groupOfFileLocked(handle.Name); group != nil {
		rec := s.metadata[group.ID]
		if rec == nil {
			rec = &domain.MetadataRecord{
				EntityID:      group.ID,
				IsGroup:       true,
				AnalysisState: domain.AnalysisUnapplied,
				FileMetadata:  make([]domain.FileOverride, len(group.Files)),
			}
			for i, f := range group.Files {
				rec.FileMetadata[i].FileName = f.Name
			}
			s.metadata[group.ID] = rec
		}
		for i := range rec.FileMetadata {
			m := &rec.FileMetadata[i]
			if m.FileName != handle.Name || m.AnalysisState == domain.AnalysisApplied {
				continue
			}
			if m.Title == "" {
				m.Title = analysis.Title
			}
			if m.Description == "" {
				m.Description = analysis.Description
			}
			if m.PageCount == 0 {
				m.PageCount = analysis.Pages
			}
			m.AnalysisState = domain.AnalysisApplied
		}
		return
	}

	rec := s.metadata[handle.Name]
	if rec == nil {
		rec = &domain.MetadataRecord{
			EntityID:      handle.Name,
			AnalysisState: domain.AnalysisUnapplied,
		}
		s.metadata[handle.Name] = rec
	}
	if rec.AnalysisState == domain.AnalysisApplied {
		return
	}
	if rec.Title == "" {
		rec.Title = analysis.Title
	}
	if rec.Description == "" {
		rec.Description = analysis.Description
	}
	if rec.PageCount == 0 {
		rec.PageCount = analysis.Pages
	}
	rec.AnalysisState = domain.AnalysisApplied
}

// SetRelevance toggles the relevance of one skill for the entity, uniformly
// across every job title.
func (s *Session) SetRelevance(entityID string, group, skill int, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, err := s.vectorsLocked(entityID)
	if err != nil {
		return err
	}
	value := 0
	if selected {
		value = 1
	}
	return rel.SetSkillAcrossJobs(group, skill, value)
}

// ToggleGroup toggles the relevance of every skill in a skill group for the
// entity, uniformly across every job title.
func (s *Session) ToggleGroup(entityID string, group int, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, err := s.vectorsLocked(entityID)
	if err != nil {
		return err
	}
	value := 0
	if selected {
		value = 1
	}
	return rel.SetGroupAcrossJobs(group, value)
}

// SetComplexity sets the complexity weight of one skill for the entity,
// uniformly across every job title. Weights run 1 to 4.
func (s *Session) SetComplexity(entityID string, group, skill, level int) error {
	if level < 1 || level > 4 {
		return domain.NewValidationError("complexity", "level must be between 1 and 4")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.vectorsLocked(entityID); err != nil {
		return err
	}
	return s.complexity[entityID].SetSkillAcrossJobs(group, skill, level)
}

// vectorsLocked returns the entity's relevance vector, creating the
// relevance and complexity pair on first touch. Complexity starts at the
// lowest weight everywhere.
func (s *Session) vectorsLocked(entityID string) (*matrix.Vector, error) {
	if !s.entityExistsLocked(entityID) {
		return nil, domain.NewNotFoundError("entity", entityID)
	}
	rel, ok := s.relevance[entityID]
	if !ok {
		rel = matrix.NewVector(s.catalog)
		s.relevance[entityID] = rel
		s.complexity[entityID] = matrix.NewVectorFilled(s.catalog, 1)
	}
	s.touch()
	return rel, nil
}

// RelevanceValidity returns the tri-state relevance check for the entity:
// nil while untouched, false when touched but all-zero, true when at least
// one cell is set.
func (s *Session) RelevanceValidity(entityID string) *bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.relevance[entityID]
	if !ok {
		return nil
	}
	v := rel.AnyNonZero()
	return &v
}

// Relevance returns a copy of the entity's relevance vector, if touched.
func (s *Session) Relevance(entityID string) (*matrix.Vector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.relevance[entityID]
	if !ok {
		return nil, false
	}
	return rel.Clone(), true
}

// Complexity returns a copy of the entity's complexity vector, if touched.
func (s *Session) Complexity(entityID string) (*matrix.Vector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cpx, ok := s.complexity[entityID]
	if !ok {
		return nil, false
	}
	return cpx.Clone(), true
}

// ComplexityByEntity returns a copy of the whole complexity map for
// assembly.
func (s *Session) ComplexityByEntity() map[string]*matrix.Vector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*matrix.Vector, len(s.complexity))
	for id, v := range s.complexity {
		out[id] = v.Clone()
	}
	return out
}

// MetadataByEntity returns a copy of the whole metadata map for assembly.
func (s *Session) MetadataByEntity() map[string]*domain.MetadataRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*domain.MetadataRecord, len(s.metadata))
	for id, rec := range s.metadata {
		cp := *rec
		cp.FileMetadata = append([]domain.FileOverride(nil), rec.FileMetadata...)
		out[id] = &cp
	}
	return out
}

// CanAdvance reports whether the wizard may move past the given step.
func (s *Session) CanAdvance(step Step) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch step {
	case StepUpload:
		return len(s.ungrouped)+len(s.groups) > 0
	case StepMetadata:
		return s.allEntitiesLocked(func(id string) bool {
			v, ok := s.validity[id]
			return ok && v
		})
	case StepRelevance:
		return s.allEntitiesLocked(func(id string) bool {
			rel, ok := s.relevance[id]
			return ok && rel.AnyNonZero()
		})
	case StepComplexity:
		// Complexity defaults to the lowest weight, so touching relevance
		// is the only prerequisite.
		return s.allEntitiesLocked(func(id string) bool {
			_, ok := s.complexity[id]
			return ok
		})
	case StepReview:
		return s.canAdvanceAllLocked()
	default:
		return false
	}
}

// CanAdvanceAll reports whether every pre-review step is satisfied.
func (s *Session) CanAdvanceAll() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canAdvanceAllLocked()
}

func (s *Session) canAdvanceAllLocked() bool {
	if len(s.ungrouped)+len(s.groups) == 0 {
		return false
	}
	for _, id := range s.entityIDsLocked() {
		if v, ok := s.validity[id]; !ok || !v {
			return false
		}
		rel, ok := s.relevance[id]
		if !ok || !rel.AnyNonZero() {
			return false
		}
		if _, ok := s.complexity[id]; !ok {
			return false
		}
	}
	return true
}

// allEntitiesLocked reports whether the predicate holds for every entity.
// An empty session fails every per-entity gate.
func (s *Session) allEntitiesLocked(pred func(string) bool) bool {
	ids := s.entityIDsLocked()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !pred(id) {
			return false
		}
	}
	return true
}

func (s *Session) entityExistsLocked(entityID string) bool {
	return s.ungroupedExistsLocked(entityID) || s.findGroupLocked(entityID) != nil
}

func (s *Session) ungroupedExistsLocked(name string) bool {
	for _, h := range s.ungrouped {
		if h.Name == name {
			return true
		}
	}
	return false
}

func (s *Session) findGroupLocked(groupID string) *domain.FileGroup {
	for i := range s.groups {
		if s.groups[i].ID == groupID {
			return &s.groups[i]
		}
	}
	return nil
}

func (s *Session) groupOfFileLocked(name string) *domain.FileGroup {
	for i := range s.groups {
		if s.groups[i].ContainsFile(name) {
			return &s.groups[i]
		}
	}
	return nil
}

func (s *Session) findFileByUUIDLocked(fileUUID string) (domain.FileHandle, bool) {
	for _, h := range s.ungrouped {
		if h.UUID == fileUUID {
			return h, true
		}
	}
	for _, g := range s.groups {
		for _, h := range g.Files {
			if h.UUID == fileUUID {
				return h, true
			}
		}
	}
	return domain.FileHandle{}, false
}

func (s *Session) firstEntityLocked() string {
	ids := s.entityIDsLocked()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// dropEntityLocked discards every per-entity entry keyed by the id.
func (s *Session) dropEntityLocked(entityID string) {
	delete(s.metadata, entityID)
	delete(s.validity, entityID)
	delete(s.relevance, entityID)
	delete(s.complexity, entityID)
}

// checkPartitionLocked verifies that no file is both grouped and ungrouped
// and that no group is undersized. A violation is a programming error.
func (s *Session) checkPartitionLocked() error {
	seen := make(map[string]bool)
	for _, h := range s.ungrouped {
		if seen[h.Name] {
			return fmt.Errorf("partition violated: file %q appears twice", h.Name)
		}
		seen[h.Name] = true
	}
	for _, g := range s.groups {
		if len(g.Files) < 2 {
			return fmt.Errorf("partition violated: group %q has %d members", g.ID, len(g.Files))
		}
		for _, h := range g.Files {
			if seen[h.Name] {
				return fmt.Errorf("partition violated: file %q appears twice", h.Name)
			}
			seen[h.Name] = true
		}
	}
	return nil
}
