package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/knowledgehub/article-intake-service/internal/assembler"
	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/upload"
	"github.com/knowledgehub/article-intake-service/internal/wizard"
)

// Request body and multipart limits.
const (
	maxRequestBodySize = 1 << 20  // 1 MB limit for JSON request bodies
	maxMultipartMemory = 32 << 20 // in-memory threshold for multipart parsing
)

// Relevance operation discriminators.
const (
	opToggleSkill   = "toggleSkill"
	opToggleGroup   = "toggleGroup"
	opSetComplexity = "setComplexity"
)

// createGroupRequest is the JSON request body for grouping files.
type createGroupRequest struct {
	FileNames []string `json:"file_names"`
}

// relevanceRequest mutates the selection or complexity of one vector cell
// range. Operation selects the mutation; Selected applies to the toggles
// and Level to setComplexity.
type relevanceRequest struct {
	Operation string `json:"operation"`
	Group     int    `json:"group"`
	Skill     int    `json:"skill"`
	Selected  bool   `json:"selected"`
	Level     int    `json:"level"`
}

// createSession handles POST /sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.Create(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID(),
		CreatedAt: session.CreatedAt(),
	})
}

// getSession handles GET /sessions/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(session))
}

// deleteSession handles DELETE /sessions/{sessionID}. It abandons the
// session: tracking stops and the draft is dropped.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadFiles handles POST /sessions/{sessionID}/files. The multipart
// "files" parts are uploaded as a batch; per-file failures are reported
// in the rejected list, never as a request failure.
func (s *Server) uploadFiles(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "at least one file part named 'files' is required")
		return
	}

	candidates := make([]upload.Candidate, 0, len(parts))
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file part %q", part.Filename))
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file part %q", part.Filename))
			return
		}
		candidates = append(candidates, upload.Candidate{
			Name:     part.Filename,
			Size:     part.Size,
			MIMEType: part.Header.Get("Content-Type"),
			Content:  content,
		})
	}

	result, err := s.coordinator.UploadBatch(r.Context(), candidates, session.KnownFileNames())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if len(result.Uploaded) > 0 {
		if err := s.manager.AddFiles(r.Context(), session, result.Uploaded); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	resp := uploadBatchResponse{
		Uploaded: make([]fileResponse, len(result.Uploaded)),
		Rejected: make([]rejectionResponse, len(result.Rejected)),
	}
	for i, f := range result.Uploaded {
		resp.Uploaded[i] = fileToResponse(f, string(domain.FileStatusProcessing))
	}
	for i, rej := range result.Rejected {
		resp.Rejected[i] = rejectionResponse{Name: rej.Name, Reason: rej.Reason}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// removeFile handles DELETE /sessions/{sessionID}/files/{fileName}.
func (s *Server) removeFile(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if err := s.manager.RemoveFile(r.Context(), session, chi.URLParam(r, "fileName")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getFileStatus handles GET /sessions/{sessionID}/files/{fileName}/status.
func (s *Server) getFileStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "fileName")
	handle, found := findFileByName(session, name)
	if !found {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}

	status, ok := session.Status(handle.UUID)
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}

	writeJSON(w, http.StatusOK, fileStatusResponse{
		Name:         handle.Name,
		FileUUID:     handle.UUID,
		Status:       string(status.Status),
		Analysis:     status.Analysis,
		ErrorMessage: status.ErrorMessage,
	})
}

// createGroup handles POST /sessions/{sessionID}/groups.
func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	var req createGroupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	group, err := session.CreateGroup(req.FileNames)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.manager.SaveDraft(r.Context(), session)

	members := make([]fileResponse, len(group.Files))
	for i, f := range group.Files {
		members[i] = fileToResponse(f, "")
	}
	writeJSON(w, http.StatusCreated, groupResponse{ID: group.ID, Files: members})
}

// dissolveGroup handles DELETE /sessions/{sessionID}/groups/{groupID}.
func (s *Server) dissolveGroup(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if err := session.DissolveGroup(chi.URLParam(r, "groupID")); err != nil {
		writeDomainError(w, err)
		return
	}
	s.manager.SaveDraft(r.Context(), session)
	w.WriteHeader(http.StatusNoContent)
}

// updateMetadata handles PUT /sessions/{sessionID}/entities/{entityID}/metadata.
// The write is last-write-wins; the response carries the resulting validity.
func (s *Server) updateMetadata(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	var record domain.MetadataRecord
	if !decodeJSONBody(w, r, &record) {
		return
	}

	entityID := chi.URLParam(r, "entityID")
	if err := session.UpdateMetadata(entityID, record); err != nil {
		writeDomainError(w, err)
		return
	}
	s.manager.SaveDraft(r.Context(), session)

	writeJSON(w, http.StatusOK, metadataResponse{
		EntityID: entityID,
		Valid:    session.Validity(entityID),
	})
}

// updateRelevance handles PUT /sessions/{sessionID}/entities/{entityID}/relevance.
func (s *Server) updateRelevance(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	var req relevanceRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	entityID := chi.URLParam(r, "entityID")
	var err error
	switch req.Operation {
	case opToggleSkill:
		err = session.SetRelevance(entityID, req.Group, req.Skill, req.Selected)
	case opToggleGroup:
		err = session.ToggleGroup(entityID, req.Group, req.Selected)
	case opSetComplexity:
		err = session.SetComplexity(entityID, req.Group, req.Skill, req.Level)
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("operation must be one of %s, %s, %s", opToggleSkill, opToggleGroup, opSetComplexity))
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.manager.SaveDraft(r.Context(), session)

	resp := relevanceResponse{EntityID: entityID}
	if v, ok := session.Relevance(entityID); ok {
		resp.Relevance = v.Cells()
	}
	if v, ok := session.Complexity(entityID); ok {
		resp.Complexity = v.Cells()
	}
	writeJSON(w, http.StatusOK, resp)
}

// selectEntity handles POST /sessions/{sessionID}/entities/{entityID}/select.
func (s *Server) selectEntity(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	entityID := chi.URLParam(r, "entityID")
	if err := session.Select(entityID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.manager.SaveDraft(r.Context(), session)
	writeJSON(w, http.StatusOK, map[string]string{"selected": entityID})
}

// submitSession handles POST /sessions/{sessionID}/submit. Assembly
// failures for incomplete entities return 409 with the entity ids; a
// successful submission forgets the session and its draft.
func (s *Server) submitSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	articles, err := assembler.Assemble(
		session.Files(),
		session.Groups(),
		session.MetadataByEntity(),
		session.ComplexityByEntity(),
	)
	if err != nil {
		var incomplete *domain.IncompleteEntityError
		if errors.As(err, &incomplete) {
			writeJSON(w, http.StatusConflict, incompleteSubmitResponse{
				Error:              "submission blocked by incomplete entities",
				IncompleteEntities: incomplete.EntityIDs(),
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	count, err := s.submitter.Submit(r.Context(), articles)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordSessionSubmitted(count, time.Since(session.CreatedAt()).Seconds())
	}
	s.manager.Forget(r.Context(), session.ID())

	writeJSON(w, http.StatusOK, submitResponse{Submitted: count})
}

// getLookups handles GET /lookups, serving the startup-cached lists.
func (s *Server) getLookups(w http.ResponseWriter, r *http.Request) {
	if s.lookups == nil {
		writeError(w, http.StatusServiceUnavailable, "lookup lists not loaded")
		return
	}
	writeJSON(w, http.StatusOK, s.lookups)
}

// loadSession resolves the sessionID path param, writing the error
// response itself when the session cannot be loaded.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := s.manager.Get(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return session, true
}

// findFileByName locates a file handle across ungrouped files and group
// members.
func findFileByName(session *wizard.Session, name string) (domain.FileHandle, bool) {
	for _, f := range session.Files() {
		if f.Name == name {
			return f, true
		}
	}
	for _, g := range session.Groups() {
		for _, f := range g.Files {
			if f.Name == name {
				return f, true
			}
		}
	}
	return domain.FileHandle{}, false
}

// decodeJSONBody reads and decodes a JSON request body, writing a 400
// response on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP status codes and writes a
// JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrIncompleteEntity):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	default:
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, "content backend error")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
