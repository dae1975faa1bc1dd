package httpserver

import (
	"time"

	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/wizard"
)

// Response types for JSON serialization.

type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type fileResponse struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	FileUUID string `json:"file_uuid,omitempty"`
	Status   string `json:"status,omitempty"`
}

type groupResponse struct {
	ID    string         `json:"id"`
	Files []fileResponse `json:"files"`
}

type entityStateResponse struct {
	EntityID         string `json:"entity_id"`
	IsGroup          bool   `json:"is_group"`
	MetadataValidity *bool  `json:"metadata_validity"`
	RelevanceTouched *bool  `json:"relevance_touched"`
}

type stepGatingResponse struct {
	Upload     bool `json:"upload"`
	Metadata   bool `json:"metadata"`
	Relevance  bool `json:"relevance"`
	Complexity bool `json:"complexity"`
	Review     bool `json:"review"`
}

type sessionResponse struct {
	SessionID string                `json:"session_id"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	Selected  string                `json:"selected,omitempty"`
	Files     []fileResponse        `json:"files"`
	Groups    []groupResponse       `json:"groups"`
	Entities  []entityStateResponse `json:"entities"`
	Steps     stepGatingResponse    `json:"steps"`
}

type rejectionResponse struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type uploadBatchResponse struct {
	Uploaded []fileResponse      `json:"uploaded"`
	Rejected []rejectionResponse `json:"rejected"`
}

type metadataResponse struct {
	EntityID string `json:"entity_id"`
	Valid    *bool  `json:"valid"`
}

type relevanceResponse struct {
	EntityID   string `json:"entity_id"`
	Relevance  []int  `json:"relevance"`
	Complexity []int  `json:"complexity"`
}

type fileStatusResponse struct {
	Name         string           `json:"name"`
	FileUUID     string           `json:"file_uuid"`
	Status       string           `json:"status"`
	Analysis     *domain.Analysis `json:"analysis,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

type submitResponse struct {
	Submitted int `json:"submitted"`
}

type incompleteSubmitResponse struct {
	Error              string   `json:"error"`
	IncompleteEntities []string `json:"incomplete_entities"`
}

// Converter functions

func fileToResponse(f domain.FileHandle, status string) fileResponse {
	return fileResponse{
		Name:     f.Name,
		Size:     f.Size,
		FileUUID: f.UUID,
		Status:   status,
	}
}

func sessionToResponse(s *wizard.Session) sessionResponse {
	statusOf := func(f domain.FileHandle) string {
		if st, ok := s.Status(f.UUID); ok {
			return string(st.Status)
		}
		return ""
	}

	files := s.Files()
	fileResponses := make([]fileResponse, len(files))
	for i, f := range files {
		fileResponses[i] = fileToResponse(f, statusOf(f))
	}

	groups := s.Groups()
	groupResponses := make([]groupResponse, len(groups))
	for i, g := range groups {
		members := make([]fileResponse, len(g.Files))
		for j, f := range g.Files {
			members[j] = fileToResponse(f, statusOf(f))
		}
		groupResponses[i] = groupResponse{ID: g.ID, Files: members}
	}

	entityIDs := s.EntityIDs()
	entities := make([]entityStateResponse, len(entityIDs))
	groupIDs := make(map[string]bool, len(groups))
	for _, g := range groups {
		groupIDs[g.ID] = true
	}
	for i, id := range entityIDs {
		entities[i] = entityStateResponse{
			EntityID:         id,
			IsGroup:          groupIDs[id],
			MetadataValidity: s.Validity(id),
			RelevanceTouched: s.RelevanceValidity(id),
		}
	}

	return sessionResponse{
		SessionID: s.ID(),
		CreatedAt: s.CreatedAt(),
		UpdatedAt: s.UpdatedAt(),
		Selected:  s.Selected(),
		Files:     fileResponses,
		Groups:    groupResponses,
		Entities:  entities,
		Steps: stepGatingResponse{
			Upload:     s.CanAdvance(wizard.StepUpload),
			Metadata:   s.CanAdvance(wizard.StepMetadata),
			Relevance:  s.CanAdvance(wizard.StepRelevance),
			Complexity: s.CanAdvance(wizard.StepComplexity),
			Review:     s.CanAdvance(wizard.StepReview),
		},
	}
}
