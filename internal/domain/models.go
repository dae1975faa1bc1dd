// Package domain provides domain models and business logic for the article intake service.
package domain

import (
	"time"
)

// FileStatus represents the backend processing state of an uploaded file.
type FileStatus string

const (
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s FileStatus) IsTerminal() bool {
	switch s {
	case FileStatusCompleted, FileStatusFailed:
		return true
	default:
		return false
	}
}

// FileHandle identifies an uploaded content file. UUID is assigned by the
// content backend when the upload is negotiated and stays empty while the
// upload is in flight.
type FileHandle struct {
	// Name is the original file name. Names are unique within a session and
	// serve as the entity id for ungrouped files.
	Name string `json:"name"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// UUID is the backend-assigned identifier for the uploaded file.
	UUID string `json:"uuid"`
}

// FileGroup bundles files that share metadata. A group always holds at
// least two files, and a file belongs to at most one group.
type FileGroup struct {
	// ID is the group identifier, used as the entity id for the group.
	ID string `json:"id"`
	// Files are the member files in creation order. Per-member metadata
	// overrides are matched to this order.
	Files []FileHandle `json:"files"`
}

// ContainsFile reports whether the group holds a file with the given name.
func (g *FileGroup) ContainsFile(name string) bool {
	for _, f := range g.Files {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Analysis is the suggestion payload produced by the backend document
// analysis pipeline for a completed file.
type Analysis struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Pages        int      `json:"pages"`
	Language     string   `json:"language"`
	Confidence   float64  `json:"confidence"`
	KeyTopics    []string `json:"keyTopics"`
	DocumentType string   `json:"documentType"`
}

// ProcessingStatus is the tracked state of one uploaded file.
type ProcessingStatus struct {
	// Status is the current processing state.
	Status FileStatus `json:"status"`
	// Analysis holds suggested metadata once Status is completed. Nil otherwise.
	Analysis *Analysis `json:"analysis,omitempty"`
	// ErrorMessage describes the failure when Status is failed.
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// AnalysisState tracks whether backend analysis suggestions have been
// applied to a metadata record. Suggestions are applied at most once so
// they never overwrite user edits.
type AnalysisState string

const (
	AnalysisUnapplied AnalysisState = "unapplied"
	AnalysisApplied   AnalysisState = "applied"
)

// FileOverride carries the per-member fields of a grouped metadata record.
// Overrides are ordered to match the group's file order.
type FileOverride struct {
	// FileName is the member file this override belongs to.
	FileName string `json:"fileName"`
	// Title is the member's own title.
	Title string `json:"title" validate:"required,min=3"`
	// Description is the member's own description.
	Description string `json:"description" validate:"required,min=10"`
	// PageCount is the member's page count, used as the duration on submission.
	PageCount int `json:"pageCount" validate:"required,min=1"`
	// CoverImage is an optional base64-encoded cover image. Falls back to
	// the group's cover image when empty.
	CoverImage string `json:"coverImage,omitempty"`
	// AnalysisState records whether backend suggestions were applied to
	// this member.
	AnalysisState AnalysisState `json:"analysisState,omitempty"`
}

// MetadataRecord holds the editable metadata for one entity (an ungrouped
// file or a file group). For a group the direct title/description/pageCount
// fields are unused and FileMetadata carries one override per member file.
type MetadataRecord struct {
	// EntityID is the file name or group id this record belongs to.
	EntityID string `json:"entityId"`
	// IsGroup discriminates the single-file and group variants.
	IsGroup bool `json:"isGroup"`

	// Title is the article title (single-file variant only).
	Title string `json:"title,omitempty"`
	// Description is the article description (single-file variant only).
	Description string `json:"description,omitempty"`
	// PageCount is the page count (single-file variant only).
	PageCount int `json:"pageCount,omitempty"`
	// CoverImage is an optional base64-encoded cover image.
	CoverImage string `json:"coverImage,omitempty"`

	// FileMetadata carries per-member overrides (group variant only),
	// ordered to match the group's file order.
	FileMetadata []FileOverride `json:"fileMetadata,omitempty"`

	// AIGenerated marks content produced by generative tools.
	AIGenerated bool `json:"aiGenerated"`
	// InternalUseOnly restricts the article to internal audiences.
	InternalUseOnly bool `json:"internalUseOnly"`
	// RevokedAt is the date the article expires. Nil means never.
	RevokedAt *time.Time `json:"revokedAt,omitempty"`

	// Lookup references, all required.
	MediaID                  string `json:"mediaId"`
	SourceID                 string `json:"sourceId"`
	LanguageID               string `json:"languageId"`
	EducationalMethodologyID string `json:"educationalMethodologyId"`
	EducationalFrameworkID   string `json:"educationalFrameworkId"`
	EducationalToolID        string `json:"educationalToolId"`

	// Association lists, each requiring at least one element.
	BusinessUnitIDs []string `json:"articleBusinessUnits"`
	CourseIDs       []string `json:"articleCourses"`
	RegionIDs       []string `json:"articleRegions"`

	// AnalysisState records whether backend suggestions were applied.
	AnalysisState AnalysisState `json:"analysisState"`
}

// DefaultRevocationDate returns the suggested expiry for new records:
// three years from now, date precision, UTC.
func DefaultRevocationDate(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).AddDate(3, 0, 0)
}

// IdName is a lookup list entry.
type IdName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Lookups holds the reference lists the wizard validates metadata against.
type Lookups struct {
	Media                    []IdName `json:"media"`
	Sources                  []IdName `json:"sources"`
	Languages                []IdName `json:"languages"`
	EducationalMethodologies []IdName `json:"educationalMethodologies"`
	EducationalFrameworks    []IdName `json:"educationalFrameworks"`
	EducationalTools         []IdName `json:"educationalTools"`
	BusinessUnits            []IdName `json:"businessUnits"`
	Courses                  []IdName `json:"courses"`
	Regions                  []IdName `json:"regions"`
	JobTitles                []IdName `json:"jobTitles"`
}

// contains reports whether the list holds an entry with the given id.
func contains(list []IdName, id string) bool {
	for _, e := range list {
		if e.ID == id {
			return true
		}
	}
	return false
}

// HasMedia reports whether the media list contains the id.
func (l *Lookups) HasMedia(id string) bool { return contains(l.Media, id) }

// HasSource reports whether the sources list contains the id.
func (l *Lookups) HasSource(id string) bool { return contains(l.Sources, id) }

// HasLanguage reports whether the languages list contains the id.
func (l *Lookups) HasLanguage(id string) bool { return contains(l.Languages, id) }

// HasEducationalMethodology reports whether the methodologies list contains the id.
func (l *Lookups) HasEducationalMethodology(id string) bool {
	return contains(l.EducationalMethodologies, id)
}

// HasEducationalFramework reports whether the frameworks list contains the id.
func (l *Lookups) HasEducationalFramework(id string) bool {
	return contains(l.EducationalFrameworks, id)
}

// HasEducationalTool reports whether the tools list contains the id.
func (l *Lookups) HasEducationalTool(id string) bool {
	return contains(l.EducationalTools, id)
}

// HasBusinessUnit reports whether the business units list contains the id.
func (l *Lookups) HasBusinessUnit(id string) bool { return contains(l.BusinessUnits, id) }

// HasCourse reports whether the courses list contains the id.
func (l *Lookups) HasCourse(id string) bool { return contains(l.Courses, id) }

// HasRegion reports whether the regions list contains the id.
func (l *Lookups) HasRegion(id string) bool { return contains(l.Regions, id) }

// ArticleSubmission is the wire shape of one flattened article record sent
// to the content backend. One record is produced per physical file.
type ArticleSubmission struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	CoverFileMimeType   string `json:"coverFileMimeType"`
	ContentFileMimeType string `json:"contentFileMimeType"`

	// Duration carries the page count; the backend stores it under this name.
	Duration        int        `json:"duration"`
	AIGenerated     bool       `json:"aiGenerated"`
	InternalUseOnly bool       `json:"internalUseOnly"`
	RevokedAt       *time.Time `json:"revokedAt"`

	MediaID                  string `json:"mediaId"`
	SourceID                 string `json:"sourceId"`
	EducationalMethodologyID string `json:"educationalMethodologyId"`
	EducationalFrameworkID   string `json:"educationalFrameworkId"`
	EducationalToolID        string `json:"educationalToolId"`
	LanguageID               string `json:"languageId"`

	BusinessUnitIDs []string `json:"articleBusinessUnits"`
	CourseIDs       []string `json:"articleCourses"`
	RegionIDs       []string `json:"articleRegions"`

	Size       int64  `json:"size"`
	FileUUID   string `json:"fileUuid"`
	CoverImage string `json:"coverImage,omitempty"`

	// Relevance carries the entity's submitted complexity weights. The
	// backend maps the complexity vector under this field name; keep the
	// wire name for compatibility.
	Relevance []int `json:"relevance"`
}
