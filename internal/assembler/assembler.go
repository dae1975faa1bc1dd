// Package assembler flattens wizard session state into the per-file
// submission records the content backend accepts, and delivers them as one
// batch.
package assembler

import (
	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/matrix"
)

// Default MIME types recorded on every submission.
const (
	defaultCoverMimeType   = "image/jpeg"
	defaultContentMimeType = "application/pdf"
)

// Assemble produces one submission record per physical file. Grouped files
// merge the group's shared fields with their own per-member override; the
// cover image falls back to the group's when the member's is empty. The
// wire field named relevance carries the entity's complexity cells.
//
// Every entity must have both a metadata record and a complexity vector;
// anything incomplete fails the whole assembly with an
// IncompleteEntityError naming each incomplete entity. No records are
// returned alongside the error.
func Assemble(
	files []domain.FileHandle,
	groups []domain.FileGroup,
	metadata map[string]*domain.MetadataRecord,
	complexity map[string]*matrix.Vector,
) ([]domain.ArticleSubmission, error) {
	incomplete := &domain.IncompleteEntityError{}

	checkEntity := func(id string) {
		if metadata[id] == nil {
			incomplete.MissingMetadata = append(incomplete.MissingMetadata, id)
		}
		if complexity[id] == nil {
			incomplete.MissingComplexity = append(incomplete.MissingComplexity, id)
		}
	}
	for _, g := range groups {
		checkEntity(g.ID)
	}
	for _, f := range files {
		checkEntity(f.Name)
	}
	if len(incomplete.MissingMetadata) > 0 || len(incomplete.MissingComplexity) > 0 {
		return nil, incomplete
	}

	var out []domain.ArticleSubmission
	for _, g := range groups {
		rec := metadata[g.ID]
		cells := complexity[g.ID].Cells()
		for i, f := range g.Files {
			record := newRecord(rec, f, cells)

			// Per-member override, matched to the group's file order.
			if i < len(rec.FileMetadata) {
				m := rec.FileMetadata[i]
				record.Title = m.Title
				record.Description = m.Description
				record.Duration = m.PageCount
				if m.CoverImage != "" {
					record.CoverImage = m.CoverImage
				}
			}
			out = append(out, record)
		}
	}
	for _, f := range files {
		rec := metadata[f.Name]
		record := newRecord(rec, f, complexity[f.Name].Cells())
		record.Title = rec.Title
		record.Description = rec.Description
		record.Duration = rec.PageCount
		out = append(out, record)
	}

	return out, nil
}

// newRecord maps the fields shared by both record variants.
func newRecord(rec *domain.MetadataRecord, f domain.FileHandle, complexityCells []int) domain.ArticleSubmission {
	return domain.ArticleSubmission{
		CoverFileMimeType:   defaultCoverMimeType,
		ContentFileMimeType: defaultContentMimeType,

		AIGenerated:     rec.AIGenerated,
		InternalUseOnly: rec.InternalUseOnly,
		RevokedAt:       rec.RevokedAt,

		MediaID:                  rec.MediaID,
		SourceID:                 rec.SourceID,
		EducationalMethodologyID: rec.EducationalMethodologyID,
		EducationalFrameworkID:   rec.EducationalFrameworkID,
		EducationalToolID:        rec.EducationalToolID,
		LanguageID:               rec.LanguageID,

		BusinessUnitIDs: append([]string(nil), rec.BusinessUnitIDs...),
		CourseIDs:       append([]string(nil), rec.CourseIDs...),
		RegionIDs:       append([]string(nil), rec.RegionIDs...),

		Size:       f.Size,
		FileUUID:   f.UUID,
		CoverImage: rec.CoverImage,
		Relevance:  complexityCells,
	}
}
