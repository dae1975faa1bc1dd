package wizard

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgehub/article-intake-service/internal/domain"
)

func TestValidateRecord_Single(t *testing.T) {
	v := NewValidator(testLookups(), 0)

	t.Run("valid", func(t *testing.T) {
		rec := validRecord()
		assert.NoError(t, v.ValidateRecord(&rec, nil))
	})

	tests := []struct {
		name   string
		mutate func(*domain.MetadataRecord)
		field  string
	}{
		{"short title", func(r *domain.MetadataRecord) { r.Title = "ab" }, "title"},
		{"short description", func(r *domain.MetadataRecord) { r.Description = "too short" }, "description"},
		{"zero page count", func(r *domain.MetadataRecord) { r.PageCount = 0 }, "pageCount"},
		{"missing revocation date", func(r *domain.MetadataRecord) { r.RevokedAt = nil }, "revokedAt"},
		{"missing media", func(r *domain.MetadataRecord) { r.MediaID = "" }, "mediaId"},
		{"unknown media", func(r *domain.MetadataRecord) { r.MediaID = "media-999" }, "mediaId"},
		{"unknown language", func(r *domain.MetadataRecord) { r.LanguageID = "lang-zz" }, "languageId"},
		{"empty business units", func(r *domain.MetadataRecord) { r.BusinessUnitIDs = nil }, "articleBusinessUnits"},
		{"unknown region", func(r *domain.MetadataRecord) { r.RegionIDs = []string{"region-999"} }, "articleRegions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)

			err := v.ValidateRecord(&rec, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateRecord_Group(t *testing.T) {
	v := NewValidator(testLookups(), 0)
	group := domain.FileGroup{
		ID: "group-1",
		Files: []domain.FileHandle{
			{Name: "a.pdf", UUID: "uuid-a"},
			{Name: "b.pdf", UUID: "uuid-b"},
		},
	}

	t.Run("valid", func(t *testing.T) {
		rec := validGroupRecord(group)
		assert.NoError(t, v.ValidateRecord(&rec, &group))
	})

	t.Run("member count mismatch", func(t *testing.T) {
		rec := validGroupRecord(group)
		rec.FileMetadata = rec.FileMetadata[:1]

		err := v.ValidateRecord(&rec, &group)
		require.Error(t, err)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "fileMetadata", verr.Field)
	})

	t.Run("invalid member blocks the group", func(t *testing.T) {
		rec := validGroupRecord(group)
		rec.FileMetadata[1].Title = "x"

		err := v.ValidateRecord(&rec, &group)
		require.Error(t, err)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Field, "b.pdf")
	})

	t.Run("shared fields still checked", func(t *testing.T) {
		rec := validGroupRecord(group)
		rec.SourceID = ""

		err := v.ValidateRecord(&rec, &group)
		require.Error(t, err)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "sourceId", verr.Field)
	})

	t.Run("group record without group", func(t *testing.T) {
		rec := validGroupRecord(group)
		err := v.ValidateRecord(&rec, nil)
		require.Error(t, err)
	})
}

// pngCover builds a base64 payload whose decoded bytes sniff as image/png.
func pngCover(size int) string {
	data := make([]byte, size)
	copy(data, "\x89PNG\r\n\x1a\n")
	return base64.StdEncoding.EncodeToString(data)
}

func TestValidateRecord_CoverImage(t *testing.T) {
	v := NewValidator(testLookups(), 256)

	t.Run("bare base64 png accepted", func(t *testing.T) {
		rec := validRecord()
		rec.CoverImage = pngCover(64)
		assert.NoError(t, v.ValidateRecord(&rec, nil))
	})

	t.Run("data url png accepted", func(t *testing.T) {
		rec := validRecord()
		rec.CoverImage = "data:image/png;base64," + pngCover(64)
		assert.NoError(t, v.ValidateRecord(&rec, nil))
	})

	tests := []struct {
		name  string
		cover string
	}{
		{"oversized image", pngCover(512)},
		{"oversized data url image", "data:image/png;base64," + pngCover(512)},
		{"declared non-image type", "data:application/x-msdownload;base64," + pngCover(64)},
		{"content not an image", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("MZ", 32)))},
		{"undecodable payload", "data:image/png;base64,@@not-base64@@"},
		{"data url without base64 marker", "data:image/png,rawbytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			rec.CoverImage = tt.cover

			err := v.ValidateRecord(&rec, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "coverImage", verr.Field)
		})
	}

	t.Run("group member cover checked", func(t *testing.T) {
		group := domain.FileGroup{
			ID: "group-1",
			Files: []domain.FileHandle{
				{Name: "a.pdf", UUID: "uuid-a"},
				{Name: "b.pdf", UUID: "uuid-b"},
			},
		}
		rec := validGroupRecord(group)
		rec.FileMetadata[1].CoverImage = "data:application/x-msdownload;base64," + pngCover(64)

		err := v.ValidateRecord(&rec, &group)
		require.Error(t, err)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Field, "b.pdf")
		assert.Contains(t, verr.Field, "coverImage")
	})
}
