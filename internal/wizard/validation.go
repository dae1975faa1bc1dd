package wizard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/knowledgehub/article-intake-service/internal/domain"
)

// defaultMaxCoverImageSize is the cover image size cap applied when no
// limit is configured.
const defaultMaxCoverImageSize = 2 << 20

// coverImageMIMETypes are the image types accepted for cover images. The
// keys cover both the declared data URL media type and the sniffed content
// type of the decoded bytes.
var coverImageMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Validator checks metadata records against the schema rules and the
// reference lookup lists. It is safe for concurrent use.
type Validator struct {
	validate          *validator.Validate
	lookups           *domain.Lookups
	maxCoverImageSize int64
}

// NewValidator creates a metadata validator bound to the given lookup lists.
// maxCoverImageSize caps decoded cover image bytes; zero or negative applies
// the default of 2 MiB.
func NewValidator(lookups *domain.Lookups, maxCoverImageSize int64) *Validator {
	if maxCoverImageSize <= 0 {
		maxCoverImageSize = defaultMaxCoverImageSize
	}
	return &Validator{
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		lookups:           lookups,
		maxCoverImageSize: maxCoverImageSize,
	}
}

// ValidateRecord validates one metadata record. For a group record the
// group supplies the member count the per-member overrides must match.
// The first violated rule is returned as a ValidationError.
func (v *Validator) ValidateRecord(record *domain.MetadataRecord, group *domain.FileGroup) error {
	if record.IsGroup {
		if group == nil {
			return domain.NewValidationError("entityId", "group record without a matching group")
		}
		if len(record.FileMetadata) != len(group.Files) {
			return domain.NewValidationError("fileMetadata",
				fmt.Sprintf("expected %d member entries, got %d", len(group.Files), len(record.FileMetadata)))
		}
		for i := range record.FileMetadata {
			if err := v.validateOverride(&record.FileMetadata[i]); err != nil {
				return err
			}
		}
	} else {
		if err := v.validateOwnFields(record); err != nil {
			return err
		}
	}

	return v.validateSharedFields(record)
}

// validateOwnFields checks the direct title/description/pageCount fields of
// a single-file record.
func (v *Validator) validateOwnFields(record *domain.MetadataRecord) error {
	if len(record.Title) < 3 {
		return domain.NewValidationError("title", "required, minimum 3 characters")
	}
	if len(record.Description) < 10 {
		return domain.NewValidationError("description", "required, minimum 10 characters")
	}
	if record.PageCount < 1 {
		return domain.NewValidationError("pageCount", "required, minimum 1")
	}
	return nil
}

// validateOverride checks one per-member entry of a group record via its
// struct tags.
func (v *Validator) validateOverride(override *domain.FileOverride) error {
	if err := v.validate.Struct(override); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return domain.NewValidationError(
				fmt.Sprintf("fileMetadata[%s].%s", override.FileName, first.Field()),
				fmt.Sprintf("failed rule %q", first.Tag()),
			)
		}
		return domain.NewValidationError("fileMetadata", err.Error())
	}
	return v.validateCoverImage(
		fmt.Sprintf("fileMetadata[%s].coverImage", override.FileName), override.CoverImage)
}

// validateCoverImage checks an optional base64-encoded cover image. The
// payload may carry a data URL prefix; with or without one, the decoded
// bytes must sniff as an accepted image type and fit the size cap.
func (v *Validator) validateCoverImage(field, cover string) error {
	if cover == "" {
		return nil
	}

	payload := cover
	if rest, ok := strings.CutPrefix(cover, "data:"); ok {
		mediaType, encoded, found := strings.Cut(rest, ";base64,")
		if !found {
			return domain.NewValidationError(field, "cover image data URL must be base64 encoded")
		}
		if !coverImageMIMETypes[mediaType] {
			return domain.NewValidationError(field,
				fmt.Sprintf("unsupported cover image type %q, expected JPEG, PNG, or WebP", mediaType))
		}
		payload = encoded
	}

	// Estimated decoded size rules out oversized payloads before decoding.
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > v.maxCoverImageSize+2 {
		return domain.NewValidationError(field,
			fmt.Sprintf("cover image exceeds %d bytes", v.maxCoverImageSize))
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.NewValidationError(field, "cover image is not valid base64")
	}
	if int64(len(decoded)) > v.maxCoverImageSize {
		return domain.NewValidationError(field,
			fmt.Sprintf("cover image exceeds %d bytes", v.maxCoverImageSize))
	}
	if sniffed := http.DetectContentType(decoded); !coverImageMIMETypes[sniffed] {
		return domain.NewValidationError(field,
			fmt.Sprintf("cover image content is %q, expected JPEG, PNG, or WebP", sniffed))
	}
	return nil
}

// validateSharedFields checks the fields common to both record variants:
// revocation date, lookup references, and association lists.
func (v *Validator) validateSharedFields(record *domain.MetadataRecord) error {
	if record.RevokedAt == nil {
		return domain.NewValidationError("revokedAt", "required")
	}

	refs := []struct {
		field string
		id    string
		known func(string) bool
	}{
		{"mediaId", record.MediaID, v.lookups.HasMedia},
		{"sourceId", record.SourceID, v.lookups.HasSource},
		{"languageId", record.LanguageID, v.lookups.HasLanguage},
		{"educationalMethodologyId", record.EducationalMethodologyID, v.lookups.HasEducationalMethodology},
		{"educationalFrameworkId", record.EducationalFrameworkID, v.lookups.HasEducationalFramework},
		{"educationalToolId", record.EducationalToolID, v.lookups.HasEducationalTool},
	}
	for _, ref := range refs {
		if ref.id == "" {
			return domain.NewValidationError(ref.field, "required")
		}
		if !ref.known(ref.id) {
			return domain.NewValidationError(ref.field, fmt.Sprintf("unknown id %q", ref.id))
		}
	}

	if err := v.validateCoverImage("coverImage", record.CoverImage); err != nil {
		return err
	}

	lists := []struct {
		field string
		ids   []string
		known func(string) bool
	}{
		{"articleBusinessUnits", record.BusinessUnitIDs, v.lookups.HasBusinessUnit},
		{"articleCourses", record.CourseIDs, v.lookups.HasCourse},
		{"articleRegions", record.RegionIDs, v.lookups.HasRegion},
	}
	for _, list := range lists {
		if len(list.ids) == 0 {
			return domain.NewValidationError(list.field, "at least one selection required")
		}
		for _, id := range list.ids {
			if !list.known(id) {
				return domain.NewValidationError(list.field, fmt.Sprintf("unknown id %q", id))
			}
		}
	}

	return nil
}
