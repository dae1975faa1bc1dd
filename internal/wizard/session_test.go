package wizard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgehub/article-intake-service/internal/domain"
	"github.com/knowledgehub/article-intake-service/internal/matrix"
)

func testLookups() *domain.Lookups {
	return &domain.Lookups{
		Media:                    []domain.IdName{{ID: "media-1", Name: "PDF"}},
		Sources:                  []domain.IdName{{ID: "source-1", Name: "Internal"}},
		Languages:                []domain.IdName{{ID: "lang-en", Name: "English"}},
		EducationalMethodologies: []domain.IdName{{ID: "meth-1", Name: "Self Study"}},
		EducationalFrameworks:    []domain.IdName{{ID: "frame-1", Name: "Framework"}},
		EducationalTools:         []domain.IdName{{ID: "tool-1", Name: "Reader"}},
		BusinessUnits:            []domain.IdName{{ID: "bu-1", Name: "Surgical"}},
		Courses:                  []domain.IdName{{ID: "course-1", Name: "Onboarding"}},
		Regions:                  []domain.IdName{{ID: "region-1", Name: "EMEA"}},
		JobTitles:                []domain.IdName{{ID: "job-1", Name: "Rep"}},
	}
}

func testCatalog() matrix.Catalog {
	return matrix.Catalog{
		JobTitleCount: 3,
		Groups: []matrix.SkillGroup{
			{Title: "Group A", Skills: []string{"A1", "A2"}},
			{Title: "Group B", Skills: []string{"B1", "B2", "B3"}},
		},
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession("session-1", testCatalog(), NewValidator(testLookups(), 0))
}

func handle(name string) domain.FileHandle {
	return domain.FileHandle{Name: name, Size: 100, UUID: "uuid-" + name}
}

func addFiles(t *testing.T, s *Session, names ...string) {
	t.Helper()
	handles := make([]domain.FileHandle, len(names))
	for i, n := range names {
		handles[i] = handle(n)
	}
	require.NoError(t, s.AddFiles(handles))
}

func validRecord() domain.MetadataRecord {
	revoked := domain.DefaultRevocationDate(time.Now())
	return domain.MetadataRecord{
		Title:                    "A Valid Title",
		Description:              "A description long enough to pass",
		PageCount:                12,
		RevokedAt:                &revoked,
		MediaID:                  "media-1",
		SourceID:                 "source-1",
		LanguageID:               "lang-en",
		EducationalMethodologyID: "meth-1",
		EducationalFrameworkID:   "frame-1",
		EducationalToolID:        "tool-1",
		BusinessUnitIDs:          []string{"bu-1"},
		CourseIDs:                []string{"course-1"},
		RegionIDs:                []string{"region-1"},
	}
}

func validGroupRecord(g domain.FileGroup) domain.MetadataRecord {
	rec := validRecord()
	rec.IsGroup = true
	rec.Title = ""
	rec.Description = ""
	rec.PageCount = 0
	for _, f := range g.Files {
		rec.FileMetadata = append(rec.FileMetadata, domain.FileOverride{
			FileName:    f.Name,
			Title:       "Title " + f.Name,
			Description: "Description for " + f.Name,
			PageCount:   3,
		})
	}
	return rec
}

func TestAddFiles(t *testing.T) {
	t.Run("adds to ungrouped set and selects first", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf")

		assert.Equal(t, []string{"a.pdf", "b.pdf"}, s.EntityIDs())
		assert.Equal(t, "a.pdf", s.Selected())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")

		err := s.AddFiles([]domain.FileHandle{handle("a.pdf")})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		assert.Len(t, s.EntityIDs(), 1)
	})
}

func TestCreateGroup(t *testing.T) {
	t.Run("moves members out of the ungrouped set", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf", "c.pdf")

		g, err := s.CreateGroup([]string{"a.pdf", "b.pdf"})
		require.NoError(t, err)
		require.Len(t, g.Files, 2)

		// Groups come first in entity order.
		assert.Equal(t, []string{g.ID, "c.pdf"}, s.EntityIDs())
	})

	t.Run("fewer than two files is a no-op", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf")

		_, err := s.CreateGroup([]string{"a.pdf"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, []string{"a.pdf", "b.pdf"}, s.EntityIDs())
		assert.Empty(t, s.Groups())
	})

	t.Run("grouped file cannot join another group", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf", "c.pdf")
		_, err := s.CreateGroup([]string{"a.pdf", "b.pdf"})
		require.NoError(t, err)

		_, err = s.CreateGroup([]string{"b.pdf", "c.pdf"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Len(t, s.Groups(), 1)
	})

	t.Run("selection follows a grouped file to its group", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf")
		require.Equal(t, "a.pdf", s.Selected())

		g, err := s.CreateGroup([]string{"a.pdf", "b.pdf"})
		require.NoError(t, err)
		assert.Equal(t, g.ID, s.Selected())
	})
}

func TestDissolveGroup(t *testing.T) {
	t.Run("returns members unchanged and drops group entries", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf")
		g, err := s.CreateGroup([]string{"a.pdf", "b.pdf"})
		require.NoError(t, err)

		require.NoError(t, s.UpdateMetadata(g.ID, validGroupRecord(*g)))
		require.NoError(t, s.SetRelevance(g.ID, 0, 0, true))
		require.NotNil(t, s.Validity(g.ID))

		require.NoError(t, s.DissolveGroup(g.ID))

		assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, s.EntityIDs())
		assert.Nil(t, s.Validity(g.ID))
		assert.Nil(t, s.RelevanceValidity(g.ID))
		_, ok := s.Metadata(g.ID)
		assert.False(t, ok)
	})

	t.Run("unknown group", func(t *testing.T) {
		s := newTestSession(t)
		assert.ErrorIs(t, s.DissolveGroup("missing"), domain.ErrNotFound)
	})
}

func TestRemoveFile(t *testing.T) {
	t.Run("removes ungrouped file and its entries", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf")
		require.NoError(t, s.UpdateMetadata("a.pdf", validRecord()))

		removed, err := s.RemoveFile("a.pdf")
		require.NoError(t, err)
		assert.Equal(t, "uuid-a.pdf", removed.UUID)
		assert.Equal(t, []string{"b.pdf"}, s.EntityIDs())
		assert.Nil(t, s.Validity("a.pdf"))
	})

	t.Run("selection falls to first remaining entity", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf")
		require.Equal(t, "a.pdf", s.Selected())

		_, err := s.RemoveFile("a.pdf")
		require.NoError(t, err)
		assert.Equal(t, "b.pdf", s.Selected())

		_, err = s.RemoveFile("b.pdf")
		require.NoError(t, err)
		assert.Equal(t, "", s.Selected())
	})

	t.Run("grouped file must be dissolved first", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf")
		_, err := s.CreateGroup([]string{"a.pdf", "b.pdf"})
		require.NoError(t, err)

		_, err = s.RemoveFile("a.pdf")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPartitionProperty(t *testing.T) {
	// Random-ish sequence of mutations; after each, every file appears in
	// exactly one entity.
	s := newTestSession(t)
	addFiles(t, s, "a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf")

	checkPartition := func() {
		seen := map[string]int{}
		for _, h := range s.Files() {
			seen[h.Name]++
		}
		for _, g := range s.Groups() {
			require.GreaterOrEqual(t, len(g.Files), 2)
			for _, h := range g.Files {
				seen[h.Name]++
			}
		}
		for name, n := range seen {
			require.Equal(t, 1, n, "file %s in %d entities", name, n)
		}
	}

	g1, err := s.CreateGroup([]string{"a.pdf", "b.pdf"})
	require.NoError(t, err)
	checkPartition()

	g2, err := s.CreateGroup([]string{"c.pdf", "d.pdf", "e.pdf"})
	require.NoError(t, err)
	checkPartition()

	require.NoError(t, s.DissolveGroup(g1.ID))
	checkPartition()

	_, err = s.RemoveFile("a.pdf")
	require.NoError(t, err)
	checkPartition()

	require.NoError(t, s.DissolveGroup(g2.ID))
	checkPartition()

	_, err = s.RemoveFile("c.pdf")
	require.NoError(t, err)
	checkPartition()
}

func TestMetadataValidity(t *testing.T) {
	t.Run("tri-state: nil until touched", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")
		assert.Nil(t, s.Validity("a.pdf"))
	})

	t.Run("valid record", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")
		require.NoError(t, s.UpdateMetadata("a.pdf", validRecord()))

		v := s.Validity("a.pdf")
		require.NotNil(t, v)
		assert.True(t, *v)
	})

	t.Run("invalid record marks false, not nil", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")
		rec := validRecord()
		rec.Title = "ab"
		require.NoError(t, s.UpdateMetadata("a.pdf", rec))

		v := s.Validity("a.pdf")
		require.NotNil(t, v)
		assert.False(t, *v)
	})

	t.Run("last write wins", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")
		rec := validRecord()
		rec.Title = "ab"
		require.NoError(t, s.UpdateMetadata("a.pdf", rec))
		require.NoError(t, s.UpdateMetadata("a.pdf", validRecord()))

		v := s.Validity("a.pdf")
		require.NotNil(t, v)
		assert.True(t, *v)
	})

	t.Run("unknown entity", func(t *testing.T) {
		s := newTestSession(t)
		err := s.UpdateMetadata("ghost.pdf", validRecord())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestApplyStatus(t *testing.T) {
	completedWith := func(title, desc string, pages int) domain.ProcessingStatus {
		return domain.ProcessingStatus{
			Status:   domain.FileStatusCompleted,
			Analysis: &domain.Analysis{Title: title, Description: desc, Pages: pages},
		}
	}

	t.Run("pre-fills empty fields once", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")

		s.ApplyStatus("uuid-a.pdf", completedWith("Suggested", "Suggested description", 7))

		rec, ok := s.Metadata("a.pdf")
		require.True(t, ok)
		assert.Equal(t, "Suggested", rec.Title)
		assert.Equal(t, 7, rec.PageCount)
		assert.Equal(t, domain.AnalysisApplied, rec.AnalysisState)
	})

	t.Run("second analysis never overwrites", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")

		s.ApplyStatus("uuid-a.pdf", completedWith("First", "First description", 7))
		s.ApplyStatus("uuid-a.pdf", completedWith("Second", "Second description", 9))

		rec, ok := s.Metadata("a.pdf")
		require.True(t, ok)
		assert.Equal(t, "First", rec.Title)
		assert.Equal(t, 7, rec.PageCount)
	})

	t.Run("user edits survive analysis arrival", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")
		rec := validRecord()
		rec.Title = "User Title"
		require.NoError(t, s.UpdateMetadata("a.pdf", rec))

		s.ApplyStatus("uuid-a.pdf", completedWith("Machine Title", "Machine description", 7))

		got, ok := s.Metadata("a.pdf")
		require.True(t, ok)
		assert.Equal(t, "User Title", got.Title)
	})

	t.Run("apply-once survives a later user edit", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")

		s.ApplyStatus("uuid-a.pdf", completedWith("First", "First description", 7))
		rec := validRecord()
		rec.Title = "Edited"
		require.NoError(t, s.UpdateMetadata("a.pdf", rec))
		s.ApplyStatus("uuid-a.pdf", completedWith("Second", "Second description", 9))

		got, ok := s.Metadata("a.pdf")
		require.True(t, ok)
		assert.Equal(t, "Edited", got.Title)
	})

	t.Run("fills the right group member", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf", "b.pdf")
		g, err := s.CreateGroup([]string{"a.pdf", "b.pdf"})
		require.NoError(t, err)

		s.ApplyStatus("uuid-b.pdf", completedWith("B Title", "B description text", 4))

		rec, ok := s.Metadata(g.ID)
		require.True(t, ok)
		require.Len(t, rec.FileMetadata, 2)
		assert.Equal(t, "", rec.FileMetadata[0].Title)
		assert.Equal(t, "B Title", rec.FileMetadata[1].Title)
		assert.Equal(t, domain.AnalysisApplied, rec.FileMetadata[1].AnalysisState)
	})

	t.Run("unknown uuid is ignored", func(t *testing.T) {
		s := newTestSession(t)
		s.ApplyStatus("uuid-ghost", completedWith("X", "Y", 1))
		assert.Empty(t, s.EntityIDs())
	})
}

func TestRelevance(t *testing.T) {
	t.Run("tri-state validity", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")

		assert.Nil(t, s.RelevanceValidity("a.pdf"))

		require.NoError(t, s.SetRelevance("a.pdf", 0, 0, true))
		v := s.RelevanceValidity("a.pdf")
		require.NotNil(t, v)
		assert.True(t, *v)

		require.NoError(t, s.SetRelevance("a.pdf", 0, 0, false))
		v = s.RelevanceValidity("a.pdf")
		require.NotNil(t, v)
		assert.False(t, *v)
	})

	t.Run("toggle applies across every job title", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")
		require.NoError(t, s.SetRelevance("a.pdf", 1, 2, true))

		rel, ok := s.Relevance("a.pdf")
		require.True(t, ok)
		for job := 0; job < 3; job++ {
			v, err := rel.Get(1, 2, job)
			require.NoError(t, err)
			assert.Equal(t, 1, v, "job %d", job)
		}
		// Neighboring skill untouched.
		v, err := rel.Get(1, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, v)
	})

	t.Run("group toggle covers the whole skill group", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")
		require.NoError(t, s.ToggleGroup("a.pdf", 1, true))

		rel, ok := s.Relevance("a.pdf")
		require.True(t, ok)
		for skill := 0; skill < 3; skill++ {
			for job := 0; job < 3; job++ {
				v, err := rel.Get(1, skill, job)
				require.NoError(t, err)
				assert.Equal(t, 1, v)
			}
		}
	})

	t.Run("complexity defaults to 1 and applies across jobs", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")
		require.NoError(t, s.SetRelevance("a.pdf", 0, 0, true))

		cpx, ok := s.Complexity("a.pdf")
		require.True(t, ok)
		v, err := cpx.Get(1, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		require.NoError(t, s.SetComplexity("a.pdf", 0, 0, 3))
		cpx, _ = s.Complexity("a.pdf")
		for job := 0; job < 3; job++ {
			v, err := cpx.Get(0, 0, job)
			require.NoError(t, err)
			assert.Equal(t, 3, v)
		}
	})

	t.Run("complexity level out of range", func(t *testing.T) {
		s := newTestSession(t)
		addFiles(t, s, "a.pdf")
		assert.ErrorIs(t, s.SetComplexity("a.pdf", 0, 0, 0), domain.ErrInvalidInput)
		assert.ErrorIs(t, s.SetComplexity("a.pdf", 0, 0, 5), domain.ErrInvalidInput)
	})

	t.Run("unknown entity", func(t *testing.T) {
		s := newTestSession(t)
		assert.ErrorIs(t, s.SetRelevance("ghost", 0, 0, true), domain.ErrNotFound)
	})
}

func TestCanAdvance(t *testing.T) {
	s := newTestSession(t)

	// Empty session advances nothing.
	assert.False(t, s.CanAdvance(StepUpload))

	addFiles(t, s, "a.pdf", "b.pdf")
	assert.True(t, s.CanAdvance(StepUpload))
	assert.False(t, s.CanAdvance(StepMetadata))

	require.NoError(t, s.UpdateMetadata("a.pdf", validRecord()))
	assert.False(t, s.CanAdvance(StepMetadata), "one entity still untouched")

	require.NoError(t, s.UpdateMetadata("b.pdf", validRecord()))
	assert.True(t, s.CanAdvance(StepMetadata))
	assert.False(t, s.CanAdvance(StepRelevance))

	require.NoError(t, s.SetRelevance("a.pdf", 0, 0, true))
	require.NoError(t, s.SetRelevance("b.pdf", 0, 1, true))
	assert.True(t, s.CanAdvance(StepRelevance))
	assert.True(t, s.CanAdvance(StepComplexity))
	assert.True(t, s.CanAdvance(StepReview))
	assert.True(t, s.CanAdvanceAll())

	// Untoggling back to all-zero blocks relevance again.
	require.NoError(t, s.SetRelevance("b.pdf", 0, 1, false))
	assert.False(t, s.CanAdvance(StepRelevance))
	assert.False(t, s.CanAdvance(StepReview))
}

func TestSnapshotRestore(t *testing.T) {
	s := newTestSession(t)
	addFiles(t, s, "a.pdf", "b.pdf", "c.pdf")
	g, err := s.CreateGroup([]string{"a.pdf", "b.pdf"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateMetadata(g.ID, validGroupRecord(*g)))
	require.NoError(t, s.UpdateMetadata("c.pdf", validRecord()))
	require.NoError(t, s.SetRelevance(g.ID, 0, 0, true))
	require.NoError(t, s.SetComplexity(g.ID, 0, 0, 4))
	require.NoError(t, s.SetRelevance("c.pdf", 1, 1, true))
	s.ApplyStatus("uuid-c.pdf", domain.ProcessingStatus{Status: domain.FileStatusCompleted})

	restored, err := RestoreSession(s.Snapshot(), testCatalog(), NewValidator(testLookups(), 0))
	require.NoError(t, err)

	assert.Equal(t, s.ID(), restored.ID())
	assert.Equal(t, s.EntityIDs(), restored.EntityIDs())
	assert.Equal(t, s.Selected(), restored.Selected())

	v := restored.Validity(g.ID)
	require.NotNil(t, v)
	assert.True(t, *v)

	rel, ok := restored.Relevance(g.ID)
	require.True(t, ok)
	cell, err := rel.Get(0, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, cell)

	cpx, ok := restored.Complexity(g.ID)
	require.True(t, ok)
	cell, err = cpx.Get(0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, cell)

	st, ok := restored.Status("uuid-c.pdf")
	require.True(t, ok)
	assert.Equal(t, domain.FileStatusCompleted, st.Status)

	rec, ok := restored.Metadata(g.ID)
	require.True(t, ok)
	assert.Len(t, rec.FileMetadata, 2)
}

func TestSnapshotRestore_BadVectorLength(t *testing.T) {
	s := newTestSession(t)
	addFiles(t, s, "a.pdf")
	require.NoError(t, s.SetRelevance("a.pdf", 0, 0, true))

	snap := s.Snapshot()
	snap.Relevance["a.pdf"] = []int{1, 2, 3}

	_, err := RestoreSession(snap, testCatalog(), NewValidator(testLookups(), 0))
	require.Error(t, err)
}
