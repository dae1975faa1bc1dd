package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() Catalog {
	return Catalog{
		JobTitleCount: 3,
		Groups: []SkillGroup{
			{Title: "Group A", Skills: []string{"a1", "a2"}},
			{Title: "Group B", Skills: []string{"b1", "b2", "b3"}},
		},
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Len(t, c.Groups, 4)
	assert.Equal(t, 19, c.TotalSkills())
	assert.Equal(t, 7, c.JobTitleCount)
	assert.Equal(t, 133, c.VectorLen())
}

func TestCatalog_VectorLen(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, 5, c.TotalSkills())
	assert.Equal(t, 15, c.VectorLen())
}

func TestVector_SetGet(t *testing.T) {
	v := NewVector(testCatalog())

	require.NoError(t, v.Set(1, 2, 1, 4))

	got, err := v.Get(1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	// cell (group 1, skill 2) is absolute skill index 4; job 1 offsets by 5
	cells := v.Cells()
	assert.Equal(t, 4, cells[4+1*5])

	// all other cells untouched
	nonzero := 0
	for _, c := range cells {
		if c != 0 {
			nonzero++
		}
	}
	assert.Equal(t, 1, nonzero)
}

func TestVector_IndexErrors(t *testing.T) {
	v := NewVector(testCatalog())

	_, err := v.Get(5, 0, 0)
	assert.Error(t, err)

	_, err = v.Get(0, 9, 0)
	assert.Error(t, err)

	_, err = v.Get(0, 0, 3)
	assert.Error(t, err)

	assert.Error(t, v.Set(-1, 0, 0, 1))
	assert.Error(t, v.SetSkillAcrossJobs(0, 7, 1))
	assert.Error(t, v.SetGroupAcrossJobs(2, 1))
}

func TestVector_SetSkillAcrossJobs(t *testing.T) {
	v := NewVector(testCatalog())

	require.NoError(t, v.SetSkillAcrossJobs(0, 1, 1))

	// the cell must be set for every job title, not just one
	for job := 0; job < 3; job++ {
		got, err := v.Get(0, 1, job)
		require.NoError(t, err)
		assert.Equal(t, 1, got, "job %d", job)
	}

	// other skills stay zero
	got, err := v.Get(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestVector_SetGroupAcrossJobs(t *testing.T) {
	v := NewVector(testCatalog())

	require.NoError(t, v.SetGroupAcrossJobs(1, 1))

	for skill := 0; skill < 3; skill++ {
		for job := 0; job < 3; job++ {
			got, err := v.Get(1, skill, job)
			require.NoError(t, err)
			assert.Equal(t, 1, got)
		}
	}

	// group 0 untouched
	got, err := v.Get(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	// deselect the whole group again
	require.NoError(t, v.SetGroupAcrossJobs(1, 0))
	assert.False(t, v.AnyNonZero())
}

func TestVector_AnyNonZero(t *testing.T) {
	v := NewVector(testCatalog())
	assert.False(t, v.AnyNonZero())

	require.NoError(t, v.Set(0, 0, 0, 1))
	assert.True(t, v.AnyNonZero())

	require.NoError(t, v.Set(0, 0, 0, 0))
	assert.False(t, v.AnyNonZero())
}

func TestNewVectorFilled(t *testing.T) {
	v := NewVectorFilled(testCatalog(), 1)

	for _, c := range v.Cells() {
		assert.Equal(t, 1, c)
	}
}

func TestVector_Clone(t *testing.T) {
	v := NewVector(testCatalog())
	require.NoError(t, v.Set(0, 0, 0, 3))

	c := v.Clone()
	require.NoError(t, c.Set(0, 0, 0, 9))

	got, err := v.Get(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, got, "clone must not alias the original")
}

func TestFromCells(t *testing.T) {
	cat := testCatalog()

	t.Run("round trips cells", func(t *testing.T) {
		src := NewVectorFilled(cat, 2)
		v, err := FromCells(cat, src.Cells())
		require.NoError(t, err)
		assert.Equal(t, src.Cells(), v.Cells())
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := FromCells(cat, make([]int, 7))
		assert.Error(t, err)
	})
}
