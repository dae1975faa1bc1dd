// Package matrix provides the flattened skill-by-job-title vectors used to
// record relevance selections and complexity weights for an article entity.
//
// Vectors are stored row-major by job title: the cell for skill s (absolute
// index across all skill groups) and job title j lives at s + j*totalSkills.
// All index arithmetic for that layout lives in this package.
package matrix

import (
	"fmt"
)

// SkillGroup is a named group of skills in the competency catalog.
type SkillGroup struct {
	// Title is the display name of the group.
	Title string `json:"title"`
	// Skills are the skill names in catalog order.
	Skills []string `json:"skills"`
}

// Catalog describes the competency dimensions a vector is laid out over.
type Catalog struct {
	// Groups are the skill groups in catalog order.
	Groups []SkillGroup `json:"groups"`
	// JobTitleCount is the number of job titles in the job dimension.
	JobTitleCount int `json:"jobTitleCount"`
}

// DefaultCatalog returns the built-in competency catalog: four skill groups
// with nineteen skills total, over seven job titles.
func DefaultCatalog() Catalog {
	return Catalog{
		JobTitleCount: 7,
		Groups: []SkillGroup{
			{
				Title: "Clinical & Product Knowledge",
				Skills: []string{
					"Structural Heart Disease Knowledge",
					"Procedural Expertise",
					"Clinical Data Expertise",
					"Surgical Product Portfolio Knowledge",
					"Competitive Surgical Products Knowledge",
					"Transcatheter Solution Knowledge",
				},
			},
			{
				Title: "Market & Business Expertise",
				Skills: []string{
					"Economic Drivers & Future Trends of the Business and Industry",
					"Reimbursement, Tendering and GHER Proficiency",
					"Tender/Contract Management",
					"EW & Surgical Strategy",
					"Customer Leadership",
				},
			},
			{
				Title: "Operational Excellence",
				Skills: []string{
					"Strategic Insights Development Thinking",
					"Territory Planning",
					"Operational Effectiveness",
					"Business Analytics",
				},
			},
			{
				Title: "Selling Skills",
				Skills: []string{
					"Sales Call Planning",
					"Communication (Objection Handling)",
					"Value & Solutions Selling (Persuasion & Negotiation)",
					"Partnership Building",
				},
			},
		},
	}
}

// TotalSkills returns the number of skills across all groups.
func (c Catalog) TotalSkills() int {
	n := 0
	for _, g := range c.Groups {
		n += len(g.Skills)
	}
	return n
}

// VectorLen returns the flattened vector length: totalSkills * jobTitleCount.
func (c Catalog) VectorLen() int {
	return c.TotalSkills() * c.JobTitleCount
}

// skillIndex returns the absolute skill index for (group, skill) or an error
// when either index is out of range.
func (c Catalog) skillIndex(group, skill int) (int, error) {
	if group < 0 || group >= len(c.Groups) {
		return 0, fmt.Errorf("skill group index %d out of range [0,%d)", group, len(c.Groups))
	}
	if skill < 0 || skill >= len(c.Groups[group].Skills) {
		return 0, fmt.Errorf("skill index %d out of range [0,%d) in group %d", skill, len(c.Groups[group].Skills), group)
	}
	idx := skill
	for i := 0; i < group; i++ {
		idx += len(c.Groups[i].Skills)
	}
	return idx, nil
}

// Vector is a flattened skill-by-job-title cell grid over a catalog.
type Vector struct {
	catalog Catalog
	cells   []int
}

// NewVector returns a zero-filled vector laid out over the catalog.
func NewVector(c Catalog) *Vector {
	return &Vector{
		catalog: c,
		cells:   make([]int, c.VectorLen()),
	}
}

// NewVectorFilled returns a vector with every cell set to value. Complexity
// vectors start filled with 1, the lowest weight.
func NewVectorFilled(c Catalog, value int) *Vector {
	v := NewVector(c)
	for i := range v.cells {
		v.cells[i] = value
	}
	return v
}

// FromCells builds a vector from raw flattened cells. The slice length must
// match the catalog's vector length.
func FromCells(c Catalog, cells []int) (*Vector, error) {
	if len(cells) != c.VectorLen() {
		return nil, fmt.Errorf("cell count %d does not match catalog vector length %d", len(cells), c.VectorLen())
	}
	v := NewVector(c)
	copy(v.cells, cells)
	return v, nil
}

// Len returns the flattened vector length.
func (v *Vector) Len() int {
	return len(v.cells)
}

// Cells returns a copy of the raw flattened cells.
func (v *Vector) Cells() []int {
	out := make([]int, len(v.cells))
	copy(out, v.cells)
	return out
}

// Clone returns a deep copy of the vector.
func (v *Vector) Clone() *Vector {
	c := NewVector(v.catalog)
	copy(c.cells, v.cells)
	return c
}

// Get returns the cell value for (group, skill, job).
func (v *Vector) Get(group, skill, job int) (int, error) {
	s, err := v.catalog.skillIndex(group, skill)
	if err != nil {
		return 0, err
	}
	if job < 0 || job >= v.catalog.JobTitleCount {
		return 0, fmt.Errorf("job index %d out of range [0,%d)", job, v.catalog.JobTitleCount)
	}
	return v.cells[s+job*v.catalog.TotalSkills()], nil
}

// Set writes the cell value for (group, skill, job).
func (v *Vector) Set(group, skill, job, value int) error {
	s, err := v.catalog.skillIndex(group, skill)
	if err != nil {
		return err
	}
	if job < 0 || job >= v.catalog.JobTitleCount {
		return fmt.Errorf("job index %d out of range [0,%d)", job, v.catalog.JobTitleCount)
	}
	v.cells[s+job*v.catalog.TotalSkills()] = value
	return nil
}

// SetSkillAcrossJobs writes the cell value for (group, skill) under every
// job title. Selections apply uniformly across the job dimension.
func (v *Vector) SetSkillAcrossJobs(group, skill, value int) error {
	s, err := v.catalog.skillIndex(group, skill)
	if err != nil {
		return err
	}
	total := v.catalog.TotalSkills()
	for job := 0; job < v.catalog.JobTitleCount; job++ {
		v.cells[s+job*total] = value
	}
	return nil
}

// SetGroupAcrossJobs writes the cell value for every skill in the group
// under every job title.
func (v *Vector) SetGroupAcrossJobs(group, value int) error {
	if group < 0 || group >= len(v.catalog.Groups) {
		return fmt.Errorf("skill group index %d out of range [0,%d)", group, len(v.catalog.Groups))
	}
	for skill := range v.catalog.Groups[group].Skills {
		if err := v.SetSkillAcrossJobs(group, skill, value); err != nil {
			return err
		}
	}
	return nil
}

// AnyNonZero reports whether any cell in the vector is nonzero.
func (v *Vector) AnyNonZero() bool {
	for _, c := range v.cells {
		if c != 0 {
			return true
		}
	}
	return false
}
