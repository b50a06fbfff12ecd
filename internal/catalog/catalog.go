// Package catalog holds the immutable, versioned bundle of job records,
// their embeddings and the vector index built over them.
package catalog

import (
	"fmt"
	"time"

	"github.com/spigell/job-recommender/internal/extract"
	"github.com/spigell/job-recommender/internal/index"
)

const (
	DefaultLocation     = "Remote"
	DefaultContractType = "Unknown"
)

// Job is one enriched posting. ID is its row position in the catalog.
type Job struct {
	ID               int           `json:"job_id"`
	SourceID         string        `json:"source_id"`
	Title            string        `json:"title"`
	Company          string        `json:"company"`
	CompanyURL       string        `json:"company_url,omitempty"`
	Location         string        `json:"location"`
	ContractType     string        `json:"contract_type"`
	WorkType         string        `json:"work_type"`
	Description      string        `json:"description"`
	CleanDescription string        `json:"-"`
	CombinedText     string        `json:"-"`
	Skills           []string      `json:"skills"`
	ExperienceLevel  extract.Level `json:"experience_level"`
	YearsExperience  int           `json:"years_experience"`
	URL              string        `json:"job_url"`
	PostedTime       string        `json:"posted_time"`
	PublishedAt      string        `json:"published_at,omitempty"`
	Category         string        `json:"category,omitempty"`
}

// Meta describes how a catalog was produced.
type Meta struct {
	Version    string    `json:"version"`
	BuiltAt    time.Time `json:"built_at"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Backend    string    `json:"backend"`
}

// Catalog is never mutated after New returns. A rebuild produces a new value
// that replaces the old one through a Holder.
type Catalog struct {
	meta       Meta
	jobs       []Job
	embeddings [][]float32
	index      index.Index
	indexBlob  []byte
}

// New bundles row-aligned jobs, embeddings and index.
func New(meta Meta, jobs []Job, embeddings [][]float32, idx index.Index, indexBlob []byte) (*Catalog, error) {
	if len(jobs) != len(embeddings) {
		return nil, fmt.Errorf("catalog has %d jobs but %d embeddings", len(jobs), len(embeddings))
	}
	if idx == nil {
		return nil, fmt.Errorf("catalog index is required")
	}
	if idx.Len() != len(jobs) {
		return nil, fmt.Errorf("catalog has %d jobs but index has %d rows", len(jobs), idx.Len())
	}
	for i := range jobs {
		if jobs[i].ID != i {
			return nil, fmt.Errorf("job at row %d has id %d", i, jobs[i].ID)
		}
		if len(embeddings[i]) != meta.Dimensions {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(embeddings[i]), meta.Dimensions)
		}
	}

	return &Catalog{
		meta:       meta,
		jobs:       jobs,
		embeddings: embeddings,
		index:      idx,
		indexBlob:  indexBlob,
	}, nil
}

func (c *Catalog) Meta() Meta { return c.meta }

func (c *Catalog) Version() string { return c.meta.Version }

func (c *Catalog) Len() int { return len(c.jobs) }

func (c *Catalog) Index() index.Index { return c.index }

// IndexBlob is the serialized index the store persists alongside the rows.
func (c *Catalog) IndexBlob() []byte { return c.indexBlob }

// Job returns a copy of the job at row id.
func (c *Catalog) Job(id int) (Job, bool) {
	if id < 0 || id >= len(c.jobs) {
		return Job{}, false
	}
	job := c.jobs[id]
	job.Skills = append([]string(nil), job.Skills...)
	return job, true
}

// Embedding returns the stored vector for row id. Callers must not modify it.
func (c *Catalog) Embedding(id int) ([]float32, bool) {
	if id < 0 || id >= len(c.embeddings) {
		return nil, false
	}
	return c.embeddings[id], true
}

// Each calls fn for every job in row order until fn returns false. fn must
// not modify the job.
func (c *Catalog) Each(fn func(job *Job) bool) {
	for i := range c.jobs {
		if !fn(&c.jobs[i]) {
			return
		}
	}
}
