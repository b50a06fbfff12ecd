package recommend

import (
	"strings"

	"github.com/spigell/job-recommender/internal/catalog"
	"github.com/spigell/job-recommender/internal/scoring"
)

const previewLength = 300

// Query is one recommendation request.
type Query struct {
	Profile      string
	DocumentText string
	Keywords     []string
	Preferences  scoring.Preferences
	// TopK <= 0 selects the configured default.
	TopK     int
	MinScore float64
}

// Validate rejects a query with nothing to embed.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Profile) != "" || strings.TrimSpace(q.DocumentText) != "" {
		return nil
	}
	for _, k := range q.Keywords {
		if strings.TrimSpace(k) != "" {
			return nil
		}
	}
	return ErrEmptyQuery
}

// Result is one ranked job with the sub-scores that produced its rank.
type Result struct {
	Job                catalog.Job       `json:"job"`
	Score              float64           `json:"score"`
	Breakdown          scoring.Breakdown `json:"breakdown"`
	DescriptionPreview string            `json:"description_preview"`
	CatalogVersion     string            `json:"catalog_version"`
}

// SimilarJob is a neighbour ranked by semantic similarity alone.
type SimilarJob struct {
	Job        catalog.Job `json:"job"`
	Similarity float64     `json:"similarity"`
}

func newResult(job catalog.Job, b scoring.Breakdown, version string) Result {
	return Result{
		Job:                job,
		Score:              b.Final,
		Breakdown:          b,
		DescriptionPreview: preview(job.CleanDescription),
		CatalogVersion:     version,
	}
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return string(runes) + "..."
}
