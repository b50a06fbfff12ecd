// Package profile merges the pieces of a candidate query into one text.
package profile

import (
	"strings"

	"github.com/spigell/job-recommender/internal/extract"
)

// Candidate is the merged query text and the skills found in it.
type Candidate struct {
	Text   string
	Skills []string
}

type Builder struct {
	extractor *extract.Extractor
}

func NewBuilder(extractor *extract.Extractor) *Builder {
	if extractor == nil {
		extractor = extract.NewDefault()
	}
	return &Builder{extractor: extractor}
}

// Build joins profile text, document text and keywords. Keywords are written
// twice to raise their weight in the embedding. Inputs are not validated.
func (b *Builder) Build(profile, document string, keywords []string) Candidate {
	parts := make([]string, 0, 3)

	if p := strings.TrimSpace(profile); p != "" {
		parts = append(parts, p)
	}
	if d := extract.CleanDocumentText(document); d != "" {
		parts = append(parts, d)
	}

	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kw = append(kw, k)
		}
	}
	if len(kw) > 0 {
		joined := strings.Join(kw, " ")
		parts = append(parts, joined+" "+joined)
	}

	text := strings.Join(parts, " ")
	return Candidate{
		Text:   text,
		Skills: b.extractor.Skills(text),
	}
}
