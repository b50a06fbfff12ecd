package catalog

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/extract"
)

// Step describes the result of executing a build step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// draft is a job under construction, before row ids are assigned.
type draft struct {
	record corpus.Record
	job    Job
}

// buildStep transforms or filters the drafts of a catalog build.
type buildStep interface {
	Name() string
	Apply(ctx context.Context, drafts []draft) ([]draft, Step, error)
}

// runSteps executes steps sequentially, logging the outcome of each one.
func runSteps(ctx context.Context, logger *zap.Logger, steps []buildStep, drafts []draft, onStep func(name string, info Step)) ([]draft, error) {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, info, err := step.Apply(ctx, drafts)
		if err != nil {
			return nil, err
		}

		logger.Info("build step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		if onStep != nil {
			onStep(step.Name(), info)
		}

		drafts = next
	}

	return drafts, nil
}

type dedupeStep struct{}

// newDedupe drops postings whose (title, company, description) was already seen.
func newDedupe() buildStep { return dedupeStep{} }

func (dedupeStep) Name() string { return "dedupe" }

func (dedupeStep) Apply(_ context.Context, drafts []draft) ([]draft, Step, error) {
	initial := len(drafts)
	seen := make(map[[3]string]struct{}, initial)
	kept := drafts[:0]

	for _, d := range drafts {
		key := [3]string{d.record.Title, d.record.Company, d.record.Description}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, d)
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

type enrichStep struct {
	extractor *extract.Extractor
}

// newEnrich cleans text and extracts skills, level and years from the description.
func newEnrich(extractor *extract.Extractor) buildStep {
	return &enrichStep{extractor: extractor}
}

func (s *enrichStep) Name() string { return "enrich" }

func (s *enrichStep) Apply(ctx context.Context, drafts []draft) ([]draft, Step, error) {
	for i := range drafts {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, Step{}, err
			}
		}
		drafts[i].job = s.enrich(drafts[i].record)
	}

	return drafts, Step{Initial: len(drafts), Left: len(drafts)}, nil
}

func (s *enrichStep) enrich(r corpus.Record) Job {
	title := extract.CleanText(r.Title)
	description := extract.CleanText(r.Description)
	signals := s.extractor.Extract(description)

	return Job{
		SourceID:         r.ID,
		Title:            r.Title,
		Company:          r.Company,
		CompanyURL:       r.CompanyURL,
		Location:         orDefault(r.Location, DefaultLocation),
		ContractType:     orDefault(r.ContractType, DefaultContractType),
		WorkType:         r.WorkType,
		Description:      r.Description,
		CleanDescription: description,
		CombinedText:     CombinedText(title, description),
		Skills:           signals.Skills,
		ExperienceLevel:  signals.ExperienceLevel,
		YearsExperience:  signals.YearsExperience,
		URL:              r.URL,
		PostedTime:       r.PostedTime,
		PublishedAt:      r.PublishedAt,
		Category:         r.Category,
	}
}

// CombinedText is the searchable text of a posting. The title is repeated to weigh it more.
func CombinedText(title, description string) string {
	return title + ". " + title + ". " + description
}

type minLengthStep struct {
	minLen int
}

// newMinLength drops postings whose combined text has minLen characters or fewer.
func newMinLength(minLen int) buildStep {
	return &minLengthStep{minLen: minLen}
}

func (s *minLengthStep) Name() string { return "min_length" }

func (s *minLengthStep) Apply(_ context.Context, drafts []draft) ([]draft, Step, error) {
	initial := len(drafts)
	kept := drafts[:0]

	for _, d := range drafts {
		if utf8.RuneCountInString(d.job.CombinedText) > s.minLen {
			kept = append(kept, d)
		}
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
