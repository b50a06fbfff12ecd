package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/embedding"
	"github.com/spigell/job-recommender/internal/extract"
	"github.com/spigell/job-recommender/internal/index"
	"github.com/spigell/job-recommender/internal/logger"
)

const (
	DefaultMinTextLength = 50
	DefaultBatchSize     = 32
)

var ErrEmptyCatalog = errors.New("no job postings left to build a catalog")

// BuildConfig tunes the offline build.
type BuildConfig struct {
	Path          string `mapstructure:"path"`
	MinTextLength int    `mapstructure:"min-text-length"`
	BatchSize     int    `mapstructure:"batch-size"`
}

// Builder turns raw records into a Catalog in one sequential pass.
type Builder struct {
	extractor *extract.Extractor
	provider  embedding.Provider
	backend   index.Backend
	logger    *zap.Logger
	cfg       BuildConfig
	// OnStep, when set, receives the counts of every build step.
	OnStep func(name string, info Step)
}

func NewBuilder(extractor *extract.Extractor, provider embedding.Provider, backend index.Backend, log *zap.Logger, cfg BuildConfig) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if extractor == nil {
		extractor = extract.NewDefault()
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Builder{
		extractor: extractor,
		provider:  provider,
		backend:   backend,
		logger:    log,
		cfg:       cfg,
	}
}

// Build cleans, enriches, filters and embeds records and indexes the result.
func (b *Builder) Build(ctx context.Context, records []corpus.Record) (*Catalog, error) {
	start := time.Now()
	version := uuid.NewString()
	log := logger.WithFields(b.logger, logger.CatalogFields(version, b.backend.Name())...)

	drafts := make([]draft, len(records))
	for i, r := range records {
		drafts[i] = draft{record: r}
	}

	steps := []buildStep{
		newDedupe(),
		newEnrich(b.extractor),
		newMinLength(b.cfg.MinTextLength),
	}
	drafts, err := runSteps(ctx, log, steps, drafts, b.OnStep)
	if err != nil {
		return nil, fmt.Errorf("prepare jobs: %w", err)
	}
	if len(drafts) == 0 {
		return nil, ErrEmptyCatalog
	}

	jobs := make([]Job, len(drafts))
	texts := make([]string, len(drafts))
	for i, d := range drafts {
		d.job.ID = i
		jobs[i] = d.job
		texts[i] = d.job.CombinedText
	}

	vectors, err := b.embed(ctx, log, texts)
	if err != nil {
		return nil, fmt.Errorf("embed jobs: %w", err)
	}

	idx, blob, err := b.backend.Build(ctx, version, vectors)
	if err != nil {
		return nil, fmt.Errorf("build %s index: %w", b.backend.Name(), err)
	}

	meta := Meta{
		Version:    version,
		BuiltAt:    time.Now().UTC(),
		Model:      b.provider.Model(),
		Dimensions: b.provider.Dimensions(),
		Backend:    b.backend.Name(),
	}
	c, err := New(meta, jobs, vectors, idx, blob)
	if err != nil {
		return nil, err
	}

	log.Info("catalog built",
		zap.Int("jobs", c.Len()),
		zap.Int("records", len(records)),
		zap.Duration("took", time.Since(start)),
	)

	return c, nil
}

func (b *Builder) embed(ctx context.Context, log *zap.Logger, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	log = logger.WithFields(log, logger.EmbeddingFields("", b.provider.Model())...)

	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := b.provider.EncodeBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)

		log.Debug("embedded batch", zap.Int("done", end), zap.Int("total", len(texts)))
	}

	return vectors, nil
}
