// Package recommend answers recommendation, similarity and lookup requests
// against the active catalog.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/catalog"
	"github.com/spigell/job-recommender/internal/embedding"
	"github.com/spigell/job-recommender/internal/index"
	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/metrics"
	"github.com/spigell/job-recommender/internal/profile"
	"github.com/spigell/job-recommender/internal/scoring"
	"github.com/spigell/job-recommender/internal/utils"
)

const (
	DefaultTopK          = 10
	DefaultMaxTopK       = 50
	DefaultEmbedTimeout  = 30 * time.Second
	DefaultSearchTimeout = 10 * time.Second

	overfetchFactor = 2
	queryLogLength  = 120
)

const (
	OpRecommend  = "recommend"
	OpSimilar    = "similar"
	OpJobDetails = "job_details"
	OpStatistics = "statistics"
)

// Config is the search section of the configuration file.
type Config struct {
	TopK          int           `mapstructure:"top-k"`
	MaxTopK       int           `mapstructure:"max-top-k"`
	EmbedTimeout  time.Duration `mapstructure:"embed-timeout"`
	SearchTimeout time.Duration `mapstructure:"search-timeout"`
}

func DefaultConfig() Config {
	return Config{
		TopK:          DefaultTopK,
		MaxTopK:       DefaultMaxTopK,
		EmbedTimeout:  DefaultEmbedTimeout,
		SearchTimeout: DefaultSearchTimeout,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = def.MaxTopK
	}
	if c.TopK > c.MaxTopK {
		c.TopK = c.MaxTopK
	}
	return c
}

// Engine is safe for concurrent use. Each call reads the active catalog
// once and works on that snapshot.
type Engine struct {
	holder   *catalog.Holder
	provider embedding.Provider
	profiles *profile.Builder
	scorer   *scoring.Scorer
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg.withDefaults() }
}

func WithProfileBuilder(b *profile.Builder) Option {
	return func(e *Engine) {
		if b != nil {
			e.profiles = b
		}
	}
}

func NewEngine(holder *catalog.Holder, provider embedding.Provider, scorer *scoring.Scorer, opts ...Option) *Engine {
	if holder == nil {
		holder = catalog.NewHolder(nil)
	}

	e := &Engine{
		holder:   holder,
		provider: provider,
		profiles: profile.NewBuilder(nil),
		scorer:   scorer,
		cfg:      DefaultConfig(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Swap installs a new catalog for subsequent requests and returns the old one.
func (e *Engine) Swap(next *catalog.Catalog) *catalog.Catalog {
	prev := e.holder.Swap(next)
	if next != nil {
		e.metrics.CatalogLoaded(next.Version(), next.Len())
		e.logger.Info("catalog swapped", logger.CatalogFields(next.Version(), next.Meta().Backend)...)
	}
	return prev
}

// Catalog returns the active catalog or nil.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.holder.Load()
}

// Recommend ranks jobs for the query. At most TopK results are returned,
// all scoring at least MinScore, in descending score order.
func (e *Engine) Recommend(ctx context.Context, q Query) (results []Result, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveRequest(OpRecommend, time.Since(start), err) }()

	if err := q.Validate(); err != nil {
		return nil, err
	}

	cat := e.holder.Load()
	if cat == nil {
		return nil, ErrNoCatalog
	}

	k := e.topK(q.TopK)
	candidate := e.profiles.Build(q.Profile, q.DocumentText, q.Keywords)

	vec, err := e.embed(ctx, candidate.Text)
	if err != nil {
		return nil, err
	}

	fetch := overfetch(k, cat.Len())
	hits, err := e.search(ctx, cat.Index(), vec, fetch)
	if err != nil {
		return nil, err
	}
	e.metrics.Candidates(len(hits))

	results = make([]Result, 0, len(hits))
	for _, hit := range hits {
		job, ok := cat.Job(hit.Row)
		if !ok {
			continue
		}

		b := e.scorer.Score(&job, candidate.Skills, float64(hit.Score), q.Preferences)
		if b.Final < q.MinScore {
			continue
		}
		results = append(results, newResult(job, b, cat.Version()))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	e.logger.Debug("recommendations ranked",
		zap.String(logger.FieldCatalogVersion, cat.Version()),
		zap.String("query", utils.TruncateForLog(candidate.Text, queryLogLength)),
		zap.Int("candidate_skills", len(candidate.Skills)),
		zap.Int("fetched", len(hits)),
		zap.Int("returned", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return results, nil
}

// Similar returns up to k jobs closest to jobID by embedding alone. The job
// itself is never included and k <= 0 returns nothing.
func (e *Engine) Similar(ctx context.Context, jobID, k int) ([]SimilarJob, error) {
	return e.SimilarAt(ctx, "", jobID, k)
}

// SimilarAt is Similar pinned to a catalog version. An empty version accepts
// whichever catalog is active; any other version that is no longer active
// fails with ErrStale.
func (e *Engine) SimilarAt(ctx context.Context, version string, jobID, k int) (out []SimilarJob, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveRequest(OpSimilar, time.Since(start), err) }()

	cat, err := e.catalogAt(version)
	if err != nil {
		return nil, err
	}

	vec, ok := cat.Embedding(jobID)
	if !ok {
		return nil, &NotFoundError{ID: jobID, Len: cat.Len()}
	}

	if k <= 0 {
		return []SimilarJob{}, nil
	}
	if k > e.cfg.MaxTopK {
		k = e.cfg.MaxTopK
	}
	fetch := k + 1
	if fetch > cat.Len() {
		fetch = cat.Len()
	}

	hits, err := e.search(ctx, cat.Index(), vec, fetch)
	if err != nil {
		return nil, err
	}

	out = make([]SimilarJob, 0, k)
	for _, hit := range hits {
		if hit.Row == jobID {
			continue
		}
		job, ok := cat.Job(hit.Row)
		if !ok {
			continue
		}
		out = append(out, SimilarJob{Job: job, Similarity: float64(hit.Score)})
		if len(out) == k {
			break
		}
	}

	return out, nil
}

// JobDetails returns the full record for jobID.
func (e *Engine) JobDetails(jobID int) (*catalog.Job, error) {
	return e.JobDetailsAt("", jobID)
}

// JobDetailsAt is JobDetails pinned to a catalog version, as SimilarAt.
func (e *Engine) JobDetailsAt(version string, jobID int) (job *catalog.Job, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveRequest(OpJobDetails, time.Since(start), err) }()

	cat, err := e.catalogAt(version)
	if err != nil {
		return nil, err
	}

	j, ok := cat.Job(jobID)
	if !ok {
		return nil, &NotFoundError{ID: jobID, Len: cat.Len()}
	}
	return &j, nil
}

// Statistics aggregates the active catalog. topN <= 0 uses catalog.DefaultTopSkills.
func (e *Engine) Statistics(topN int) (stats *catalog.Statistics, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveRequest(OpStatistics, time.Since(start), err) }()

	cat := e.holder.Load()
	if cat == nil {
		return nil, ErrNoCatalog
	}

	s := cat.Stats(topN)
	return &s, nil
}

// DefaultTopK is the configured result count used when a request names none.
func (e *Engine) DefaultTopK() int {
	return e.cfg.TopK
}

func (e *Engine) catalogAt(version string) (*catalog.Catalog, error) {
	cat := e.holder.Load()
	if cat == nil {
		return nil, ErrNoCatalog
	}
	if version != "" && cat.Version() != version {
		return nil, &StaleError{Want: version, Active: cat.Version()}
	}
	return cat, nil
}

func (e *Engine) topK(k int) int {
	if k <= 0 {
		return e.cfg.TopK
	}
	if k > e.cfg.MaxTopK {
		return e.cfg.MaxTopK
	}
	return k
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, e.cfg.EmbedTimeout)
	defer cancel()

	vec, err := e.provider.Encode(ctx, text)
	if err != nil {
		return nil, e.stageError(ctx, StageEmbed, err)
	}
	return vec, nil
}

func (e *Engine) search(ctx context.Context, idx index.Index, vec []float32, k int) ([]index.Hit, error) {
	ctx, cancel := withTimeout(ctx, e.cfg.SearchTimeout)
	defer cancel()

	hits, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, e.stageError(ctx, StageSearch, err)
	}
	return hits, nil
}

func (e *Engine) stageError(ctx context.Context, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}

	se := &StageError{Stage: stage, Err: err}
	timeout := IsTimeout(se)
	e.metrics.StageError(stage, timeout)
	e.logger.Warn("stage failed",
		zap.String("stage", stage),
		zap.Bool("timeout", timeout),
		zap.Error(err),
	)

	return se
}

// overfetch widens the candidate pool before re-ranking, bounded by the corpus size.
func overfetch(k, n int) int {
	fetch := overfetchFactor * k
	if fetch > n {
		return n
	}
	return fetch
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
