package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/catalog"
	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/embedding"
	"github.com/spigell/job-recommender/internal/extract"
	"github.com/spigell/job-recommender/internal/index"
	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/metrics"
	"github.com/spigell/job-recommender/internal/profile"
	"github.com/spigell/job-recommender/internal/recommend"
	"github.com/spigell/job-recommender/internal/scoring"
	"github.com/spigell/job-recommender/internal/secrets"
)

// apiKeyEnv maps providers to the environment variable holding their key.
var apiKeyEnv = map[string]string{
	embedding.ProviderGemini: "GEMINI_API_KEY",
	embedding.ProviderOpenAI: "OPENAI_API_KEY",
}

func newExtractor(cfg *Config) (*extract.Extractor, error) {
	if cfg.Extract == nil || strings.TrimSpace(cfg.Extract.VocabularyFile) == "" {
		return extract.NewDefault(), nil
	}

	vocab, err := extract.LoadVocabulary(cfg.Extract.VocabularyFile)
	if err != nil {
		return nil, err
	}
	return extract.New(vocab), nil
}

func newProvider(ctx context.Context, cfg *Config, log *zap.Logger) (embedding.Provider, error) {
	if cfg.Embedding == nil {
		return nil, errors.New("embedding configuration is required")
	}

	ec := cfg.Embedding.Config
	name := strings.ToLower(strings.TrimSpace(ec.Provider))

	if env, ok := apiKeyEnv[name]; ok {
		key, err := secrets.Load(secrets.Source{
			Name: name + " api key",
			File: cfg.Embedding.APIKeyFile,
			Env:  env,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set embedding.api-key-file or %s)", err, env)
		}
		ec.APIKey = key
	}

	provider, err := embedding.New(ctx, logger.WithFields(log, logger.EmbeddingFields(name, ec.Model)...), ec)
	if err != nil {
		return nil, err
	}

	return provider, nil
}

func newBackend(cfg *Config) (index.Backend, func() error, error) {
	if cfg.Index == nil {
		return index.NewFlatBackend(0), func() error { return nil }, nil
	}

	ic := cfg.Index.Config
	if strings.EqualFold(strings.TrimSpace(ic.Backend), index.BackendPGVector) {
		dsn, err := secrets.Load(secrets.Source{
			Name:  "pgvector dsn",
			File:  cfg.Index.DSNFile,
			Value: cfg.Index.DSN,
			Env:   envPrefix + "_INDEX_DSN",
		})
		if err != nil {
			return nil, nil, err
		}
		ic.DSN = dsn
	}

	return index.NewBackend(ic)
}

func newSource(cfg *Config, log *zap.Logger) (corpus.Source, error) {
	if cfg.Corpus == nil {
		return nil, errors.New("corpus configuration is required")
	}

	c := cfg.Corpus
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "csv", "":
		return corpus.NewCSV(c.Path), nil
	case "gold":
		return corpus.NewGold(c.Path), nil
	case "xlsx":
		return corpus.NewXLSX(c.Path, c.Sheet), nil
	case "headhunter":
		hh := c.HeadHunter
		if hh == nil {
			hh = &HeadHunterConfig{}
		}

		var token string
		if hh.TokenFile != "" {
			t, err := secrets.Load(secrets.Source{Name: "headhunter token", File: hh.TokenFile})
			if err != nil {
				return nil, err
			}
			token = t
		}

		source := corpus.NewHeadHunter(log, hh.APIURL, token, hh.Search)
		source.FetchDetails = hh.FetchDetails
		return source, nil
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", c.Format)
	}
}

func newScorer(cfg *Config) (*scoring.Scorer, error) {
	weights := scoring.DefaultWeights()
	if cfg.Scoring != nil {
		weights = cfg.Scoring.Weights
	}
	return scoring.New(weights)
}

// session is everything a query command needs.
type session struct {
	config   *Config
	logger   *zap.Logger
	metrics  *metrics.Recorder
	holder   *catalog.Holder
	backend  index.Backend
	engine   *recommend.Engine
	closeFns []func() error
}

// openSession loads the catalog and wires the engine around it. When
// withProvider is false, operations that embed text are unavailable.
func openSession(ctx context.Context, log *zap.Logger, withProvider bool) (*session, error) {
	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}

	s := &session{config: config, logger: log}
	if config.MetricsFile != "" {
		s.metrics = metrics.NewRecorder()
	}

	backend, closeBackend, err := newBackend(config)
	if err != nil {
		return nil, fmt.Errorf("index backend: %w", err)
	}
	s.backend = backend
	s.closeFns = append(s.closeFns, closeBackend)

	cat, err := catalog.Load(ctx, config.Catalog.Path, backend)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	log.Info("catalog loaded",
		append(logger.CatalogFields(cat.Version(), cat.Meta().Backend),
			zap.Int("jobs", cat.Len()),
			zap.String("model", cat.Meta().Model),
		)...,
	)

	var provider embedding.Provider
	if withProvider {
		provider, err = newProvider(ctx, config, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		if provider.Model() != cat.Meta().Model || provider.Dimensions() != cat.Meta().Dimensions {
			log.Warn("embedding model differs from the catalog",
				zap.String("catalog_model", cat.Meta().Model),
				zap.String("provider_model", provider.Model()),
				zap.Int("catalog_dimensions", cat.Meta().Dimensions),
				zap.Int("provider_dimensions", provider.Dimensions()),
			)
		}
	}

	extractor, err := newExtractor(config)
	if err != nil {
		s.Close()
		return nil, err
	}

	scorer, err := newScorer(config)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.holder = catalog.NewHolder(nil)
	s.engine = recommend.NewEngine(s.holder, provider, scorer,
		recommend.WithConfig(config.Search),
		recommend.WithLogger(log),
		recommend.WithMetrics(s.metrics),
		recommend.WithProfileBuilder(profile.NewBuilder(extractor)),
	)
	s.engine.Swap(cat)

	return s, nil
}

// watch hot-swaps the catalog when the file is rebuilt until ctx is done.
func (s *session) watch(ctx context.Context) {
	load := func(ctx context.Context) (*catalog.Catalog, error) {
		return catalog.Load(ctx, s.config.Catalog.Path, s.backend)
	}

	w := catalog.NewWatcher(s.config.Catalog.Path, s.holder, load, s.logger)
	w.OnSwap = func(next *catalog.Catalog) {
		s.metrics.CatalogLoaded(next.Version(), next.Len())
	}

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("catalog watcher stopped", zap.Error(err))
		}
	}()
}

func (s *session) Close() {
	if err := s.metrics.WriteTextfile(s.config.MetricsFile); err != nil {
		s.logger.Warn("writing metrics", zap.Error(err))
	}
	for _, fn := range s.closeFns {
		if err := fn(); err != nil {
			s.logger.Warn("closing", zap.Error(err))
		}
	}
}
