package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/catalog"
	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/metrics"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the job catalog from a corpus source",
	Run: func(_ *cobra.Command, _ []string) {
		build()
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("format", "f", "", "corpus format: csv, gold, xlsx or headhunter")
	buildCmd.Flags().StringP("source", "s", "", "corpus file or directory")

	viper.BindPFlag("corpus.format", buildCmd.Flags().Lookup("format"))
	viper.BindPFlag("corpus.path", buildCmd.Flags().Lookup("source"))
}

func build() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the catalog build", zap.String("version", version))

	var rec *metrics.Recorder
	if config.MetricsFile != "" {
		rec = metrics.NewRecorder()
		defer func() {
			if err := rec.WriteTextfile(config.MetricsFile); err != nil {
				logger.Warn("writing metrics", zap.Error(err))
			}
		}()
	}

	source, err := newSource(config, logger)
	if err != nil {
		logger.Fatal("preparing the corpus source", zap.Error(err))
	}

	start := time.Now()
	records, err := source.Load(ctx)
	if err != nil {
		logger.Fatal("loading the corpus", zap.String("source", source.Name()), zap.Error(err))
	}
	logger.Info("corpus loaded",
		zap.String("source", source.Name()),
		zap.Int("records", len(records)),
		zap.Duration("took", time.Since(start)),
	)

	extractor, err := newExtractor(config)
	if err != nil {
		logger.Fatal("loading the skill vocabulary", zap.Error(err))
	}

	provider, err := newProvider(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the embedding provider", zap.Error(err))
	}

	backend, closeBackend, err := newBackend(config)
	if err != nil {
		logger.Fatal("creating the index backend", zap.Error(err))
	}
	defer closeBackend()

	builder := catalog.NewBuilder(extractor, provider, backend, logger, config.Catalog)
	builder.OnStep = func(name string, info catalog.Step) {
		rec.BuildStep(name, info.Left, info.Dropped)
	}

	cat, err := builder.Build(ctx, records)
	if err != nil {
		logger.Fatal("building the catalog", zap.Error(err))
	}

	if err := catalog.Save(ctx, config.Catalog.Path, cat); err != nil {
		logger.Fatal("saving the catalog", zap.Error(err))
	}
	rec.CatalogLoaded(cat.Version(), cat.Len())

	logger.Info("catalog saved",
		zap.String("path", config.Catalog.Path),
		zap.String("catalog_version", cat.Version()),
		zap.Int("jobs", cat.Len()),
	)
}
