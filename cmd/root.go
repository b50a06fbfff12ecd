package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-recommender/internal/catalog"
	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/embedding"
	"github.com/spigell/job-recommender/internal/index"
	"github.com/spigell/job-recommender/internal/recommend"
	"github.com/spigell/job-recommender/internal/scoring"
)

const (
	app       = "job-recommender"
	envPrefix = "JOB_RECOMMENDER"
)

type Config struct {
	Catalog   catalog.BuildConfig `mapstructure:"catalog"`
	Corpus    *CorpusConfig       `mapstructure:"corpus"`
	Embedding *EmbeddingConfig    `mapstructure:"embedding"`
	Index     *IndexConfig        `mapstructure:"index"`
	Scoring   *ScoringConfig      `mapstructure:"scoring"`
	Search    recommend.Config    `mapstructure:"search"`
	Extract   *ExtractConfig      `mapstructure:"extract"`
	// MetricsFile is a node_exporter textfile target. Empty disables metrics.
	MetricsFile string `mapstructure:"metrics-file"`
}

type CorpusConfig struct {
	// Format is one of csv, gold, xlsx, headhunter.
	Format     string            `mapstructure:"format"`
	Path       string            `mapstructure:"path"`
	Sheet      string            `mapstructure:"sheet"`
	HeadHunter *HeadHunterConfig `mapstructure:"headhunter"`
}

type HeadHunterConfig struct {
	APIURL       string              `mapstructure:"api-url"`
	TokenFile    string              `mapstructure:"token-file"`
	FetchDetails bool                `mapstructure:"fetch-details"`
	Search       corpus.SearchParams `mapstructure:"search"`
}

type EmbeddingConfig struct {
	embedding.Config `mapstructure:",squash"`
	APIKeyFile       string `mapstructure:"api-key-file"`
}

type IndexConfig struct {
	index.Config `mapstructure:",squash"`
	DSN          string `mapstructure:"dsn"`
	DSNFile      string `mapstructure:"dsn-file"`
}

type ScoringConfig struct {
	Weights scoring.Weights `mapstructure:"weights"`
}

type ExtractConfig struct {
	VocabularyFile string `mapstructure:"vocabulary-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-recommender ranks job postings against a candidate profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-recommender.yaml in current directory)")
	rootCmd.PersistentFlags().StringP("catalog", "c", "", "path to the catalog file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("catalog.path", rootCmd.PersistentFlags().Lookup("catalog"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	weights := scoring.DefaultWeights()
	search := recommend.DefaultConfig()

	viper.SetDefault("catalog.path", app+".db")
	viper.SetDefault("catalog.min-text-length", catalog.DefaultMinTextLength)
	viper.SetDefault("catalog.batch-size", catalog.DefaultBatchSize)
	viper.SetDefault("corpus.format", "csv")
	viper.SetDefault("embedding.provider", embedding.ProviderHashing)
	viper.SetDefault("embedding.dimensions", embedding.DefaultDimensions)
	viper.SetDefault("embedding.max-retries", 3)
	viper.SetDefault("index.backend", index.BackendFlat)
	viper.SetDefault("scoring.weights.semantic-similarity", weights.SemanticSimilarity)
	viper.SetDefault("scoring.weights.skills-match", weights.SkillsMatch)
	viper.SetDefault("scoring.weights.location-match", weights.LocationMatch)
	viper.SetDefault("scoring.weights.contract-type-match", weights.ContractTypeMatch)
	viper.SetDefault("scoring.weights.experience-match", weights.ExperienceMatch)
	viper.SetDefault("scoring.weights.morocco-priority", weights.MoroccoPriority)
	viper.SetDefault("search.top-k", search.TopK)
	viper.SetDefault("search.max-top-k", search.MaxTopK)
	viper.SetDefault("search.embed-timeout", search.EmbedTimeout)
	viper.SetDefault("search.search-timeout", search.SearchTimeout)
}

func initConfig() {
	// Config is not needed to print the version.
	if versionCmd.CalledAs() != "" {
		return
	}

	// .env is optional; it only feeds the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config the defaults are enough to run.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
