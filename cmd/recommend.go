package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/export"
	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/recommend"
	"github.com/spigell/job-recommender/internal/scoring"
)

const (
	PromptDetails = "Show details"
	PromptSimilar = "Show similar jobs"
	PromptExport  = "Export results to xlsx"
	PromptBack    = "back"
	PromptExit    = "exit"
)

var errExit = errors.New("exit requested")

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend jobs for a candidate profile",
	Run: func(cmd *cobra.Command, _ []string) {
		runRecommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("profile", "p", "", "free-text candidate profile")
	recommendCmd.Flags().String("document", "", "file with text already extracted from a CV")
	recommendCmd.Flags().StringSliceP("keywords", "k", nil, "extra keywords, comma separated")
	recommendCmd.Flags().String("location", "", "preferred location")
	recommendCmd.Flags().String("contract", "", "preferred contract type")
	recommendCmd.Flags().String("experience", "", "candidate level: junior, mid, senior or manager")
	recommendCmd.Flags().IntP("top-k", "n", 0, "number of results (default search.top-k)")
	recommendCmd.Flags().Float64("min-score", 0, "drop results scoring below this value")
	recommendCmd.Flags().BoolP("interactive", "i", false, "browse results interactively")
	recommendCmd.Flags().String("export-xlsx", "", "write results to an xlsx workbook")
}

func runRecommend(cmd *cobra.Command) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	query, err := queryFromFlags(cmd)
	if err != nil {
		logger.Fatal("reading the query", zap.Error(err))
	}
	if err := query.Validate(); err != nil {
		logger.Fatal("invalid query", zap.Error(err),
			zap.String("hint", "pass --profile, --document or --keywords"),
		)
	}

	s, err := openSession(ctx, logger, true)
	if err != nil {
		logger.Fatal("starting", zap.Error(err))
	}

	if err := serveRecommend(ctx, cmd, s, logger, query); err != nil && !errors.Is(err, errExit) {
		logger.Fatal("recommend failed", zap.Error(err), zap.Bool("timeout", recommend.IsTimeout(err)))
	}
}

// serveRecommend runs the query and prints, exports or browses the results.
// The session is closed before it returns.
func serveRecommend(ctx context.Context, cmd *cobra.Command, s *session, logger *zap.Logger, query recommend.Query) error {
	defer s.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := s.engine.Recommend(ctx, query)
	if err != nil {
		return fmt.Errorf("recommending: %w", err)
	}
	logger.Info("recommendations ready", zap.Int("count", len(results)))

	if path, _ := cmd.Flags().GetString("export-xlsx"); path != "" {
		if err := export.Recommendations(results, query, path); err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		logger.Info("results exported", zap.String("filename", path))
	}

	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive {
		if err := printJSON(results); err != nil {
			return fmt.Errorf("printing results: %w", err)
		}
		return nil
	}

	s.watch(ctx)
	return browse(ctx, s, logger, query, results)
}

func queryFromFlags(cmd *cobra.Command) (recommend.Query, error) {
	flags := cmd.Flags()

	profileText, _ := flags.GetString("profile")
	keywords, _ := flags.GetStringSlice("keywords")
	topK, _ := flags.GetInt("top-k")
	minScore, _ := flags.GetFloat64("min-score")
	location, _ := flags.GetString("location")
	contract, _ := flags.GetString("contract")
	experience, _ := flags.GetString("experience")

	var document string
	if path, _ := flags.GetString("document"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return recommend.Query{}, fmt.Errorf("reading document: %w", err)
		}
		document = string(data)
	}

	return recommend.Query{
		Profile:      profileText,
		DocumentText: document,
		Keywords:     keywords,
		Preferences: scoring.Preferences{
			Location:        location,
			ContractType:    contract,
			ExperienceLevel: experience,
		},
		TopK:     topK,
		MinScore: minScore,
	}, nil
}

// browse lets the user pick a result and act on it until exit. The list is
// re-ranked when the catalog it came from is replaced.
func browse(ctx context.Context, s *session, logger *zap.Logger, query recommend.Query, results []recommend.Result) error {
	for {
		if stale(s, results) {
			refreshed, err := refresh(ctx, s, logger, query)
			if err != nil {
				return err
			}
			results = refreshed
		}

		items := make([]string, 0, len(results)+2)
		for _, r := range results {
			items = append(items, fmt.Sprintf("%d %.3f %s / %s / %s",
				r.Job.ID, r.Score, r.Job.Title, r.Job.Company, r.Job.Location,
			))
		}
		items = append(items, PromptExport, PromptExit)

		selector := promptui.Select{
			Label: "Choose a job and press ENTER",
			Items: items,
			Size:  15,
		}

		idx, selected, err := selector.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptExit:
			return errExit
		case PromptExport:
			if err := exportPrompt(results, query, logger); err != nil {
				return err
			}
		default:
			err := jobActions(ctx, s, logger, results[idx])
			if errors.Is(err, recommend.ErrStale) {
				logger.Warn("catalog changed while browsing", zap.Error(err))
				refreshed, err := refresh(ctx, s, logger, query)
				if err != nil {
					return err
				}
				results = refreshed
				continue
			}
			if err != nil {
				return err
			}
		}
	}
}

// stale reports whether results were ranked on a catalog that is no longer active.
func stale(s *session, results []recommend.Result) bool {
	if len(results) == 0 {
		return false
	}
	active := s.engine.Catalog()
	return active != nil && active.Version() != results[0].CatalogVersion
}

func refresh(ctx context.Context, s *session, log *zap.Logger, query recommend.Query) ([]recommend.Result, error) {
	results, err := s.engine.Recommend(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("refreshing results: %w", err)
	}

	fields := []zap.Field{zap.Int("count", len(results))}
	if len(results) > 0 {
		fields = append(fields, zap.String(logger.FieldCatalogVersion, results[0].CatalogVersion))
	}
	log.Info("results refreshed", fields...)
	return results, nil
}

func jobActions(ctx context.Context, s *session, logger *zap.Logger, r recommend.Result) error {
	actions := promptui.Select{
		Label: fmt.Sprintf("%s (%s)", r.Job.Title, r.Job.Company),
		Items: []string{PromptDetails, PromptSimilar, PromptBack},
	}

	_, action, err := actions.Run()
	if err != nil {
		return err
	}

	switch action {
	case PromptDetails:
		job, err := s.engine.JobDetailsAt(r.CatalogVersion, r.Job.ID)
		if errors.Is(err, recommend.ErrStale) {
			return err
		}
		if err != nil {
			logger.Warn("job details", zap.Error(err))
			return nil
		}
		pretty, _ := json.MarshalIndent(struct {
			Job       any               `json:"job"`
			Breakdown scoring.Breakdown `json:"breakdown"`
		}{job, r.Breakdown}, "", "  ")
		fmt.Println(string(pretty))
	case PromptSimilar:
		similar, err := s.engine.SimilarAt(ctx, r.CatalogVersion, r.Job.ID, s.engine.DefaultTopK())
		if errors.Is(err, recommend.ErrStale) {
			return err
		}
		if err != nil {
			logger.Warn("similar jobs", zap.Error(err))
			return nil
		}
		for _, sj := range similar {
			fmt.Printf("%d %.3f %s / %s / %s\n", sj.Job.ID, sj.Similarity, sj.Job.Title, sj.Job.Company, sj.Job.Location)
		}
	}

	return nil
}

func exportPrompt(results []recommend.Result, query recommend.Query, logger *zap.Logger) error {
	p := promptui.Prompt{
		Label:   "Workbook path",
		Default: "recommendations.xlsx",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("path is required")
			}
			return nil
		},
	}

	path, err := p.Run()
	if err != nil {
		return err
	}

	if err := export.Recommendations(results, query, path); err != nil {
		logger.Warn("exporting", zap.Error(err))
		return nil
	}
	logger.Info("results exported", zap.String("filename", path))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
