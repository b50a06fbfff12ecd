package cmd

import (
	"context"
	"log"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/recommend"
)

var similarCmd = &cobra.Command{
	Use:   "similar JOB_ID",
	Short: "List jobs closest to the given job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		topK, _ := cmd.Flags().GetInt("top-k")
		withSession(args, false, func(ctx context.Context, s *session, id int) (any, error) {
			if topK <= 0 {
				topK = s.engine.DefaultTopK()
			}
			return s.engine.Similar(ctx, id, topK)
		})
	},
}

var jobCmd = &cobra.Command{
	Use:   "job JOB_ID",
	Short: "Print the full record of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withSession(args, false, func(_ context.Context, s *session, id int) (any, error) {
			return s.engine.JobDetails(id)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print catalog statistics",
	Run: func(cmd *cobra.Command, _ []string) {
		topN, _ := cmd.Flags().GetInt("top-n")
		withSession(nil, false, func(_ context.Context, s *session, _ int) (any, error) {
			return s.engine.Statistics(topN)
		})
	},
}

func init() {
	rootCmd.AddCommand(similarCmd, jobCmd, statsCmd)

	similarCmd.Flags().IntP("top-k", "n", 0, "number of similar jobs (default search.top-k)")
	statsCmd.Flags().IntP("top-n", "n", 0, "number of top skills (default 10)")
}

// withSession opens the catalog, runs fn and prints its result as JSON. A
// single argument, when given, is parsed as a job id.
func withSession(args []string, withProvider bool, fn func(ctx context.Context, s *session, id int) (any, error)) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	id := -1
	if len(args) > 0 {
		id, err = strconv.Atoi(args[0])
		if err != nil {
			logger.Fatal("job id must be an integer", zap.String("job_id", args[0]))
		}
	}

	s, err := openSession(ctx, logger, withProvider)
	if err != nil {
		logger.Fatal("starting", zap.Error(err))
	}

	if err := lookup(ctx, s, id, fn); err != nil {
		logger.Fatal("request failed", zap.Error(err), zap.Bool("timeout", recommend.IsTimeout(err)))
	}
}

// lookup runs fn, prints its result and closes the session.
func lookup(ctx context.Context, s *session, id int, fn func(ctx context.Context, s *session, id int) (any, error)) error {
	defer s.Close()

	out, err := fn(ctx, s, id)
	if err != nil {
		return err
	}
	return printJSON(out)
}
