package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/enrich"
	"github.com/user/ideascan/internal/notify"
	"github.com/user/ideascan/internal/pipeline"
	"github.com/user/ideascan/internal/sources"
)

var runPeriod string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scan",
	Long:  "Fetch new posts, extract and score ideas, write the report and send notifications. A period that already succeeded today is skipped.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := pipeline.NormalizePeriod(runPeriod)
		if err != nil {
			return err
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := db.NewStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		p, err := newPipeline(cfg, store, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := p.Run(ctx, period)
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		printResult(res)
		return nil
	},
}

// newPipeline wires the source, enricher and notifier from the config.
func newPipeline(cfg *config.Config, store *db.Store, logger *slog.Logger) (*pipeline.Pipeline, error) {
	enricher, err := enrich.FromConfig(cfg.Enrichment, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up enrichment: %w", err)
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if enricher != nil {
		opts = append(opts, pipeline.WithEnricher(enricher))
	}
	if n := notify.FromConfig(cfg, logger); n != nil {
		opts = append(opts, pipeline.WithNotifier(n))
	}

	source := sources.NewRedditSource(cfg.Reddit, logger)
	return pipeline.New(cfg, store, source, opts...), nil
}

func printResult(res *pipeline.Result) {
	fmt.Printf("Run %d (%s): %s\n", res.RunID, res.Period, res.Status)
	fmt.Printf("  %s\n", res.Message)
	if res.Status != db.RunSuccess {
		return
	}
	fmt.Printf("  Posts fetched:   %d\n", res.FetchedPosts)
	fmt.Printf("  Ideas extracted: %d\n", res.ExtractedIdeas)
	fmt.Printf("  Ideas in window: %d\n", res.WindowIdeas)
	fmt.Printf("  Report:          %s\n", res.ReportPath)
	fmt.Printf("  CSV:             %s\n", res.CSVPath)
	fmt.Printf("  Notified:        %t\n", res.Notified)
}

func init() {
	runCmd.Flags().StringVarP(&runPeriod, "period", "p", "daily", "Run period: daily or weekly")
	rootCmd.AddCommand(runCmd)
}
