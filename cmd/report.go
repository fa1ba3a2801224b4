package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/pipeline"
	"github.com/user/ideascan/internal/report"
)

var (
	reportPeriod string
	reportHours  int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a report from stored ideas",
	Long:  "Write the Markdown report and CSV for ideas already in the database, without fetching or notifying.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := pipeline.NormalizePeriod(reportPeriod)
		if err != nil {
			return err
		}

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if reportHours > 0 {
			cfg.LookbackHours = reportHours
		}

		store, err := db.NewStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		now := time.Now().UTC()
		ideas, err := store.IdeasSince(now.Unix() - cfg.LookbackSeconds())
		if err != nil {
			return fmt.Errorf("failed to load ideas: %w", err)
		}

		csvPath, reportPath := pipeline.ArtifactPaths(cfg.OutputDir, period, now)

		if err := report.WriteCSV(ideas, csvPath); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		if err := report.WriteText(report.BuildMarkdown(ideas, period, now, cfg.ReportTopN), reportPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}

		fmt.Printf("%d ideas from the last %d hours\n", len(ideas), cfg.LookbackHours)
		fmt.Printf("  Report: %s\n", reportPath)
		fmt.Printf("  CSV:    %s\n", csvPath)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportPeriod, "period", "p", "daily", "Report period: daily or weekly")
	reportCmd.Flags().IntVar(&reportHours, "hours", 0, "Window in hours (default: lookback_hours)")
	rootCmd.AddCommand(reportCmd)
}
