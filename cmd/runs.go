package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/ideascan/internal/db"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := db.NewStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		runs, err := store.ListRunLogs(runsLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			started := time.Unix(r.StartedUTC, 0).UTC().Format("2006-01-02 15:04")
			fmt.Printf("#%d %-6s %-16s %s  posts=%d extracted=%d window=%d notified=%t\n",
				r.ID, r.Period, r.Status, started, r.FetchedPosts, r.ExtractedIdeas, r.WindowIdeas, r.Notified)
			if r.Message != "" {
				fmt.Printf("   %s\n", r.Message)
			}
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
