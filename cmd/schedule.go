package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scans on the configured schedule",
	Long:  "Trigger daily and weekly scans from schedule.daily and schedule.weekly (cron, UTC) until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		run := func(ctx context.Context, period string) error {
			res, err := p.Run(ctx, period)
			if err != nil {
				return err
			}
			logger.Info("scheduled run finished", "period", period, "status", res.Status, "run_id", res.RunID)
			return nil
		}

		s, err := scheduler.New(ctx, cfg.Schedule, run, logger)
		if err != nil {
			return err
		}

		now := time.Now()
		for _, e := range s.Entries() {
			next, _ := scheduler.Next(e.Expr, now)
			fmt.Printf("%-6s %-14s next: %s\n", e.Period, e.Expr, next.Format("2006-01-02 15:04 UTC"))
		}

		s.Start()
		<-ctx.Done()
		fmt.Println("Stopping scheduler...")
		return s.Shutdown()
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
