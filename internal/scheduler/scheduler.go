// Package scheduler triggers daily and weekly scans on cron expressions
// evaluated in UTC.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"github.com/user/ideascan/internal/config"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// RunFunc performs one scan for a period.
type RunFunc func(ctx context.Context, period string) error

// Entry is one registered period and its expression.
type Entry struct {
	Period string
	Expr   string
}

type Scheduler struct {
	sched   gocron.Scheduler
	entries []Entry
	logger  *slog.Logger
}

// Entries lists the periods with a non-empty expression, daily first.
func Entries(cfg config.ScheduleConfig) []Entry {
	var out []Entry
	for _, e := range []Entry{{"daily", cfg.Daily}, {"weekly", cfg.Weekly}} {
		if e.Expr = strings.TrimSpace(e.Expr); e.Expr != "" {
			out = append(out, e)
		}
	}
	return out
}

// Next returns the first activation of expr strictly after from, in UTC.
func Next(expr string, from time.Time) (time.Time, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return s.Next(from.UTC()), nil
}

// New registers one job per configured period. At most one scan runs at a
// time; a trigger that fires while another scan is running waits for it.
func New(ctx context.Context, cfg config.ScheduleConfig, run RunFunc, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries := Entries(cfg)
	if len(entries) == 0 {
		return nil, fmt.Errorf("no schedule configured")
	}
	for _, e := range entries {
		if _, err := parser.Parse(e.Expr); err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", e.Period, e.Expr, err)
		}
	}

	sched, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLimitConcurrentJobs(1, gocron.LimitModeWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{sched: sched, entries: entries, logger: logger}
	for _, e := range entries {
		period := e.Period
		_, err := sched.NewJob(
			gocron.CronJob(e.Expr, false),
			gocron.NewTask(func() {
				s.trigger(ctx, run, period)
			}),
			gocron.WithName(period),
		)
		if err != nil {
			sched.Shutdown()
			return nil, fmt.Errorf("failed to register %s job: %w", period, err)
		}
	}
	return s, nil
}

// trigger runs one scan. Failures are logged so the scheduler keeps going.
func (s *Scheduler) trigger(ctx context.Context, run RunFunc, period string) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("scheduled run triggered", "period", period)
	if err := run(ctx, period); err != nil {
		s.logger.Error("scheduled run failed", "period", period, "error", err)
	}
}

func (s *Scheduler) Entries() []Entry {
	return s.entries
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
