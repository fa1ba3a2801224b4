// Package pipeline runs one incremental scan: fetch, score, enrich,
// persist, report and notify, with the outcome recorded in the run log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/enrich"
	"github.com/user/ideascan/internal/extractor"
	"github.com/user/ideascan/internal/logging"
	"github.com/user/ideascan/internal/notify"
	"github.com/user/ideascan/internal/report"
	"github.com/user/ideascan/internal/sources"
)

var ErrInvalidPeriod = errors.New("period must be either 'daily' or 'weekly'")

const (
	dayLayout   = "2006-01-02"
	stampLayout = "20060102_150405"
)

// Result describes the outcome of one run.
type Result struct {
	RunID          int64
	Period         string
	Status         db.RunStatus
	FetchedPosts   int
	ExtractedIdeas int
	WindowIdeas    int
	StartedUTC     int64
	FinishedUTC    int64
	LookbackFloor  int64
	CSVPath        string
	ReportPath     string
	Notified       bool
	Message        string
}

type Pipeline struct {
	cfg      *config.Config
	store    *db.Store
	source   sources.Source
	enricher *enrich.Enricher
	notifier notify.Notifier
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Pipeline)

func WithEnricher(e *enrich.Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func New(cfg *config.Config, store *db.Store, source sources.Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		store:  store,
		source: source,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NormalizePeriod lower-cases and validates a period name.
func NormalizePeriod(period string) (string, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period != "daily" && period != "weekly" {
		return "", ErrInvalidPeriod
	}
	return period, nil
}

// Run performs one scan for the period. A run that already succeeded on the
// same UTC day is recorded as skipped and does no work. Any failure after
// the run was started is recorded before the error is returned.
func (p *Pipeline) Run(ctx context.Context, period string) (*Result, error) {
	period, err := NormalizePeriod(period)
	if err != nil {
		return nil, err
	}

	started := p.now().UTC()
	res := &Result{
		Period:     period,
		StartedUTC: started.Unix(),
	}
	day := started.Format(dayLayout)
	lookback := p.cfg.LookbackSeconds()

	runID, err := p.store.StartRun(period, day, res.StartedUTC)
	if err != nil {
		return nil, err
	}
	res.RunID = runID
	log := logging.WithRun(p.logger, runID, period)

	// The check and the eventual success record are not atomic. Two
	// overlapping invocations for the same day can both pass this check;
	// runs are expected to be serialized by the caller.
	done, err := p.store.HasSuccessfulRunOnDay(period, day)
	if err != nil {
		return p.fail(log, res, err)
	}
	if done {
		res.Status = db.RunSkippedSameDay
		res.Message = fmt.Sprintf("Skipped duplicate %s run for UTC day %s.", period, day)
		res.FinishedUTC = p.now().UTC().Unix()
		if err := p.store.FinishRun(runID, db.RunFinish{
			Status:      res.Status,
			FinishedUTC: res.FinishedUTC,
			Message:     res.Message,
		}); err != nil {
			return nil, err
		}
		log.Info("run skipped", "day", day)
		return res, nil
	}

	res.LookbackFloor = res.StartedUTC - lookback
	latest, err := p.store.LatestSuccessfulRun(period)
	if err != nil {
		return p.fail(log, res, err)
	}
	if latest != nil && latest.FinishedUTC != nil && res.StartedUTC-*latest.FinishedUTC <= lookback {
		res.LookbackFloor = *latest.FinishedUTC
	}
	log.Info("run started", "day", day, "lookback_floor", res.LookbackFloor)

	if err := p.scan(ctx, log, res, started); err != nil {
		return p.fail(log, res, err)
	}

	res.Status = db.RunSuccess
	res.FinishedUTC = p.now().UTC().Unix()
	res.Message = "Success. Lookback started at " + time.Unix(res.LookbackFloor, 0).UTC().Format("2006-01-02 15:04:05 UTC")
	if err := p.store.FinishRun(runID, db.RunFinish{
		Status:         res.Status,
		FinishedUTC:    res.FinishedUTC,
		FetchedPosts:   res.FetchedPosts,
		ExtractedIdeas: res.ExtractedIdeas,
		WindowIdeas:    res.WindowIdeas,
		Notified:       res.Notified,
		Message:        res.Message,
	}); err != nil {
		return nil, err
	}

	log.Info("run finished",
		"fetched_posts", res.FetchedPosts,
		"extracted_ideas", res.ExtractedIdeas,
		"window_ideas", res.WindowIdeas,
		"notified", res.Notified,
	)
	return res, nil
}

func (p *Pipeline) scan(ctx context.Context, log *slog.Logger, res *Result, started time.Time) error {
	posts, err := p.fetchAll(ctx, res.LookbackFloor)
	if err != nil {
		return err
	}

	if err := p.store.UpsertPosts(posts, res.StartedUTC); err != nil {
		return fmt.Errorf("failed to store posts: %w", err)
	}

	ideas := extractor.ExtractIdeas(posts, p.cfg.Scoring)
	if p.enricher != nil && len(ideas) > 0 {
		ideas = p.enricher.Enrich(ctx, ideas, posts)
	}
	if err := p.store.UpsertIdeas(ideas, res.StartedUTC); err != nil {
		return fmt.Errorf("failed to store ideas: %w", err)
	}

	window, err := p.store.IdeasSince(res.LookbackFloor)
	if err != nil {
		return fmt.Errorf("failed to load idea window: %w", err)
	}

	res.FetchedPosts = len(posts)
	res.ExtractedIdeas = len(ideas)
	res.WindowIdeas = len(window)

	csvPath, reportPath := ArtifactPaths(p.cfg.OutputDir, res.Period, started)

	if err := report.WriteCSV(window, csvPath); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	content := report.BuildMarkdown(window, res.Period, started, p.cfg.ReportTopN)
	if err := report.WriteText(content, reportPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	res.CSVPath = csvPath
	res.ReportPath = reportPath

	if p.notifier == nil {
		return nil
	}
	subject := fmt.Sprintf("Reddit Ideas %s Report", report.Title(res.Period))
	if err := p.notifier.Send(ctx, subject, Summary(res), reportPath); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	res.Notified = true
	log.Info("notification sent", "channel", p.notifier.Name())
	return nil
}

// ArtifactPaths returns the CSV and Markdown report paths for a run of the
// period started at the given time.
func ArtifactPaths(outputDir, period string, started time.Time) (csvPath, reportPath string) {
	stamp := started.UTC().Format(stampLayout)
	csvPath = filepath.Join(outputDir, fmt.Sprintf("ideas_%s_%s.csv", period, stamp))
	reportPath = filepath.Join(outputDir, fmt.Sprintf("report_%s_%s.md", period, stamp))
	return csvPath, reportPath
}

// fetchAll fetches every configured forum. Results keep the configured
// forum order regardless of how many fetches run at once.
func (p *Pipeline) fetchAll(ctx context.Context, floor int64) ([]db.Post, error) {
	forums := p.cfg.Forums
	results := make([][]db.Post, len(forums))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Reddit.Concurrency, 1))
	for i, forum := range forums {
		i, forum := i, forum
		g.Go(func() error {
			posts, err := p.source.FetchSince(gctx, forum, floor, p.cfg.MaxPostsPerForum)
			if err != nil {
				return err
			}
			p.logger.Debug("fetched forum", "forum", forum, "posts", len(posts))
			results[i] = posts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var posts []db.Post
	for _, r := range results {
		posts = append(posts, r...)
	}
	return posts, nil
}

// fail records the run as failed and returns err, joined with any error
// from recording the failure.
func (p *Pipeline) fail(log *slog.Logger, res *Result, err error) (*Result, error) {
	res.Status = db.RunFailed
	res.FinishedUTC = p.now().UTC().Unix()
	res.FetchedPosts, res.ExtractedIdeas, res.WindowIdeas = 0, 0, 0
	res.Notified = false
	res.Message = err.Error()

	log.Error("run failed", "error", err)
	if ferr := p.store.FinishRun(res.RunID, db.RunFinish{
		Status:      res.Status,
		FinishedUTC: res.FinishedUTC,
		Message:     res.Message,
	}); ferr != nil {
		return res, errors.Join(err, ferr)
	}
	return res, err
}

// Summary is the notification body for a finished scan.
func Summary(res *Result) string {
	return fmt.Sprintf("Collected ideas since %s.\nPosts checked: %d.\nNewly extracted in this run: %d.\nReport: %s",
		time.Unix(res.LookbackFloor, 0).UTC().Format("2006-01-02T15:04:05-07:00"),
		res.FetchedPosts,
		res.ExtractedIdeas,
		filepath.Base(res.ReportPath),
	)
}
