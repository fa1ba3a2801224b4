// Package enrich re-ranks the best heuristic ideas with a language model
// assessment and blends the two scores.
package enrich

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/extractor"
)

const (
	heuristicWeight = 0.35
	modelWeight     = 0.65
	assessedTag     = "llm_assessed"
)

type Enricher struct {
	assessor      Assessor
	maxCandidates int
	concurrency   int
	logger        *slog.Logger
}

func NewEnricher(assessor Assessor, cfg config.EnrichmentConfig, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		assessor:      assessor,
		maxCandidates: max(cfg.MaxCandidates, 1),
		concurrency:   max(cfg.Concurrency, 1),
		logger:        logger,
	}
}

// FromConfig wires the configured provider into an Enricher. It returns nil
// when enrichment is disabled or has no credentials.
func FromConfig(cfg config.EnrichmentConfig, logger *slog.Logger) (*Enricher, error) {
	if !cfg.Active() {
		return nil, nil
	}
	completer, err := NewCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return NewEnricher(NewLLMAssessor(completer, cfg, logger), cfg, logger), nil
}

// Enrich assesses the top candidates and returns all ideas re-sorted by
// relevance. A candidate whose assessment fails is left as it was.
func (e *Enricher) Enrich(ctx context.Context, ideas []db.Idea, posts []db.Post) []db.Idea {
	if len(ideas) == 0 {
		return ideas
	}

	postByID := make(map[string]db.Post, len(posts))
	for _, p := range posts {
		postByID[p.ID] = p
	}

	sorted := append([]db.Idea(nil), ideas...)
	sortByRelevance(sorted)

	limit := min(e.maxCandidates, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := 0; i < limit; i++ {
		post, ok := postByID[sorted[i].PostID]
		if !ok {
			continue
		}
		i := i
		g.Go(func() error {
			assessment, err := e.assessor.Assess(gctx, post, sorted[i])
			if err != nil {
				e.logger.Warn("enrichment skipped", "post_id", post.ID, "error", err)
				return nil
			}
			sorted[i] = Merge(sorted[i], assessment)
			return nil
		})
	}
	// Workers never return errors.
	_ = g.Wait()

	sortByRelevance(sorted)
	return sorted
}

// Merge applies an assessment to an idea and returns the updated copy.
func Merge(idea db.Idea, a *Assessment) db.Idea {
	if a.Summary != "" {
		idea.ProblemSummary = a.Summary
	}
	if a.MonetizationHint != "" {
		idea.SolutionHint = a.MonetizationHint
	}

	profit := extractor.Round(a.ProfitScore, 2)
	confidence := extractor.Round(a.Confidence, 3)
	idea.LLMProfitScore = &profit
	idea.LLMConfidence = &confidence

	idea.RelevanceScore = extractor.Round(idea.RelevanceScore*heuristicWeight+(a.ProfitScore/10)*modelWeight, 3)

	tags := map[string]bool{assessedTag: true}
	for _, t := range idea.ReasonTags {
		tags[t] = true
	}
	for _, t := range a.Tags {
		tags[t] = true
	}
	merged := make([]string, 0, len(tags))
	for t := range tags {
		merged = append(merged, t)
	}
	sort.Strings(merged)
	idea.ReasonTags = merged

	return idea
}

func sortByRelevance(ideas []db.Idea) {
	sort.SliceStable(ideas, func(i, j int) bool {
		return ideas[i].RelevanceScore > ideas[j].RelevanceScore
	})
}
