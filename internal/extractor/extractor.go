// Package extractor scores forum posts for business-idea potential and turns
// the ones above the threshold into ideas. Everything here is pure.
package extractor

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/db"
)

const maxSummaryLen = 220

var (
	painSignals         = []string{"problem", "issue", "frustrat", "pain", "manual", "slow", "time-consuming", "stuck"}
	solutionSignals     = []string{"automate", "tool", "app", "website", "script", "plugin", "bot", "saas"}
	monetizationSignals = []string{"passive income", "subscription", "monetiz", "affiliate", "mrr", "side hustle"}
	discussionSignals   = []string{"discussion", "idea", "feedback"}

	tokenPattern    = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_+-]*`)
	sentencePattern = regexp.MustCompile(`[.!?\n]+`)
)

type hintRule struct {
	markers []string
	hint    string
}

const (
	monetizationHint = "Test a lightweight SaaS or template product with recurring pricing."
	fallbackHint     = "Validate demand with a small automation tool and a narrow landing page."
)

var hintRules = []hintRule{
	{
		markers: []string{"freelance", "client", "proposal", "invoice"},
		hint:    "Build a workflow helper for freelancers with automation and reporting.",
	},
	{
		markers: []string{"vibe coding", "coding agent", "prompt", "ai tool"},
		hint:    "Create an AI-assisted coding utility focused on one repetitive task.",
	},
	{
		markers: []string{"team", "manager", "meeting", "calendar"},
		hint:    "Package this pain point into a micro-tool that reduces daily coordination work.",
	},
}

// ScorePost returns the heuristic relevance score of a post and the sorted,
// deduplicated reason tags that explain it.
func ScorePost(post db.Post, cfg config.ScoringConfig) (float64, []string) {
	text := strings.ToLower(post.Title + "\n" + post.Body)
	var score float64
	tags := map[string]bool{}

	if hits := countHits(text, cfg.IncludeKeywords); hits > 0 {
		score += math.Min(float64(hits)*0.45, 3.0)
		tags["keyword_match"] = true
	}
	if hits := countHits(text, cfg.ExcludeKeywords); hits > 0 {
		score -= math.Min(float64(hits)*0.9, 2.5)
		tags["noise_signal"] = true
	}

	if containsAny(text, painSignals) {
		score += 0.9
		tags["pain_point"] = true
	}
	if containsAny(text, solutionSignals) {
		score += 0.9
		tags["solution_possible"] = true
	}
	if containsAny(text, monetizationSignals) {
		score += 1.1
		tags["monetization"] = true
	}

	score += math.Min(math.Log10(float64(max(post.NumComments, 1))), 1.0) * 0.5
	score += math.Min(math.Log10(float64(max(post.Upvotes, 1))), 2.0) * 0.35

	if len(tokenPattern.FindAllString(strings.ToLower(post.Title), -1)) >= 6 {
		score += 0.2
	}
	if strings.Contains(post.Title, "?") {
		score += 0.25
		tags["question"] = true
	}
	if containsAny(text, discussionSignals) {
		score += 0.15
	}

	if len(tags) == 0 {
		tags["low_signal"] = true
	}

	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return score, out
}

// ExtractIdeas scores every post and keeps those at or above the minimum
// score, best first. Ties keep the order the posts were given in.
func ExtractIdeas(posts []db.Post, cfg config.ScoringConfig) []db.Idea {
	type scored struct {
		idea  db.Idea
		score float64
	}

	var kept []scored
	for _, p := range posts {
		score, tags := ScorePost(p, cfg)
		if score < cfg.MinScore {
			continue
		}
		kept = append(kept, scored{
			score: score,
			idea: db.Idea{
				PostID:         p.ID,
				Subreddit:      p.Subreddit,
				Title:          p.Title,
				ProblemSummary: ProblemSummary(p),
				SolutionHint:   SolutionHint(p, tags),
				RelevanceScore: Round(score, 3),
				ReasonTags:     tags,
				CreatedUTC:     p.CreatedUTC,
				Permalink:      p.Permalink,
				URL:            p.URL,
				Author:         p.Author,
				NumComments:    p.NumComments,
				Upvotes:        p.Upvotes,
			},
		})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})

	ideas := make([]db.Idea, len(kept))
	for i, k := range kept {
		ideas[i] = k.idea
	}
	return ideas
}

// ProblemSummary picks the first body sentence that mentions a pain signal,
// falling back to the first sentence and then the title.
func ProblemSummary(post db.Post) string {
	body := strings.TrimSpace(post.Body)
	if body == "" {
		return Truncate(post.Title, maxSummaryLen)
	}

	first := ""
	for _, s := range sentencePattern.Split(body, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if containsAny(strings.ToLower(s), painSignals) {
			return Truncate(s, maxSummaryLen)
		}
		if first == "" {
			first = s
		}
	}
	if first != "" {
		return Truncate(first, maxSummaryLen)
	}
	return Truncate(post.Title, maxSummaryLen)
}

// SolutionHint maps a post to a canned product direction. The first
// matching rule wins.
func SolutionHint(post db.Post, tags []string) string {
	for _, t := range tags {
		if t == "monetization" {
			return monetizationHint
		}
	}

	text := strings.ToLower(post.Title + "\n" + post.Body)
	for _, rule := range hintRules {
		if containsAny(text, rule.markers) {
			return rule.hint
		}
	}
	return fallbackHint
}

// countHits counts how many distinct keywords occur in text.
func countHits(text string, keywords []string) int {
	hits := 0
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(text, k) {
			hits++
		}
	}
	return hits
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
