// Package report renders the idea window as a Markdown report and a CSV
// export.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/extractor"
)

// Title returns the period name with its first letter upper-cased.
func Title(period string) string {
	if period == "" {
		return period
	}
	return strings.ToUpper(period[:1]) + strings.ToLower(period[1:])
}

// BuildMarkdown renders the report for ideas, which must already be sorted
// best first. At least one idea is listed when any exist.
func BuildMarkdown(ideas []db.Idea, period string, generatedAt time.Time, topN int) string {
	top := ideas
	if n := max(topN, 1); len(top) > n {
		top = top[:n]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Reddit Idea Scanner Report (%s)\n\n", Title(period))
	fmt.Fprintf(&b, "Generated at: %s\n", generatedAt.UTC().Format("2006-01-02T15:04:05-07:00"))
	fmt.Fprintf(&b, "Total ideas in window: %d\n\n", len(ideas))

	b.WriteString("## Top Opportunities\n\n")
	if len(top) == 0 {
		b.WriteString("No ideas met the threshold in this period.\n")
	}
	for i, idea := range top {
		created := time.Unix(idea.CreatedUTC, 0).UTC().Format("2006-01-02 15:04 UTC")
		fmt.Fprintf(&b, "%d. [%s](%s) (r/%s, score=%.2f, %s)\n",
			i+1, idea.Title, idea.Permalink, idea.Subreddit, idea.RelevanceScore, created)
		fmt.Fprintf(&b, "Problem: %s\n", idea.ProblemSummary)
		fmt.Fprintf(&b, "Hint: %s\n", idea.SolutionHint)
		fmt.Fprintf(&b, "Signals: %s\n", strings.Join(idea.ReasonTags, ", "))
		if idea.LLMProfitScore != nil {
			confidence := ""
			if idea.LLMConfidence != nil {
				confidence = fmt.Sprintf(", confidence=%.2f", *idea.LLMConfidence)
			}
			fmt.Fprintf(&b, "LLM Profit Score: %.1f/100%s\n", *idea.LLMProfitScore, confidence)
		}
		b.WriteString("\n")
	}
	if len(top) == 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Subreddit Distribution\n\n")
	writeCounts(&b, extractor.CountBySubreddit(ideas), "r/")

	b.WriteString("## Signal Distribution\n\n")
	writeCounts(&b, extractor.SummarizeThemes(ideas), "")

	return b.String()
}

func writeCounts(b *strings.Builder, counts []extractor.TagCount, prefix string) {
	if len(counts) == 0 {
		b.WriteString("- None\n")
	}
	for _, c := range counts {
		fmt.Fprintf(b, "- %s%s: %d\n", prefix, c.Tag, c.Count)
	}
	b.WriteString("\n")
}

// WriteText writes content to path, creating parent directories.
func WriteText(content, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
