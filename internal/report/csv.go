package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/user/ideascan/internal/db"
)

var csvHeader = []string{
	"post_id", "subreddit", "title", "problem_summary", "solution_hint",
	"relevance_score", "reason_tags", "created_utc", "permalink", "url",
	"author", "num_comments", "upvotes", "llm_profit_score", "llm_confidence",
}

// WriteCSV exports ideas to path, one row per idea. Missing LLM values are
// written as empty cells.
func WriteCSV(ideas []db.Idea, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, i := range ideas {
		row := []string{
			i.PostID,
			i.Subreddit,
			i.Title,
			i.ProblemSummary,
			i.SolutionHint,
			formatFloat(i.RelevanceScore),
			strings.Join(i.ReasonTags, ","),
			strconv.FormatInt(i.CreatedUTC, 10),
			i.Permalink,
			i.URL,
			i.Author,
			strconv.Itoa(i.NumComments),
			strconv.Itoa(i.Upvotes),
			optionalFloat(i.LLMProfitScore),
			optionalFloat(i.LLMConfidence),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
