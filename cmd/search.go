package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/extractor"
)

var (
	jsonOutput      bool
	plaintextOutput bool
	searchLimit     int
	searchHours     int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored ideas",
	Long:  "Search ideas by title, summary, hint, tags and subreddit. All terms must match.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := db.NewStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		var floor int64
		if searchHours > 0 {
			floor = time.Now().Unix() - int64(searchHours)*3600
		}

		results, err := store.SearchIdeas(query, floor, searchLimit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if jsonOutput {
			return outputJSON(results)
		}
		if plaintextOutput {
			return outputPlaintext(results)
		}
		return outputDefault(results)
	},
}

func outputJSON(results []db.Idea) error {
	if results == nil {
		results = []db.Idea{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func outputPlaintext(results []db.Idea) error {
	for _, r := range results {
		fmt.Printf("%.3f\tr/%s\t%s\t%s\n", r.RelevanceScore, r.Subreddit, r.Title, r.Permalink)
	}
	return nil
}

func outputDefault(results []db.Idea) error {
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%.2f] %s\n   r/%s  %s\n", i+1, r.RelevanceScore, r.Title, r.Subreddit, r.Permalink)
		if r.ProblemSummary != "" {
			fmt.Printf("   %s\n", extractor.Truncate(r.ProblemSummary, 100))
		}
		if r.LLMProfitScore != nil {
			fmt.Printf("   LLM profit %.0f/100\n", *r.LLMProfitScore)
		}
		fmt.Println()
	}
	return nil
}

func init() {
	searchCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	searchCmd.Flags().BoolVarP(&plaintextOutput, "plaintext", "p", false, "Output as plaintext")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Maximum results")
	searchCmd.Flags().IntVar(&searchHours, "hours", 0, "Only ideas from the last N hours (default: all)")
	rootCmd.AddCommand(searchCmd)
}
