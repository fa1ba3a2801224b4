package extractor

import (
	"sort"

	"github.com/user/ideascan/internal/db"
)

type TagCount struct {
	Tag   string
	Count int
}

// SummarizeThemes counts reason tags across ideas, most frequent first.
// Equal counts keep the order in which the tags were first seen.
func SummarizeThemes(ideas []db.Idea) []TagCount {
	index := map[string]int{}
	var counts []TagCount
	for _, idea := range ideas {
		for _, tag := range idea.ReasonTags {
			if i, ok := index[tag]; ok {
				counts[i].Count++
				continue
			}
			index[tag] = len(counts)
			counts = append(counts, TagCount{Tag: tag, Count: 1})
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

// CountBySubreddit counts ideas per forum, most frequent first.
func CountBySubreddit(ideas []db.Idea) []TagCount {
	index := map[string]int{}
	var counts []TagCount
	for _, idea := range ideas {
		if i, ok := index[idea.Subreddit]; ok {
			counts[i].Count++
			continue
		}
		index[idea.Subreddit] = len(counts)
		counts = append(counts, TagCount{Tag: idea.Subreddit, Count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}
