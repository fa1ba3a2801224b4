package db

import "strings"

// SearchIdeas does a case-insensitive substring match over the text fields
// of ideas created at or after floor. An empty query lists the window.
func (s *Store) SearchIdeas(query string, floor int64, limit int) ([]Idea, error) {
	if limit < 1 {
		limit = 1
	}

	q := `SELECT ` + ideaColumns + ` FROM ideas WHERE created_utc >= ?`
	args := []interface{}{floor}

	for _, term := range strings.Fields(strings.ToLower(query)) {
		pattern := "%" + escapeLike(term) + "%"
		q += ` AND (lower(title) LIKE ? ESCAPE '\' OR lower(problem_summary) LIKE ? ESCAPE '\'` +
			` OR lower(solution_hint) LIKE ? ESCAPE '\' OR reason_tags LIKE ? ESCAPE '\' OR lower(subreddit) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}

	q += ideaOrder + ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIdeas(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
