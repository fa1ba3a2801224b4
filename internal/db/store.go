package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ideascan.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		post_id TEXT PRIMARY KEY,
		subreddit TEXT NOT NULL,
		title TEXT NOT NULL,
		selftext TEXT NOT NULL DEFAULT '',
		permalink TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		created_utc INTEGER NOT NULL,
		num_comments INTEGER NOT NULL DEFAULT 0,
		upvotes INTEGER NOT NULL DEFAULT 0,
		is_self INTEGER NOT NULL DEFAULT 0,
		fetched_at_utc INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_utc);

	CREATE TABLE IF NOT EXISTS ideas (
		post_id TEXT PRIMARY KEY,
		subreddit TEXT NOT NULL,
		title TEXT NOT NULL,
		problem_summary TEXT NOT NULL DEFAULT '',
		solution_hint TEXT NOT NULL DEFAULT '',
		relevance_score REAL NOT NULL,
		reason_tags TEXT NOT NULL DEFAULT '',
		created_utc INTEGER NOT NULL,
		permalink TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		num_comments INTEGER NOT NULL DEFAULT 0,
		upvotes INTEGER NOT NULL DEFAULT 0,
		extracted_at_utc INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ideas_created ON ideas(created_utc);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		period TEXT NOT NULL,
		run_day_utc TEXT NOT NULL,
		run_started_utc INTEGER NOT NULL,
		run_finished_utc INTEGER,
		status TEXT NOT NULL,
		fetched_posts INTEGER NOT NULL DEFAULT 0,
		extracted_ideas INTEGER NOT NULL DEFAULT 0,
		window_ideas INTEGER NOT NULL DEFAULT 0,
		notified INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_run_logs_period_started ON run_logs(period, run_started_utc DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Columns added after the first schema version. Older databases get
	// them as nullable columns; existing rows keep NULL.
	return s.ensureColumns("ideas", []column{
		{name: "llm_profit_score", decl: "REAL"},
		{name: "llm_confidence", decl: "REAL"},
	})
}

type column struct {
	name string
	decl string
}

func (s *Store) ensureColumns(table string, cols []column) error {
	for _, c := range cols {
		var name string
		err := s.db.QueryRow(`SELECT name FROM pragma_table_info(?) WHERE name = ?`, table, c.name).Scan(&name)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return err
		}
		if _, err := s.db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, c.name, c.decl)); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", table, c.name, err)
		}
	}
	return nil
}

// UpsertPosts writes all posts in one transaction. Existing rows are fully
// overwritten with the newly observed values.
func (s *Store) UpsertPosts(posts []Post, fetchedUTC int64) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT INTO posts (post_id, subreddit, title, selftext, permalink, url, author, created_utc, num_comments, upvotes, is_self, fetched_at_utc)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(post_id) DO UPDATE SET
		subreddit = excluded.subreddit,
		title = excluded.title,
		selftext = excluded.selftext,
		permalink = excluded.permalink,
		url = excluded.url,
		author = excluded.author,
		created_utc = excluded.created_utc,
		num_comments = excluded.num_comments,
		upvotes = excluded.upvotes,
		is_self = excluded.is_self,
		fetched_at_utc = excluded.fetched_at_utc
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range posts {
		if _, err := stmt.Exec(
			p.ID, p.Subreddit, p.Title, p.Body, p.Permalink, p.URL, p.Author,
			p.CreatedUTC, p.NumComments, p.Upvotes, p.IsSelf, fetchedUTC,
		); err != nil {
			return fmt.Errorf("failed to upsert post %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// UpsertIdeas writes all ideas in one transaction with full overwrite
// semantics, including clearing LLM fields when the new value is absent.
func (s *Store) UpsertIdeas(ideas []Idea, extractedUTC int64) error {
	if len(ideas) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT INTO ideas (post_id, subreddit, title, problem_summary, solution_hint, relevance_score, reason_tags,
		created_utc, permalink, url, author, num_comments, upvotes, llm_profit_score, llm_confidence, extracted_at_utc)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(post_id) DO UPDATE SET
		subreddit = excluded.subreddit,
		title = excluded.title,
		problem_summary = excluded.problem_summary,
		solution_hint = excluded.solution_hint,
		relevance_score = excluded.relevance_score,
		reason_tags = excluded.reason_tags,
		created_utc = excluded.created_utc,
		permalink = excluded.permalink,
		url = excluded.url,
		author = excluded.author,
		num_comments = excluded.num_comments,
		upvotes = excluded.upvotes,
		llm_profit_score = excluded.llm_profit_score,
		llm_confidence = excluded.llm_confidence,
		extracted_at_utc = excluded.extracted_at_utc
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, i := range ideas {
		if _, err := stmt.Exec(
			i.PostID, i.Subreddit, i.Title, i.ProblemSummary, i.SolutionHint, i.RelevanceScore,
			encodeTags(i.ReasonTags), i.CreatedUTC, i.Permalink, i.URL, i.Author,
			i.NumComments, i.Upvotes, nullFloat(i.LLMProfitScore), nullFloat(i.LLMConfidence), extractedUTC,
		); err != nil {
			return fmt.Errorf("failed to upsert idea %s: %w", i.PostID, err)
		}
	}

	return tx.Commit()
}

const ideaColumns = `post_id, subreddit, title, problem_summary, solution_hint, relevance_score, reason_tags,
	created_utc, permalink, url, author, num_comments, upvotes, llm_profit_score, llm_confidence`

const ideaOrder = ` ORDER BY relevance_score DESC, created_utc DESC, post_id ASC`

// IdeasSince returns ideas whose post was created at or after floor, best
// first.
func (s *Store) IdeasSince(floor int64) ([]Idea, error) {
	rows, err := s.db.Query(`SELECT `+ideaColumns+` FROM ideas WHERE created_utc >= ?`+ideaOrder, floor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIdeas(rows)
}

func (s *Store) GetPost(id string) (*Post, error) {
	var p Post
	err := s.db.QueryRow(`
		SELECT post_id, subreddit, title, selftext, permalink, url, author, created_utc, num_comments, upvotes, is_self
		FROM posts WHERE post_id = ?`, id).Scan(
		&p.ID, &p.Subreddit, &p.Title, &p.Body, &p.Permalink, &p.URL, &p.Author,
		&p.CreatedUTC, &p.NumComments, &p.Upvotes, &p.IsSelf,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CountIdeas() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM ideas`).Scan(&count)
	return count, err
}

func (s *Store) CountPosts() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&count)
	return count, err
}

func scanIdeas(rows *sql.Rows) ([]Idea, error) {
	var ideas []Idea
	for rows.Next() {
		var i Idea
		var tags string
		var profit, confidence sql.NullFloat64
		if err := rows.Scan(
			&i.PostID, &i.Subreddit, &i.Title, &i.ProblemSummary, &i.SolutionHint, &i.RelevanceScore, &tags,
			&i.CreatedUTC, &i.Permalink, &i.URL, &i.Author, &i.NumComments, &i.Upvotes, &profit, &confidence,
		); err != nil {
			return nil, err
		}
		i.ReasonTags = decodeTags(tags)
		if profit.Valid {
			v := profit.Float64
			i.LLMProfitScore = &v
		}
		if confidence.Valid {
			v := confidence.Float64
			i.LLMConfidence = &v
		}
		ideas = append(ideas, i)
	}
	return ideas, rows.Err()
}

// Tags only ever contain [a-z0-9_], so a comma is a safe separator.
func encodeTags(tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	out := make([]string, 0, len(sorted))
	prev := ""
	for _, t := range sorted {
		if t == "" || t == prev {
			continue
		}
		out = append(out, t)
		prev = t
	}
	return strings.Join(out, ",")
}

func decodeTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
