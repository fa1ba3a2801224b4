package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/db"
)

const (
	redditPageSize  = 100
	redditPermalink = "https://reddit.com"
	maxBodyBytes    = 8 << 20
)

// RedditSource reads the public new.json listing of a subreddit.
type RedditSource struct {
	client     *http.Client
	baseURL    string
	userAgent  string
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	sleep      func(context.Context, time.Duration) error
	logger     *slog.Logger
}

func NewRedditSource(cfg config.RedditConfig, logger *slog.Logger) *RedditSource {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &RedditSource{
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		maxRetries: max(cfg.MaxRetries, 1),
		backoff:    1500 * time.Millisecond,
		limiter:    rate.NewLimiter(limit, 1),
		sleep:      sleepContext,
		logger:     logger,
	}
}

func (r *RedditSource) Name() string {
	return "reddit"
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Author      *string `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	NumComments int     `json:"num_comments"`
	Ups         int     `json:"ups"`
	IsSelf      bool    `json:"is_self"`
}

func (p redditPost) toPost(forum string) db.Post {
	subreddit := p.Subreddit
	if subreddit == "" {
		subreddit = forum
	}
	author := "[deleted]"
	if p.Author != nil {
		author = *p.Author
	}
	return db.Post{
		ID:          p.ID,
		Subreddit:   subreddit,
		Title:       strings.TrimSpace(p.Title),
		Body:        strings.TrimSpace(p.Selftext),
		Permalink:   redditPermalink + p.Permalink,
		URL:         p.URL,
		Author:      author,
		CreatedUTC:  int64(p.CreatedUTC),
		NumComments: p.NumComments,
		Upvotes:     p.Ups,
		IsSelf:      p.IsSelf,
	}
}

func (r *RedditSource) FetchSince(ctx context.Context, forum string, since int64, maxPosts int) ([]db.Post, error) {
	maxPosts = max(maxPosts, 1)
	endpoint := fmt.Sprintf("%s/r/%s/new.json", r.baseURL, url.PathEscape(forum))

	var posts []db.Post
	after := ""
	for len(posts) < maxPosts {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(min(maxPosts-len(posts), redditPageSize)))
		q.Set("raw_json", "1")
		if after != "" {
			q.Set("after", after)
		}
		pageURL := endpoint + "?" + q.Encode()

		page, err := r.getListing(ctx, pageURL)
		if err != nil {
			return nil, &FetchError{Forum: forum, URL: pageURL, Err: err}
		}
		if len(page.Data.Children) == 0 {
			break
		}

		for _, child := range page.Data.Children {
			if child.Data.ID == "" {
				continue
			}
			post := child.Data.toPost(forum)
			// Listing is newest first, so everything after this is older.
			if post.CreatedUTC < since {
				r.logger.Debug("reached lookback floor", "forum", forum, "posts", len(posts))
				return posts, nil
			}
			posts = append(posts, post)
			if len(posts) >= maxPosts {
				return posts, nil
			}
		}

		after = page.Data.After
		if after == "" {
			break
		}
	}
	return posts, nil
}

// getListing performs one GET with bounded retries and a linear backoff.
func (r *RedditSource) getListing(ctx context.Context, pageURL string) (*listing, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		page, err := r.fetchOnce(ctx, pageURL)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		r.logger.Warn("reddit request failed", "url", pageURL, "attempt", attempt, "error", err)

		if attempt < r.maxRetries {
			if err := r.sleep(ctx, r.backoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (r *RedditSource) fetchOnce(ctx context.Context, pageURL string) (*listing, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("reddit returned status %d", resp.StatusCode)
	}

	var page listing
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	return &page, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
