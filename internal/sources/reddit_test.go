package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/logging"
)

type child struct {
	Data map[string]any `json:"data"`
}

func page(after string, posts ...map[string]any) map[string]any {
	children := make([]child, 0, len(posts))
	for _, p := range posts {
		children = append(children, child{Data: p})
	}
	return map[string]any{"data": map[string]any{"after": after, "children": children}}
}

func redditPostJSON(id string, created float64) map[string]any {
	return map[string]any{
		"id":           id,
		"subreddit":    "SaaS",
		"title":        "  Title " + id + "  ",
		"selftext":     " body ",
		"permalink":    "/r/SaaS/comments/" + id + "/",
		"url":          "https://example.com/" + id,
		"author":       "alice",
		"created_utc":  created,
		"num_comments": 3,
		"ups":          7,
		"is_self":      true,
	}
}

func newTestSource(t *testing.T, handler http.HandlerFunc) *RedditSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src := NewRedditSource(config.RedditConfig{
		BaseURL:        srv.URL,
		UserAgent:      "ideascan-test/1.0",
		TimeoutSeconds: 5,
		MaxRetries:     3,
	}, logging.Discard())
	src.sleep = func(context.Context, time.Duration) error { return nil }
	return src
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestFetchSincePaginatesAndStopsAtFloor(t *testing.T) {
	var requests []string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		if r.Header.Get("User-Agent") != "ideascan-test/1.0" {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		if r.URL.Path != "/r/SaaS/new.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("after") {
		case "":
			writeJSON(w, page("t3_b", redditPostJSON("a", 3000), redditPostJSON("b", 2500)))
		case "t3_b":
			writeJSON(w, page("t3_d", redditPostJSON("c", 2000), redditPostJSON("d", 999)))
		default:
			t.Errorf("fetched past the floor: %s", r.URL.RawQuery)
			writeJSON(w, page(""))
		}
	})

	posts, err := src.FetchSince(context.Background(), "SaaS", 1000, 50)
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	if len(requests) != 2 {
		t.Errorf("expected 2 requests, got %d", len(requests))
	}
	if requests[0] != "limit=50&raw_json=1" {
		t.Errorf("first query = %q", requests[0])
	}

	p := posts[0]
	if p.ID != "a" || p.Title != "Title a" || p.Body != "body" {
		t.Errorf("unexpected post: %+v", p)
	}
	if p.Permalink != "https://reddit.com/r/SaaS/comments/a/" {
		t.Errorf("permalink = %q", p.Permalink)
	}
	if p.CreatedUTC != 3000 || p.NumComments != 3 || p.Upvotes != 7 || !p.IsSelf || p.Author != "alice" {
		t.Errorf("unexpected fields: %+v", p)
	}
}

func TestFetchSinceRespectsMax(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %s, want 2", got)
		}
		writeJSON(w, page("next", redditPostJSON("a", 3), redditPostJSON("b", 2), redditPostJSON("c", 1)))
	})

	posts, err := src.FetchSince(context.Background(), "SaaS", 0, 2)
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("expected 2 posts, got %d", len(posts))
	}
}

func TestFetchSinceDefaults(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, page("", map[string]any{
			"id":          "x",
			"title":       "No author",
			"permalink":   "/r/AppIdeas/comments/x/",
			"author":      nil,
			"created_utc": 10.0,
		}, map[string]any{"title": "missing id"}))
	})

	posts, err := src.FetchSince(context.Background(), "AppIdeas", 0, 10)
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if posts[0].Author != "[deleted]" || posts[0].Subreddit != "AppIdeas" {
		t.Errorf("defaults not applied: %+v", posts[0])
	}
}

func TestFetchSinceRetriesThenSucceeds(t *testing.T) {
	var calls int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			fmt.Fprint(w, "<html>not json</html>")
		default:
			writeJSON(w, page("", redditPostJSON("a", 100)))
		}
	})

	var slept []time.Duration
	src.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	posts, err := src.FetchSince(context.Background(), "SaaS", 0, 10)
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(posts) != 1 || calls != 3 {
		t.Errorf("posts = %d, calls = %d", len(posts), calls)
	}
	if len(slept) != 2 || slept[0] != 1500*time.Millisecond || slept[1] != 3*time.Second {
		t.Errorf("backoff = %v", slept)
	}
}

func TestFetchSinceReturnsFetchError(t *testing.T) {
	var calls int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := src.FetchSince(context.Background(), "SaaS", 0, 10)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Forum != "SaaS" {
		t.Errorf("forum = %q", fetchErr.Forum)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestFetchSinceEmptyListing(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, page("ignored"))
	})
	posts, err := src.FetchSince(context.Background(), "SaaS", 0, 10)
	if err != nil || len(posts) != 0 {
		t.Errorf("expected no posts, got %v, %v", posts, err)
	}
}
