package sources

import (
	"context"
	"fmt"

	"github.com/user/ideascan/internal/db"
)

// Source fetches recent posts from a forum.
type Source interface {
	// Name returns the source identifier.
	Name() string
	// FetchSince returns posts newest first, stopping at the first post
	// created before since or once max posts were collected.
	FetchSince(ctx context.Context, forum string, since int64, max int) ([]db.Post, error)
}

// FetchError is returned when a forum could not be fetched after all
// retries.
type FetchError struct {
	Forum string
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch r/%s (%s): %v", e.Forum, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
