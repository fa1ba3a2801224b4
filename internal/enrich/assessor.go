package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/extractor"
)

// Assessor judges the business potential of one idea.
type Assessor interface {
	Assess(ctx context.Context, post db.Post, idea db.Idea) (*Assessment, error)
}

const maxPromptBody = 2500

const promptTemplate = `You are evaluating startup ideas from Reddit posts.
Goal: estimate likelihood this can become a profitable small business that solves real user pain.
Return ONLY strict JSON with keys:
- profit_score: number 0-100 (higher means better business potential)
- confidence: number 0-1
- summary: short 1-2 sentence problem summary
- monetization_hint: one concise monetization direction
- reason_tags: array of up to 3 short snake_case tags

Subreddit: r/%s
Title: %s
Body: %s
Heuristic score: %s
Heuristic tags: %s
`

// LLMAssessor asks a language model for an assessment and retries with a
// linear backoff when the call fails or the reply cannot be parsed.
type LLMAssessor struct {
	completer  Completer
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	sleep      func(context.Context, time.Duration) error
	logger     *slog.Logger
}

func NewLLMAssessor(completer Completer, cfg config.EnrichmentConfig, logger *slog.Logger) *LLMAssessor {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &LLMAssessor{
		completer:  completer,
		timeout:    timeout,
		maxRetries: retries,
		backoff:    1200 * time.Millisecond,
		sleep:      sleepContext,
		logger:     logger,
	}
}

func (a *LLMAssessor) Assess(ctx context.Context, post db.Post, idea db.Idea) (*Assessment, error) {
	prompt := BuildPrompt(post, idea)

	var lastErr error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		assessment, err := a.attempt(ctx, prompt)
		if err == nil {
			return assessment, nil
		}
		lastErr = err
		a.logger.Debug("assessment attempt failed", "post_id", post.ID, "attempt", attempt, "error", err)

		if attempt < a.maxRetries {
			if err := a.sleep(ctx, a.backoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("assessment of %s failed after %d attempts: %w", post.ID, a.maxRetries, lastErr)
}

func (a *LLMAssessor) attempt(ctx context.Context, prompt string) (*Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseAssessment(text)
}

// BuildPrompt renders the assessment prompt for a post and its heuristic
// result.
func BuildPrompt(post db.Post, idea db.Idea) string {
	body := extractor.Truncate(strings.TrimSpace(post.Body), maxPromptBody)
	return fmt.Sprintf(promptTemplate,
		post.Subreddit,
		post.Title,
		body,
		strconv.FormatFloat(idea.RelevanceScore, 'f', -1, 64),
		strings.Join(idea.ReasonTags, ", "),
	)
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
