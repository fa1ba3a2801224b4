package enrich

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/logging"
)

type fakeAssessor struct {
	mu      sync.Mutex
	calls   []string
	results map[string]*Assessment
	errs    map[string]error
}

func (f *fakeAssessor) Assess(_ context.Context, post db.Post, _ db.Idea) (*Assessment, error) {
	f.mu.Lock()
	f.calls = append(f.calls, post.ID)
	f.mu.Unlock()
	if err := f.errs[post.ID]; err != nil {
		return nil, err
	}
	if a, ok := f.results[post.ID]; ok {
		return a, nil
	}
	return &Assessment{ProfitScore: 50, Confidence: 0.5}, nil
}

func idea(id string, score float64, tags ...string) db.Idea {
	return db.Idea{PostID: id, Title: "Idea " + id, RelevanceScore: score, ReasonTags: tags}
}

func posts(ids ...string) []db.Post {
	var out []db.Post
	for _, id := range ids {
		out = append(out, db.Post{ID: id, Subreddit: "SaaS", Title: "Post " + id})
	}
	return out
}

func newTestEnricher(a Assessor, maxCandidates int) *Enricher {
	return NewEnricher(a, config.EnrichmentConfig{MaxCandidates: maxCandidates, Concurrency: 2}, logging.Discard())
}

func TestEnrichBlendsTopCandidate(t *testing.T) {
	fake := &fakeAssessor{results: map[string]*Assessment{
		"abc": {
			ProfitScore:      82,
			Confidence:       0.9,
			Summary:          "Teams lose hours on manual reports.",
			MonetizationHint: "Monthly subscription for agencies.",
			Tags:             []string{"llm_real_pain"},
		},
	}}

	ideas := []db.Idea{
		idea("low", 2.5, "keyword_match"),
		idea("abc", 4.0, "pain_point", "question"),
	}

	got := newTestEnricher(fake, 1).Enrich(context.Background(), ideas, posts("abc", "low"))

	if len(got) != 2 {
		t.Fatalf("expected 2 ideas, got %d", len(got))
	}
	top := got[0]
	if top.PostID != "abc" {
		t.Fatalf("expected abc first, got %s", top.PostID)
	}
	if top.RelevanceScore != 6.73 {
		t.Errorf("relevance = %v, want 6.73", top.RelevanceScore)
	}
	if top.LLMProfitScore == nil || *top.LLMProfitScore != 82 {
		t.Errorf("profit = %v", top.LLMProfitScore)
	}
	if top.LLMConfidence == nil || *top.LLMConfidence != 0.9 {
		t.Errorf("confidence = %v", top.LLMConfidence)
	}
	wantTags := []string{"llm_assessed", "llm_real_pain", "pain_point", "question"}
	if !reflect.DeepEqual(top.ReasonTags, wantTags) {
		t.Errorf("tags = %v, want %v", top.ReasonTags, wantTags)
	}
	if top.ProblemSummary != "Teams lose hours on manual reports." || top.SolutionHint != "Monthly subscription for agencies." {
		t.Errorf("text not replaced: %+v", top)
	}

	// Beyond the candidate cap: untouched.
	if got[1].PostID != "low" || got[1].RelevanceScore != 2.5 || got[1].LLMProfitScore != nil {
		t.Errorf("non-candidate modified: %+v", got[1])
	}
	if !reflect.DeepEqual(fake.calls, []string{"abc"}) {
		t.Errorf("calls = %v", fake.calls)
	}
}

func TestEnrichFailureLeavesIdeaUnchanged(t *testing.T) {
	fake := &fakeAssessor{
		errs: map[string]error{"a": errors.New("timeout")},
		results: map[string]*Assessment{
			"b": {ProfitScore: 100, Confidence: 1},
		},
	}
	ideas := []db.Idea{idea("a", 5, "pain_point"), idea("b", 4)}

	got := newTestEnricher(fake, 10).Enrich(context.Background(), ideas, posts("a", "b"))

	// b: 4*0.35 + 10*0.65 = 7.9 overtakes a.
	if got[0].PostID != "b" || got[0].RelevanceScore != 7.9 {
		t.Errorf("unexpected first: %+v", got[0])
	}
	if got[1].PostID != "a" || got[1].RelevanceScore != 5 || got[1].LLMProfitScore != nil {
		t.Errorf("failed candidate changed: %+v", got[1])
	}
	if !reflect.DeepEqual(got[1].ReasonTags, []string{"pain_point"}) {
		t.Errorf("tags changed: %v", got[1].ReasonTags)
	}
}

func TestEnrichSkipsCandidatesWithoutPost(t *testing.T) {
	fake := &fakeAssessor{}
	ideas := []db.Idea{idea("orphan", 9), idea("b", 3)}

	got := newTestEnricher(fake, 1).Enrich(context.Background(), ideas, posts("b"))

	if len(fake.calls) != 0 {
		t.Errorf("expected no calls, got %v", fake.calls)
	}
	if got[0].PostID != "orphan" || got[0].RelevanceScore != 9 {
		t.Errorf("unexpected: %+v", got)
	}
}

func TestEnrichMaxCandidatesFloor(t *testing.T) {
	fake := &fakeAssessor{}
	ideas := []db.Idea{idea("a", 3), idea("b", 5)}

	newTestEnricher(fake, 0).Enrich(context.Background(), ideas, posts("a", "b"))

	if !reflect.DeepEqual(fake.calls, []string{"b"}) {
		t.Errorf("expected only the best candidate, got %v", fake.calls)
	}
}

func TestEnrichEmpty(t *testing.T) {
	fake := &fakeAssessor{}
	got := newTestEnricher(fake, 5).Enrich(context.Background(), nil, nil)
	if len(got) != 0 || len(fake.calls) != 0 {
		t.Errorf("expected no work, got %v / %v", got, fake.calls)
	}
}

func TestMergeKeepsTextWhenEmpty(t *testing.T) {
	in := idea("a", 2, "question")
	in.ProblemSummary = "original summary"
	in.SolutionHint = "original hint"

	out := Merge(in, &Assessment{ProfitScore: 33.333, Confidence: 0.12345})

	if out.ProblemSummary != "original summary" || out.SolutionHint != "original hint" {
		t.Errorf("text replaced by empty values: %+v", out)
	}
	if *out.LLMProfitScore != 33.33 || *out.LLMConfidence != 0.123 {
		t.Errorf("rounding: %v %v", *out.LLMProfitScore, *out.LLMConfidence)
	}
	// 2*0.35 + 3.3333*0.65 = 2.866645
	if out.RelevanceScore != 2.867 {
		t.Errorf("relevance = %v", out.RelevanceScore)
	}
	if in.LLMProfitScore != nil {
		t.Error("Merge must not mutate its input")
	}
}

func TestFromConfigInactive(t *testing.T) {
	e, err := FromConfig(config.EnrichmentConfig{Enabled: false, APIKey: "x"}, nil)
	if err != nil || e != nil {
		t.Errorf("expected nil enricher, got %v, %v", e, err)
	}
	e, err = FromConfig(config.EnrichmentConfig{Enabled: true}, nil)
	if err != nil || e != nil {
		t.Errorf("expected nil enricher without key, got %v, %v", e, err)
	}
	_, err = FromConfig(config.EnrichmentConfig{Enabled: true, APIKey: "x", Provider: "nope"}, nil)
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}
