package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if len(cfg.Forums) != 22 {
		t.Errorf("expected 22 default forums, got %d", len(cfg.Forums))
	}
	if cfg.LookbackHours != 168 {
		t.Errorf("expected lookback 168, got %d", cfg.LookbackHours)
	}
	if cfg.MaxPostsPerForum != 75 {
		t.Errorf("expected 75 posts per forum, got %d", cfg.MaxPostsPerForum)
	}
	if cfg.Scoring.MinScore != 2.0 {
		t.Errorf("expected min score 2.0, got %v", cfg.Scoring.MinScore)
	}
	if cfg.Enrichment.MaxCandidates != 40 || cfg.Enrichment.Model != "gemini-2.5-flash-lite" {
		t.Errorf("unexpected enrichment defaults: %+v", cfg.Enrichment)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("expected smtp port 587, got %d", cfg.SMTP.Port)
	}
	if cfg.SMTP.Configured() || cfg.Telegram.Configured() {
		t.Error("expected no notification channel configured by default")
	}
}

func TestLookbackSecondsFloor(t *testing.T) {
	cfg := &Config{LookbackHours: 0}
	if got := cfg.LookbackSeconds(); got != 3600 {
		t.Errorf("expected 3600, got %d", got)
	}
	cfg.LookbackHours = 24
	if got := cfg.LookbackSeconds(); got != 86400 {
		t.Errorf("expected 86400, got %d", got)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: /tmp/ideascan-data
forums: [SaaS, indiehackers]
scoring:
  min_score: 3.5
enrichment:
  enabled: true
  provider: Anthropic
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("IDEASCAN_LOOKBACK_HOURS", "24")
	t.Setenv("IDEASCAN_SCORING_EXCLUDE_KEYWORDS", "hiring, crypto")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "/tmp/ideascan-data" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if len(cfg.Forums) != 2 || cfg.Forums[0] != "SaaS" {
		t.Errorf("forums = %v", cfg.Forums)
	}
	if cfg.Scoring.MinScore != 3.5 {
		t.Errorf("min score = %v", cfg.Scoring.MinScore)
	}
	if cfg.LookbackHours != 24 {
		t.Errorf("lookback = %d", cfg.LookbackHours)
	}
	if len(cfg.Scoring.ExcludeKeywords) != 2 || cfg.Scoring.ExcludeKeywords[1] != "crypto" {
		t.Errorf("exclude keywords = %v", cfg.Scoring.ExcludeKeywords)
	}
	if cfg.Enrichment.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Enrichment.Provider)
	}
	if !cfg.Enrichment.Active() {
		t.Error("expected enrichment active with provider key from env")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"a, b", " ", "c"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}
