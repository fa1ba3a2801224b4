package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir          string           `mapstructure:"data_dir"`
	OutputDir        string           `mapstructure:"output_dir"`
	Forums           []string         `mapstructure:"forums"`
	LookbackHours    int              `mapstructure:"lookback_hours"`
	MaxPostsPerForum int              `mapstructure:"max_posts_per_forum"`
	ReportTopN       int              `mapstructure:"report_top_n"`
	Scoring          ScoringConfig    `mapstructure:"scoring"`
	Reddit           RedditConfig     `mapstructure:"reddit"`
	Enrichment       EnrichmentConfig `mapstructure:"enrichment"`
	SMTP             SMTPConfig       `mapstructure:"smtp"`
	Telegram         TelegramConfig   `mapstructure:"telegram"`
	Schedule         ScheduleConfig   `mapstructure:"schedule"`
	Log              LogConfig        `mapstructure:"log"`
}

// ScoringConfig drives the heuristic scorer.
type ScoringConfig struct {
	MinScore        float64  `mapstructure:"min_score"`
	IncludeKeywords []string `mapstructure:"include_keywords"`
	ExcludeKeywords []string `mapstructure:"exclude_keywords"`
}

type RedditConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Concurrency       int     `mapstructure:"concurrency"`
}

type EnrichmentConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Provider       string  `mapstructure:"provider"`
	Model          string  `mapstructure:"model"`
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxCandidates  int     `mapstructure:"max_candidates"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxRetries     int     `mapstructure:"max_retries"`
	Concurrency    int     `mapstructure:"concurrency"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	EmailTo  string `mapstructure:"email_to"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

type ScheduleConfig struct {
	Daily  string `mapstructure:"daily"`
	Weekly string `mapstructure:"weekly"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var DefaultForums = []string{
	"vibecoding", "AppIdeas", "freelance", "passive_income",
	"AI_Agents", "AgentsOfAI", "AiBuilders", "AIAssisted",
	"startups", "startup", "Startup_Ideas", "indiehackers",
	"buildinpublic", "scaleinpublic", "roastmystartup", "ShowMeYourSaaS",
	"SaaS", "saasbuild", "SaasDevelopers", "SaaSMarketing",
	"micro_saas", "microsaas",
}

var DefaultIncludeKeywords = []string{
	"problem", "frustrat", "manual", "automate", "time-consuming", "workflow",
	"template", "saas", "tool", "app", "website", "plugin", "extension",
	"side hustle", "passive income", "subscription",
}

var DefaultExcludeKeywords = []string{
	"hiring", "looking for work", "upwork profile", "resume review",
}

// providerKeyEnv maps an enrichment provider to the env var holding its key
// when enrichment.api_key is not set.
var providerKeyEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("output_dir", "output")
	v.SetDefault("forums", DefaultForums)
	v.SetDefault("lookback_hours", 168)
	v.SetDefault("max_posts_per_forum", 75)
	v.SetDefault("report_top_n", 15)

	v.SetDefault("scoring.min_score", 2.0)
	v.SetDefault("scoring.include_keywords", DefaultIncludeKeywords)
	v.SetDefault("scoring.exclude_keywords", DefaultExcludeKeywords)

	v.SetDefault("reddit.base_url", "https://www.reddit.com")
	v.SetDefault("reddit.user_agent", "ideascan/0.1")
	v.SetDefault("reddit.timeout_seconds", 20)
	v.SetDefault("reddit.max_retries", 3)
	v.SetDefault("reddit.requests_per_second", 1.0)
	v.SetDefault("reddit.concurrency", 1)

	v.SetDefault("enrichment.enabled", false)
	v.SetDefault("enrichment.provider", "gemini")
	v.SetDefault("enrichment.model", "gemini-2.5-flash-lite")
	v.SetDefault("enrichment.api_key", "")
	v.SetDefault("enrichment.base_url", "")
	v.SetDefault("enrichment.temperature", 0.2)
	v.SetDefault("enrichment.max_candidates", 40)
	v.SetDefault("enrichment.timeout_seconds", 25)
	v.SetDefault("enrichment.max_retries", 3)
	v.SetDefault("enrichment.concurrency", 4)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.email_to", "")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("schedule.daily", "0 7 * * *")
	v.SetDefault("schedule.weekly", "0 8 * * 1")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from defaults, an optional YAML file and the
// environment (IDEASCAN_ prefix). A .env file in the working directory is
// loaded first when present. An empty path searches the working directory
// and ./data for config.yaml.
func Load(path string) (*Config, error) {
	// Missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("IDEASCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("data")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	cfg.normalize()
	return &cfg
}

func (c *Config) normalize() {
	c.Forums = splitList(c.Forums)
	c.Scoring.IncludeKeywords = splitList(c.Scoring.IncludeKeywords)
	c.Scoring.ExcludeKeywords = splitList(c.Scoring.ExcludeKeywords)

	c.Enrichment.Provider = strings.ToLower(strings.TrimSpace(c.Enrichment.Provider))
	if c.Enrichment.APIKey == "" {
		if env, ok := providerKeyEnv[c.Enrichment.Provider]; ok {
			c.Enrichment.APIKey = os.Getenv(env)
		}
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.User
	}
}

// splitList flattens comma separated entries, which is how list values
// arrive from environment variables.
func splitList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "ideascan.db")
}

// LookbackSeconds is the configured lookback with a floor of one hour.
func (c *Config) LookbackSeconds() int64 {
	hours := c.LookbackHours
	if hours < 1 {
		hours = 1
	}
	return int64(hours) * 3600
}

func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.User != "" && s.Password != "" && s.EmailTo != ""
}

func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Active reports whether enrichment should run for this configuration.
func (e EnrichmentConfig) Active() bool {
	return e.Enabled && e.APIKey != ""
}
