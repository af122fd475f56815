// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Sources  []SourceConfig `mapstructure:"sources"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	DB       DBConfig       `mapstructure:"db"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Reports  ReportsConfig  `mapstructure:"reports"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig is one news site to crawl.
type SourceConfig struct {
	Name       string `mapstructure:"name"`
	URL        string `mapstructure:"url"`
	MaxResults int    `mapstructure:"max_results"`
}

// CrawlerConfig governs discovery and the worker pool.
type CrawlerConfig struct {
	Concurrency        int    `mapstructure:"concurrency"`
	ParallelSources    int    `mapstructure:"parallel_sources"`
	UserAgent          string `mapstructure:"user_agent"`
	HostDelayMs        int    `mapstructure:"host_delay_ms"`
	IdleTimeoutSeconds int    `mapstructure:"idle_timeout_seconds"`
	MinBodyBytes       int    `mapstructure:"min_body_bytes"`
	MinTextChars       int    `mapstructure:"min_text_chars"`
	MaxClassifierChars int    `mapstructure:"max_classifier_chars"`
	MaxResults         int    `mapstructure:"max_results"`
}

// HTTPConfig configures page fetches and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// ResolverConfig holds entity-link thresholds.
type ResolverConfig struct {
	AcceptScore    int     `mapstructure:"accept_score"`
	VerifyFloor    int     `mapstructure:"verify_floor"`
	VerifyScore    int     `mapstructure:"verify_score"`
	MinAnchorScore int     `mapstructure:"min_anchor_score"`
	EarlyStopScore int     `mapstructure:"early_stop_score"`
	SearchRPS      float64 `mapstructure:"search_rps"`
}

// DedupConfig orders sources for near-duplicate suppression.
type DedupConfig struct {
	SourcePriority []string `mapstructure:"source_priority"`
}

// DBConfig controls access to the record store. An empty DSN selects the
// in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SearchConfig configures the web search collaborator. An empty API key
// disables search in the resolver.
type SearchConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	APIKey      string `mapstructure:"api_key"`
	SearchDepth string `mapstructure:"search_depth"`
}

// PubSubConfig holds metadata for record notifications. An empty project ID
// keeps events in memory.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ReportsConfig selects where run reports go.
type ReportsConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// ScheduleConfig drives the schedule command.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FUNDING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sources", []map[string]any{
		{"name": "TechCrunch", "url": "https://techcrunch.com/category/startups/", "max_results": 50},
		{"name": "FinSMEs", "url": "https://www.finsmes.com/", "max_results": 50},
	})
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.parallel_sources", 2)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (compatible; funding-crawler/0.1)")
	v.SetDefault("crawler.host_delay_ms", 500)
	v.SetDefault("crawler.idle_timeout_seconds", 5)
	v.SetDefault("crawler.min_body_bytes", 500)
	v.SetDefault("crawler.min_text_chars", 200)
	v.SetDefault("crawler.max_classifier_chars", 3000)
	v.SetDefault("crawler.max_results", 50)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 8000)
	v.SetDefault("resolver.accept_score", 80)
	v.SetDefault("resolver.verify_floor", 50)
	v.SetDefault("resolver.verify_score", 70)
	v.SetDefault("resolver.min_anchor_score", 80)
	v.SetDefault("resolver.early_stop_score", 85)
	v.SetDefault("resolver.search_rps", 1.0)
	v.SetDefault("dedup.source_priority", []string{"TechCrunch"})
	// Empty defaults register the keys so AutomaticEnv can fill them.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "funding_events")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "https://api.tavily.com")
	v.SetDefault("search.search_depth", "basic")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "funding-events")
	v.SetDefault("reports.backend", "local")
	v.SetDefault("reports.base_dir", "reports")
	v.SetDefault("reports.gcs_bucket", "")
	v.SetDefault("reports.prefix", "runs")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("schedule.cron", "0 6 * * *")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		key := strings.ToLower(s.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("sources[%d].name %q is duplicated", i, s.Name)
		}
		seen[key] = struct{}{}
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("sources[%d].url %q must be an absolute http(s) URL", i, s.URL)
		}
		if s.MaxResults < 0 {
			return fmt.Errorf("sources[%d].max_results must be >= 0", i)
		}
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.ParallelSources <= 0 {
		return fmt.Errorf("crawler.parallel_sources must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.Resolver.VerifyFloor > c.Resolver.AcceptScore {
		return fmt.Errorf("resolver.verify_floor must not exceed resolver.accept_score")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	switch c.Reports.Backend {
	case "local":
		if c.Reports.BaseDir == "" {
			return fmt.Errorf("reports.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Reports.GCSBucket == "" {
			return fmt.Errorf("reports.gcs_bucket is required for the gcs backend")
		}
	case "none":
	default:
		return fmt.Errorf("reports.backend must be one of local, gcs, none (got %q)", c.Reports.Backend)
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Topic == "" {
		return fmt.Errorf("pubsub.topic is required when pubsub.project_id is set")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}
	return nil
}

// HTTPTimeout is the per-request fetch budget.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// LLMTimeout bounds one collaborator call.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// SourceNames lists configured source names in order.
func (c Config) SourceNames() []string {
	out := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, s.Name)
	}
	return out
}
