// Package config loads and validates configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/wowhead-parser/internal/logging"
)

// Fetcher kinds.
const (
	FetcherColly    = "colly"
	FetcherResty    = "resty"
	FetcherHeadless = "headless"
)

// Config captures every knob loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	EntryList EntryListConfig `mapstructure:"entry_list"`
	Output    OutputConfig    `mapstructure:"output"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Progress  ProgressConfig  `mapstructure:"progress"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetcherConfig selects and tunes the entry page fetcher.
type FetcherConfig struct {
	Kind              string  `mapstructure:"kind"`
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// HeadlessConfig configures the browser fetcher and probe promotion.
type HeadlessConfig struct {
	// Promote re-fetches script-shell pages in the browser when the plain
	// fetcher is in use.
	Promote            bool   `mapstructure:"promote"`
	MaxParallel        int    `mapstructure:"max_parallel"`
	NavTimeoutSec      int    `mapstructure:"nav_timeout_seconds"`
	ReadySelector      string `mapstructure:"ready_selector"`
	PromotionThreshold int    `mapstructure:"promotion_threshold"`
}

// EntryListConfig locates WELF files.
type EntryListConfig struct {
	Dir       string `mapstructure:"dir"`
	Extension string `mapstructure:"extension"`
}

// OutputConfig sets where dumps are stored.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls the optional block ledger.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ProgressConfig sizes the telemetry hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// Load builds a Config from the file at path (if any) and the environment.
// Environment variables use the WHPARSER_ prefix, e.g. WHPARSER_FETCHER_KIND.
func Load(path string) (Config, error) {
	return load(viper.New(), path, false)
}

// LoadWith is Load on a caller-provided Viper instance, so that command flags
// bound to v take part. Without an explicit path it looks for config.yaml (or
// another supported extension) in ., /etc/wowhead-parser and
// $HOME/.wowhead-parser; finding none is not an error.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	return load(v, path, true)
}

func load(v *viper.Viper, path string, searchPaths bool) (Config, error) {
	v.SetEnvPrefix("WHPARSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else if searchPaths {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/wowhead-parser/")
		v.AddConfigPath("$HOME/.wowhead-parser")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetcher.kind", FetcherColly)
	v.SetDefault("fetcher.user_agent", "wowhead-parser/1.0")
	v.SetDefault("fetcher.timeout_seconds", 15)
	v.SetDefault("fetcher.max_retries", 2)
	v.SetDefault("fetcher.requests_per_second", 0)
	v.SetDefault("fetcher.burst", 1)
	v.SetDefault("headless.promote", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.ready_selector", "body")
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("entry_list.dir", "EntryList")
	v.SetDefault("entry_list.extension", ".welf")
	v.SetDefault("output.dir", "dumps")
	v.SetDefault("output.content_type", "text/plain; charset=utf-8")
	v.SetDefault("db.table", "dump_blocks")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("progress.buffer_size", 256)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait_ms", 500)
}

func (c *Config) normalize() {
	c.Fetcher.Kind = strings.ToLower(strings.TrimSpace(c.Fetcher.Kind))
	if ext := strings.TrimSpace(c.EntryList.Extension); ext != "" && !strings.HasPrefix(ext, ".") {
		c.EntryList.Extension = "." + ext
	}
	c.Output.Prefix = strings.Trim(c.Output.Prefix, "/")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Fetcher.Kind {
	case FetcherColly, FetcherResty, FetcherHeadless:
	default:
		return fmt.Errorf("fetcher.kind must be one of colly, resty, headless; got %q", c.Fetcher.Kind)
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetcher.timeout_seconds must be > 0")
	}
	if c.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0")
	}
	if c.Fetcher.RequestsPerSecond < 0 || c.Fetcher.Burst < 0 {
		return fmt.Errorf("fetcher.requests_per_second and fetcher.burst must be >= 0")
	}
	usesBrowser := c.Fetcher.Kind == FetcherHeadless || c.Headless.Promote
	if usesBrowser && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when the browser is used")
	}
	if c.Headless.Promote && c.Fetcher.Kind == FetcherHeadless {
		return fmt.Errorf("headless.promote requires a non-headless fetcher.kind")
	}
	if c.EntryList.Dir == "" {
		return fmt.Errorf("entry_list.dir must be set")
	}
	if c.Output.GCSBucket == "" && c.Output.Dir == "" {
		return fmt.Errorf("output.dir or output.gcs_bucket must be set")
	}
	if c.DB.DSN != "" && c.DB.Table == "" {
		return fmt.Errorf("db.table must be set when db.dsn is set")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// FetchTimeout is the per-entry fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// NavTimeout is the browser navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// BatchWait is the progress hub flush interval.
func (c Config) BatchWait() time.Duration {
	return time.Duration(c.Progress.MaxBatchWaitMs) * time.Millisecond
}
