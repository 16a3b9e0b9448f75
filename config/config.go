package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

// Text generation providers
const (
	ProviderOpenAI      = "openai"      // OpenAI-compatible chat completions API
	ProviderHTTP        = "http"        // semsummarize-style POST /summarize service
	ProviderStatistical = "statistical" // Local keyword extraction, no network
)

// Storage backends
const (
	StorageMemory = "memory" // In-process only
	StorageNATS   = "nats"   // NATS KV bucket
	StorageSQLite = "sqlite" // Local SQLite database file
	StorageRedis  = "redis"  // Redis hashes
)

// Config represents the complete application configuration
type Config struct {
	Community gc.Config     `json:"community" yaml:"community"`
	LLM       LLMConfig     `json:"llm" yaml:"llm"`
	Storage   StorageConfig `json:"storage" yaml:"storage"`
	NATS      NATSConfig    `json:"nats" yaml:"nats"`
	Log       LogConfig     `json:"log" yaml:"log"`
	Metrics   MetricsConfig `json:"metrics" yaml:"metrics"`
}

// LLMConfig selects and configures the text generator
type LLMConfig struct {
	Provider    string        `json:"provider" yaml:"provider"`
	BaseURL     string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey      string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Temperature float32       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// RateLimit caps generation requests per second; 0 disables limiting
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Burst     int     `json:"burst,omitempty" yaml:"burst,omitempty"`

	// Fallback answers with the statistical generator when the provider fails
	// permanently. Transient failures are still retried against the provider.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// StorageConfig selects where community records and summaries are persisted
type StorageConfig struct {
	Backend string `json:"backend" yaml:"backend"`

	// Bucket is the NATS KV bucket for the nats backend
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Path is the database file for the sqlite backend
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	RedisAddr   string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisDB     int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	RedisPrefix string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty" yaml:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password      string        `json:"password,omitempty" yaml:"password,omitempty"`
	Token         string        `json:"token,omitempty" yaml:"token,omitempty"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Community: gc.DefaultConfig(),
		LLM: LLMConfig{
			Provider:    ProviderStatistical,
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   512,
			Timeout:     60 * time.Second,
		},
		Storage: StorageConfig{
			Backend:     StorageMemory,
			Bucket:      gc.CommunityBucket,
			Path:        "communities.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "semcommunity",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if err := c.Community.Validate(); err != nil {
		return fmt.Errorf("community: %w", err)
	}

	invalid := func(format string, args ...any) error {
		return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
			"config", "Validate", "validate config")
	}

	switch c.LLM.Provider {
	case ProviderStatistical:
	case ProviderOpenAI, ProviderHTTP:
		if c.LLM.Provider == ProviderHTTP && c.LLM.BaseURL == "" {
			return invalid("llm.base_url is required for provider %q", c.LLM.Provider)
		}
		if c.LLM.Provider == ProviderOpenAI && c.LLM.Model == "" {
			return invalid("llm.model is required for provider %q", c.LLM.Provider)
		}
	default:
		return invalid("unknown llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.RateLimit < 0 {
		return invalid("llm.rate_limit cannot be negative")
	}
	if c.LLM.Timeout < 0 {
		return invalid("llm.timeout cannot be negative")
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageNATS:
		if c.Storage.Bucket == "" {
			return invalid("storage.bucket is required for the nats backend")
		}
		if len(c.NATS.URLs) == 0 {
			return invalid("nats.urls is required for the nats backend")
		}
	case StorageSQLite:
		if c.Storage.Path == "" {
			return invalid("storage.path is required for the sqlite backend")
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return invalid("storage.redis_addr is required for the redis backend")
		}
	default:
		return invalid("unknown storage.backend %q", c.Storage.Backend)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("unknown log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("unknown log.format %q", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return invalid("metrics.addr is required when metrics are enabled")
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Redacted returns a copy with credentials masked, for logging
func (c *Config) Redacted() *Config {
	out := c.Clone()
	mask := func(s *string) {
		if *s != "" {
			*s = "****"
		}
	}
	mask(&out.LLM.APIKey)
	mask(&out.NATS.Password)
	mask(&out.NATS.Token)
	return out
}

// String returns a JSON representation of the config with credentials masked
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
