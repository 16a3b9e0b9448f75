package graphclustering

import (
	"fmt"
	"time"

	"github.com/c360/semcommunity/errors"
	"github.com/c360/semcommunity/pkg/retry"
)

// Bounds applied by Validate.
const (
	// DefaultMaxHierarchicalLevel is the default highest level index requested from clustering
	DefaultMaxHierarchicalLevel = 3

	// MaxHierarchicalLevelLimit is the largest accepted highest level index
	MaxHierarchicalLevelLimit = 10

	// MinPayloadSize is the smallest non-zero payload bound accepted
	MinPayloadSize = 64
)

// TruncationPolicy selects how members are ranked when a payload must be truncated.
type TruncationPolicy string

const (
	// TruncateByDegree ranks members by the number of community edges they touch
	TruncateByDegree TruncationPolicy = "degree"

	// TruncateByPageRank ranks members by PageRank over the community subgraph
	TruncateByPageRank TruncationPolicy = "pagerank"
)

// RetryConfig bounds retries of transient text generation failures.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`
	Jitter       bool          `json:"jitter" yaml:"jitter"`
}

func (c RetryConfig) toRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
		AddJitter:    c.Jitter,
	}
}

// Config configures a community Store.
type Config struct {
	Algorithm            string `json:"algorithm" yaml:"algorithm"`
	MaxHierarchicalLevel int    `json:"max_hierarchical_level" yaml:"max_hierarchical_level"`

	// Concurrency bounds in-flight text generation calls
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	FetchBatchSize   int `json:"fetch_batch_size" yaml:"fetch_batch_size"`
	FetchConcurrency int `json:"fetch_concurrency" yaml:"fetch_concurrency"`

	// MaxPayloadSize bounds the textual payload of a record in bytes; 0 disables truncation
	MaxPayloadSize   int              `json:"max_payload_size" yaml:"max_payload_size"`
	TruncationPolicy TruncationPolicy `json:"truncation_policy" yaml:"truncation_policy"`

	// GenerateTimeout is the per-attempt deadline for text generation
	GenerateTimeout time.Duration `json:"generate_timeout" yaml:"generate_timeout"`
	Retry           RetryConfig   `json:"retry" yaml:"retry"`

	EnablePersistence bool `json:"enable_persistence" yaml:"enable_persistence"`

	// CacheSize bounds the summary cache; 0 keeps every summary
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// DefaultConfig returns the default Store configuration.
func DefaultConfig() Config {
	return Config{
		Algorithm:            AlgorithmHierarchicalLeiden,
		MaxHierarchicalLevel: DefaultMaxHierarchicalLevel,
		Concurrency:          4,
		FetchBatchSize:       256,
		FetchConcurrency:     4,
		MaxPayloadSize:       8192,
		TruncationPolicy:     TruncateByDegree,
		GenerateTimeout:      60 * time.Second,
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		EnablePersistence: true,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
			"graphclustering", "Validate", "validate config")
	}

	if c.Algorithm == "" {
		return invalid("algorithm is required")
	}
	if c.MaxHierarchicalLevel < 1 || c.MaxHierarchicalLevel > MaxHierarchicalLevelLimit {
		return invalid("max_hierarchical_level must be between 1 and %d, got %d", MaxHierarchicalLevelLimit, c.MaxHierarchicalLevel)
	}
	if c.Concurrency < 1 {
		return invalid("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.FetchBatchSize < 1 {
		return invalid("fetch_batch_size must be positive, got %d", c.FetchBatchSize)
	}
	if c.FetchConcurrency < 1 {
		return invalid("fetch_concurrency must be positive, got %d", c.FetchConcurrency)
	}
	if c.MaxPayloadSize < 0 || (c.MaxPayloadSize > 0 && c.MaxPayloadSize < MinPayloadSize) {
		return invalid("max_payload_size must be 0 or at least %d, got %d", MinPayloadSize, c.MaxPayloadSize)
	}
	switch c.TruncationPolicy {
	case TruncateByDegree, TruncateByPageRank:
	default:
		return invalid("unknown truncation_policy %q", c.TruncationPolicy)
	}
	if c.GenerateTimeout <= 0 {
		return invalid("generate_timeout must be positive, got %s", c.GenerateTimeout)
	}
	if c.Retry.MaxAttempts < 1 {
		return invalid("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if err := c.Retry.toRetryConfig().Validate(); err != nil {
		return invalid("retry: %v", err)
	}
	if c.CacheSize < 0 {
		return invalid("cache_size cannot be negative, got %d", c.CacheSize)
	}
	return nil
}
