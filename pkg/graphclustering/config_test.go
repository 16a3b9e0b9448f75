package graphclustering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/c360/semcommunity/errors"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AlgorithmHierarchicalLeiden, cfg.Algorithm)
	assert.Equal(t, DefaultMaxHierarchicalLevel, cfg.MaxHierarchicalLevel)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty algorithm", func(c *Config) { c.Algorithm = "" }},
		{"zero levels", func(c *Config) { c.MaxHierarchicalLevel = 0 }},
		{"too many levels", func(c *Config) { c.MaxHierarchicalLevel = MaxHierarchicalLevelLimit + 1 }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"zero batch size", func(c *Config) { c.FetchBatchSize = 0 }},
		{"zero fetch concurrency", func(c *Config) { c.FetchConcurrency = 0 }},
		{"negative payload", func(c *Config) { c.MaxPayloadSize = -1 }},
		{"tiny payload", func(c *Config) { c.MaxPayloadSize = MinPayloadSize - 1 }},
		{"unknown policy", func(c *Config) { c.TruncationPolicy = "random" }},
		{"zero timeout", func(c *Config) { c.GenerateTimeout = 0 }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"inverted delays", func(c *Config) { c.Retry.MaxDelay = time.Millisecond; c.Retry.InitialDelay = time.Second }},
		{"negative cache", func(c *Config) { c.CacheSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConfig_UnboundedPayloadAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPayloadSize = 0
	assert.NoError(t, cfg.Validate())
}

func TestConfig_YAML(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte(`
algorithm: hierarchical_leiden
max_hierarchical_level: 4
concurrency: 8
fetch_batch_size: 100
fetch_concurrency: 2
max_payload_size: 4096
truncation_policy: pagerank
generate_timeout: 30s
retry:
  max_attempts: 5
  initial_delay: 250ms
  max_delay: 5s
  multiplier: 1.5
`), &cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.MaxHierarchicalLevel)
	assert.Equal(t, TruncateByPageRank, cfg.TruncationPolicy)
	assert.Equal(t, 30*time.Second, cfg.GenerateTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
}
