package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semcommunity/errors"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderStatistical, cfg.LLM.Provider)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad community", func(c *Config) { c.Community.Concurrency = 0 }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "oracle" }},
		{"http without url", func(c *Config) { c.LLM.Provider = ProviderHTTP; c.LLM.BaseURL = "" }},
		{"openai without model", func(c *Config) { c.LLM.Provider = ProviderOpenAI; c.LLM.Model = "" }},
		{"negative rate limit", func(c *Config) { c.LLM.RateLimit = -1 }},
		{"negative timeout", func(c *Config) { c.LLM.Timeout = -1 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }},
		{"nats without bucket", func(c *Config) { c.Storage.Backend = StorageNATS; c.Storage.Bucket = "" }},
		{"nats without urls", func(c *Config) { c.Storage.Backend = StorageNATS; c.NATS.URLs = nil }},
		{"sqlite without path", func(c *Config) { c.Storage.Backend = StorageSQLite; c.Storage.Path = "" }},
		{"redis without addr", func(c *Config) { c.Storage.Backend = StorageRedis; c.Storage.RedisAddr = "" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConfig_ValidateBackends(t *testing.T) {
	for _, backend := range []string{StorageMemory, StorageNATS, StorageSQLite, StorageRedis} {
		cfg := Default()
		cfg.Storage.Backend = backend
		assert.NoError(t, cfg.Validate(), backend)
	}

	cfg := Default()
	cfg.LLM.Provider = ProviderHTTP
	cfg.LLM.BaseURL = "http://localhost:8083"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	require.Equal(t, cfg, clone)

	clone.NATS.URLs[0] = "nats://elsewhere:4222"
	clone.Community.Concurrency = 99
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URLs[0])
	assert.NotEqual(t, 99, cfg.Community.Concurrency)

	var nilCfg *Config
	assert.Equal(t, Default(), nilCfg.Clone())
}

func TestConfig_RedactedMasksCredentials(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "sk-secret"
	cfg.NATS.Token = "tok-secret"

	red := cfg.Redacted()
	assert.Equal(t, "****", red.LLM.APIKey)
	assert.Equal(t, "****", red.NATS.Token)
	assert.Empty(t, red.NATS.Password)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey)

	s := cfg.String()
	assert.NotContains(t, s, "secret")
	assert.True(t, strings.Contains(s, `"provider": "statistical"`))
}
