package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/semcommunity/errors"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "SEMCOMMUNITY"

// Loader handles configuration loading with layers and overrides.
// Each layer only overrides the fields it sets.
type Loader struct {
	layers    []string
	envPrefix string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: EnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. Later layers take precedence.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// LoadFile loads configuration from a single file over the defaults
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load applies the defaults, every layer in order, then environment
// overrides, and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		data, err := safeReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "read "+path)
		}
		if err := decodeInto(cfg, bytes.NewReader(data)); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%s: %w", path, err), "Loader", "Load", "decode layer")
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a single YAML or JSON document over the defaults without
// environment overrides.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeInto(cfg, r); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "decode config")
	}
	return cfg, nil
}

// decodeInto decodes YAML (or JSON, which is valid YAML) onto cfg, keeping
// fields absent from the document.
func decodeInto(cfg *Config, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
	}
	return nil
}

// envOverride applies one environment variable to cfg.
type envOverride struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envOverrides = []envOverride{
	{"ALGORITHM", func(c *Config, v string) error { c.Community.Algorithm = v; return nil }},
	{"MAX_HIERARCHICAL_LEVEL", intOverride(func(c *Config) *int { return &c.Community.MaxHierarchicalLevel })},
	{"CONCURRENCY", intOverride(func(c *Config) *int { return &c.Community.Concurrency })},
	{"MAX_PAYLOAD_SIZE", intOverride(func(c *Config) *int { return &c.Community.MaxPayloadSize })},
	{"GENERATE_TIMEOUT", durationOverride(func(c *Config) *time.Duration { return &c.Community.GenerateTimeout })},
	{"ENABLE_PERSISTENCE", boolOverride(func(c *Config) *bool { return &c.Community.EnablePersistence })},
	{"LLM_PROVIDER", func(c *Config, v string) error { c.LLM.Provider = v; return nil }},
	{"LLM_BASE_URL", func(c *Config, v string) error { c.LLM.BaseURL = v; return nil }},
	{"LLM_MODEL", func(c *Config, v string) error { c.LLM.Model = v; return nil }},
	{"LLM_API_KEY", func(c *Config, v string) error { c.LLM.APIKey = v; return nil }},
	{"LLM_RATE_LIMIT", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.LLM.RateLimit = f
		return nil
	}},
	{"STORAGE_BACKEND", func(c *Config, v string) error { c.Storage.Backend = v; return nil }},
	{"STORAGE_PATH", func(c *Config, v string) error { c.Storage.Path = v; return nil }},
	{"REDIS_ADDR", func(c *Config, v string) error { c.Storage.RedisAddr = v; return nil }},
	{"NATS_URLS", func(c *Config, v string) error { c.NATS.URLs = splitList(v); return nil }},
	{"NATS_USERNAME", func(c *Config, v string) error { c.NATS.Username = v; return nil }},
	{"NATS_PASSWORD", func(c *Config, v string) error { c.NATS.Password = v; return nil }},
	{"NATS_TOKEN", func(c *Config, v string) error { c.NATS.Token = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
	{"METRICS_ADDR", func(c *Config, v string) error { c.Metrics.Addr = v; c.Metrics.Enabled = true; return nil }},
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		key := l.envPrefix + "_" + o.name
		val, ok := l.lookupEnv(key)
		if !ok || val == "" {
			continue
		}
		if err := validateEnvVar(key, val); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "validate "+key)
		}
		if err := o.apply(cfg, val); err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s=%q: %v", errors.ErrInvalidConfig, key, val, err),
				"Loader", "applyEnvOverrides", "apply "+key)
		}
	}
	return nil
}

func intOverride(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolOverride(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationOverride(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SaveToFile writes the configuration as YAML with owner-only permissions
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "SaveToFile", "marshal config")
	}
	return safeWriteFile(path, data)
}
