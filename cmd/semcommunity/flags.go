package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	GraphPath   string
	OutputPath  string
	LogLevel    string
	LogFormat   string
	Level       int
	Resume      bool
	Timeout     time.Duration
	Wait        bool
	ShowVersion bool
	Validate    bool
	WriteConfig string
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ConfigPath, "config", getEnv("SEMCOMMUNITY_CONFIG", ""),
		"Path to YAML or JSON configuration file (env: SEMCOMMUNITY_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c", getEnv("SEMCOMMUNITY_CONFIG", ""),
		"Path to configuration file (shorthand)")

	fs.StringVar(&cfg.GraphPath, "graph", getEnv("SEMCOMMUNITY_GRAPH", ""),
		"Path to the graph file (env: SEMCOMMUNITY_GRAPH)")
	fs.StringVar(&cfg.GraphPath, "g", getEnv("SEMCOMMUNITY_GRAPH", ""),
		"Path to the graph file (shorthand)")

	fs.StringVar(&cfg.OutputPath, "output", "-",
		"Write the community report to this file, - for stdout")
	fs.StringVar(&cfg.OutputPath, "o", "-", "Report file (shorthand)")

	fs.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	fs.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text (overrides config)")

	fs.IntVar(&cfg.Level, "level", -1, "Only report communities at this level, -1 for all")
	fs.BoolVar(&cfg.Resume, "resume", false,
		"Resume summarization from persisted records instead of rebuilding")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Abort the build after this long, 0 for no limit")
	fs.BoolVar(&cfg.Wait, "wait", false,
		"Keep serving metrics after the build until interrupted")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")
	fs.StringVar(&cfg.WriteConfig, "write-config", "",
		"Write the effective configuration (files, env and flags applied) to this YAML file and exit")

	fs.Usage = func() {
		printDetailedHelp(fs, stderr)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion {
		return nil
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.Validate || cfg.WriteConfig != "" {
		return nil
	}

	if cfg.GraphPath == "" && !cfg.Resume {
		return fmt.Errorf("a graph file is required (-graph)")
	}
	if cfg.GraphPath != "" {
		if _, err := os.Stat(cfg.GraphPath); err != nil {
			return fmt.Errorf("graph file not found: %s", cfg.GraphPath)
		}
	}
	if cfg.Level < -1 {
		return fmt.Errorf("invalid level: %d", cfg.Level)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s", cfg.Timeout)
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - Hierarchical community summaries for knowledge graphs

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Build communities of a graph with the default statistical summarizer
  %s --graph=graph.yaml

  # Use an OpenAI-compatible model and persist to SQLite
  export SEMCOMMUNITY_LLM_PROVIDER=openai
  export SEMCOMMUNITY_LLM_API_KEY=sk-...
  %s --config=config.yaml --graph=graph.yaml --output=communities.json

  # Finish an interrupted build from persisted records
  %s --config=config.yaml --graph=graph.yaml --resume

  # Validate configuration only
  %s --config=config.yaml --validate

  # Snapshot the effective configuration, environment overrides included
  %s --config=config.yaml --write-config=effective.yaml

Version: %s
Build: %s
`, appName, appName, appName, appName, appName, Version, BuildTime)
}

// getEnv returns the environment value of key or defaultValue when unset
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
