// Package main implements the semcommunity command. It partitions a graph
// into a hierarchy of communities, summarizes every community and writes
// the result as JSON.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/semcommunity/config"
	"github.com/c360/semcommunity/metric"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
	"github.com/c360/semcommunity/pkg/llm"
	"github.com/c360/semcommunity/pkg/memgraph"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semcommunity"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cliCfg, err := parseFlags(args, stderr)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format, stderr)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config", cfg.Redacted())
		return nil
	}
	if cliCfg.WriteConfig != "" {
		if err := cfg.SaveToFile(cliCfg.WriteConfig); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		logger.Info("Configuration written", "path", cliCfg.WriteConfig)
		return nil
	}

	logger.Info("Starting semcommunity",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"graph_path", cliCfg.GraphPath)

	return execute(ctx, cliCfg, cfg, logger, stdout)
}

// loadConfiguration layers the config file (if any) over the defaults and
// applies the log flags.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	return cfg, nil
}

// execute wires the graph, persistence backend and generator, runs the
// build and writes the report.
func execute(ctx context.Context, cliCfg *CLIConfig, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	graph := memgraph.New()
	if cliCfg.GraphPath != "" {
		g, err := memgraph.LoadFile(cliCfg.GraphPath)
		if err != nil {
			return fmt.Errorf("load graph: %w", err)
		}
		graph = g
		logger.Info("Graph loaded", "nodes", graph.NodeCount(), "edges", graph.EdgeCount())
	}

	persister, closePersister, err := openPersister(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	defer closePersister()

	gen, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("create text generator: %w", err)
	}

	registry := metric.NewMetricsRegistry()
	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, registry)
		if _, err := server.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("Serving metrics", "address", server.Address())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				logger.Warn("Failed to stop metrics server", "error", err)
			}
		}()
	}

	store, err := gc.NewStore(gc.NewGraphStore(graph, persister), gen, cfg.Community,
		gc.WithLogger(logger),
		gc.WithMetricsRegistry(registry))
	if err != nil {
		return fmt.Errorf("create community store: %w", err)
	}

	buildCtx := ctx
	if cliCfg.Timeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, cliCfg.Timeout)
		defer cancel()
	}

	var result *gc.BuildResult
	var buildErr error
	if cliCfg.Resume {
		result, buildErr = store.ResumeSummaries(buildCtx)
	} else {
		result, buildErr = store.BuildCommunities(buildCtx)
	}

	// A failed build still reports what it finished
	if result != nil {
		if err := writeReport(cliCfg.OutputPath, stdout, newReport(ctx, store, result, cliCfg.Level)); err != nil {
			return stderrors.Join(buildErr, fmt.Errorf("write report: %w", err))
		}
	}
	if buildErr != nil {
		return buildErr
	}

	logger.Info("Build finished",
		"build_id", result.BuildID,
		"communities", result.Communities,
		"summarized", result.Summarized,
		"reused", result.Reused,
		"failed", len(result.Failed),
		"duration", result.Duration)

	if cliCfg.Wait && cfg.Metrics.Enabled {
		logger.Info("Waiting for interrupt")
		<-ctx.Done()
	}
	return nil
}
