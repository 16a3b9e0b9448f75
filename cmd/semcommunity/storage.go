package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/semcommunity/config"
	"github.com/c360/semcommunity/natsclient"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
	"github.com/c360/semcommunity/pkg/graphclustering/redisstore"
	"github.com/c360/semcommunity/pkg/graphclustering/sqlitestore"
)

// openPersister opens the configured persistence backend. The returned
// function releases it.
func openPersister(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gc.CommunityPersister, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return gc.NewMemoryCommunityStorage(), noop, nil

	case config.StorageSQLite:
		s, err := sqlitestore.Open(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using SQLite storage", "path", s.Path())
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close SQLite storage", "error", err)
			}
		}, nil

	case config.StorageRedis:
		s, err := redisstore.Dial(ctx, redisstore.Options{
			Addr:   cfg.Storage.RedisAddr,
			DB:     cfg.Storage.RedisDB,
			Prefix: cfg.Storage.RedisPrefix,
		})
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using Redis storage", "addr", cfg.Storage.RedisAddr)
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close Redis storage", "error", err)
			}
		}, nil

	case config.StorageNATS:
		return openNATSPersister(ctx, cfg, logger)

	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openNATSPersister connects to NATS and opens (creating if needed) the
// community KV bucket.
func openNATSPersister(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gc.CommunityPersister, func(), error) {
	noop := func() {}

	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(logger),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return nil, noop, err
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connCtx); err != nil {
		return nil, noop, fmt.Errorf("connect to NATS: %w", err)
	}
	closeClient := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("Failed to close NATS connection", "error", err)
		}
	}
	if err := client.WaitForConnection(connCtx); err != nil {
		closeClient()
		return nil, noop, fmt.Errorf("NATS connection timeout: %w", err)
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Storage.Bucket,
		Description: "Community records and summaries",
		History:     1,
	})
	if err != nil {
		closeClient()
		return nil, noop, err
	}

	logger.Info("Using NATS KV storage", "bucket", cfg.Storage.Bucket)
	return gc.NewKVCommunityStorage(client.NewKVStore(bucket)), closeClient, nil
}
