// Package redisstore persists community records and summaries in Redis.
//
// Records and summaries live in two hashes, {prefix}:community:records and
// {prefix}:community:summaries, keyed by "level/id".
package redisstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

// Options configures the Redis connection.
type Options struct {
	// Addr is host:port of the Redis server
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key (default "semcommunity")
	Prefix string

	// ConnectTimeout bounds the initial ping (default 5s)
	ConnectTimeout time.Duration
}

// Store is a Redis-backed community persister.
type Store struct {
	client       *redis.Client
	recordsKey   string
	summariesKey string
}

var _ gc.CommunityPersister = (*Store)(nil)

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: redis address is required", errors.ErrInvalidConfig),
			"redisstore", "Dial", "validate options")
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.ConnectTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WrapTransient(err, "redisstore", "Dial", "connect to redis")
	}

	return New(client, opts.Prefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "semcommunity"
	}
	return &Store{
		client:       client,
		recordsKey:   prefix + ":community:records",
		summariesKey: prefix + ":community:summaries",
	}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// field renders the hash field of a community key.
func field(key gc.CommunityKey) string {
	return strconv.Itoa(key.Level) + "/" + key.ID
}

func parseField(f string) (gc.CommunityKey, error) {
	levelStr, id, ok := strings.Cut(f, "/")
	if !ok {
		return gc.CommunityKey{}, fmt.Errorf("malformed community field %q", f)
	}
	level, err := strconv.Atoi(levelStr)
	if err != nil {
		return gc.CommunityKey{}, fmt.Errorf("malformed level in field %q: %w", f, err)
	}
	return gc.CommunityKey{ID: id, Level: level}, nil
}

// WriteCommunityRecord stores a record, replacing any previous version
func (s *Store) WriteCommunityRecord(ctx context.Context, record *gc.CommunityRecord) error {
	if record == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "redisstore", "WriteCommunityRecord", "record is nil")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapInvalid(err, "redisstore", "WriteCommunityRecord", "marshal record")
	}
	if err := s.client.HSet(ctx, s.recordsKey, field(record.Key()), data).Err(); err != nil {
		return errors.WrapTransient(err, "redisstore", "WriteCommunityRecord", "hset record")
	}
	return nil
}

// WriteSummary stores a summary, replacing any previous version
func (s *Store) WriteSummary(ctx context.Context, summary *gc.CommunitySummary) error {
	if summary == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "redisstore", "WriteSummary", "summary is nil")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return errors.WrapInvalid(err, "redisstore", "WriteSummary", "marshal summary")
	}
	if err := s.client.HSet(ctx, s.summariesKey, field(summary.Key()), data).Err(); err != nil {
		return errors.WrapTransient(err, "redisstore", "WriteSummary", "hset summary")
	}
	return nil
}

// ReadSummary returns the stored summary for key, or nil if there is none
func (s *Store) ReadSummary(ctx context.Context, key gc.CommunityKey) (*gc.CommunitySummary, error) {
	data, err := s.client.HGet(ctx, s.summariesKey, field(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "redisstore", "ReadSummary", "hget summary")
	}

	var summary gc.CommunitySummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, errors.WrapInvalid(err, "redisstore", "ReadSummary", "unmarshal summary")
	}
	return &summary, nil
}

// ListCommunityRecords returns every stored record ordered by level, then ID
func (s *Store) ListCommunityRecords(ctx context.Context) ([]*gc.CommunityRecord, error) {
	all, err := s.client.HGetAll(ctx, s.recordsKey).Result()
	if err != nil {
		return nil, errors.WrapTransient(err, "redisstore", "ListCommunityRecords", "hgetall records")
	}

	records := make([]*gc.CommunityRecord, 0, len(all))
	for f, data := range all {
		want, err := parseField(f)
		if err != nil {
			return nil, errors.WrapInvalid(err, "redisstore", "ListCommunityRecords", "parse field")
		}
		var record gc.CommunityRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, errors.WrapInvalid(err, "redisstore", "ListCommunityRecords", "unmarshal record")
		}
		if record.Key() != want {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: record %s stored under %s", errors.ErrInvalidData, record.Key(), want),
				"redisstore", "ListCommunityRecords", "verify record key")
		}
		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Key().Less(records[j].Key())
	})
	return records, nil
}

// ResetCommunities deletes every stored record and summary
func (s *Store) ResetCommunities(ctx context.Context) error {
	if err := s.client.Del(ctx, s.recordsKey, s.summariesKey).Err(); err != nil {
		return errors.WrapTransient(err, "redisstore", "ResetCommunities", "delete hashes")
	}
	return nil
}
