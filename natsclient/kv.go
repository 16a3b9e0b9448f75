package natsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/semcommunity/pkg/retry"
)

// Well-known KV errors
var (
	ErrKVKeyNotFound = errors.New("kv: key not found")
)

// KVEntry wraps a KV entry with its revision
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// KVOptions configures KV operations behavior
type KVOptions struct {
	Timeout time.Duration // Per-operation timeout
	Retry   retry.Config  // Applied to writes that fail transiently
}

// DefaultKVOptions returns sensible defaults
func DefaultKVOptions() KVOptions {
	return KVOptions{
		Timeout: 5 * time.Second,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 20 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Multiplier:   2.0,
			AddJitter:    true,
		},
	}
}

// KVStore provides timeout- and retry-aware operations over a bucket
type KVStore struct {
	bucket  jetstream.KeyValue
	options KVOptions
	logger  *slog.Logger
}

// NewKVStore creates a KV store over bucket
func (c *Client) NewKVStore(bucket jetstream.KeyValue, opts ...func(*KVOptions)) *KVStore {
	return NewKVStore(bucket, c.logger, opts...)
}

// NewKVStore creates a KV store over bucket without a Client
func NewKVStore(bucket jetstream.KeyValue, logger *slog.Logger, opts ...func(*KVOptions)) *KVStore {
	options := DefaultKVOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{bucket: bucket, options: options, logger: logger}
}

// Bucket returns the bucket name
func (kv *KVStore) Bucket() string {
	return kv.bucket.Bucket()
}

func (kv *KVStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.options.Timeout > 0 {
		return context.WithTimeout(ctx, kv.options.Timeout)
	}
	return ctx, func() {}
}

// Get retrieves a value with its revision
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	entry, err := kv.bucket.Get(ctx, key)
	if err != nil {
		if IsKVNotFoundError(err) {
			return nil, ErrKVKeyNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}

	return &KVEntry{Key: key, Value: entry.Value(), Revision: entry.Revision()}, nil
}

// Put writes a key (last writer wins), retrying transient failures
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	return retry.DoWithResult(ctx, kv.options.Retry, func() (uint64, error) {
		opCtx, cancel := kv.applyTimeout(ctx)
		defer cancel()

		rev, err := kv.bucket.Put(opCtx, key, value)
		if err != nil {
			return 0, fmt.Errorf("kv put %s: %w", key, err)
		}
		kv.logger.Debug("KV put", "bucket", kv.bucket.Bucket(), "key", key, "revision", rev)
		return rev, nil
	})
}

// Delete removes a key. Deleting a missing key is not an error.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	if err := kv.bucket.Delete(ctx, key); err != nil && !IsKVNotFoundError(err) {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix; an empty prefix lists everything
func (kv *KVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	all, err := kv.bucket.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv keys: %w", err)
	}

	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// IsKVNotFoundError checks if error indicates key not found
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrKVKeyNotFound) || errors.Is(err, jetstream.ErrKeyNotFound) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "key not found") || strings.Contains(errMsg, "10037")
}
