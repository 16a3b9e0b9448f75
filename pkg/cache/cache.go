// Package cache provides generic, thread-safe in-process caches.
//
//   - Simple: no eviction, entries live until deleted or cleared
//   - LRU: bounded by entry count, least recently used entry evicted first
//
// Statistics are always collected. Prometheus metrics are optional via WithMetrics.
package cache

import (
	"github.com/c360/semcommunity/errors"
)

// Cache represents a generic cache keyed by string.
type Cache[V any] interface {
	// Get retrieves a value by key.
	Get(key string) (V, bool)

	// Set stores a value. Returns true if a new entry was created, false if updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns all keys currently in the cache.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics

	// Close releases resources held by the cache.
	Close() error
}

// EvictCallback is called when an entry is evicted or cleared from the cache.
type EvictCallback[V any] func(key string, value V)

// NewSimple creates a cache without eviction.
func NewSimple[V any](options ...Option[V]) (Cache[V], error) {
	return newSimpleCache(applyOptions(options...))
}

// NewLRU creates a cache holding at most maxSize entries.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLRU", "maxSize must be positive")
	}
	return newLRUCache(maxSize, applyOptions(options...))
}

// New returns an LRU cache when maxSize is positive and a simple cache otherwise.
func New[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	if maxSize > 0 {
		return NewLRU(maxSize, options...)
	}
	return NewSimple(options...)
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

// recorder fans operation counts out to statistics and optional metrics.
type recorder struct {
	stats   *Statistics
	metrics *cacheMetrics
}

func newRecorder[V any](opts *cacheOptions[V], method string) (recorder, error) {
	r := recorder{stats: NewStatistics()}
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		m, err := newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return r, errors.WrapTransient(err, "cache", method, "metrics registration")
		}
		r.metrics = m
	}
	return r, nil
}

func (r recorder) hit() {
	r.stats.Hit()
	if r.metrics != nil {
		r.metrics.hits.Inc()
	}
}

func (r recorder) miss() {
	r.stats.Miss()
	if r.metrics != nil {
		r.metrics.misses.Inc()
	}
}

func (r recorder) set() {
	r.stats.Set()
	if r.metrics != nil {
		r.metrics.sets.Inc()
	}
}

func (r recorder) delete() {
	r.stats.Delete()
	if r.metrics != nil {
		r.metrics.deletes.Inc()
	}
}

func (r recorder) eviction() {
	r.stats.Eviction()
	if r.metrics != nil {
		r.metrics.evictions.Inc()
	}
}

func (r recorder) size(n int) {
	r.stats.UpdateSize(int64(n))
	if r.metrics != nil {
		r.metrics.size.Set(float64(n))
	}
}
