package cache

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semcommunity/errors"
	"github.com/c360/semcommunity/metric"
)

func newCaches(t *testing.T) map[string]Cache[string] {
	simple, err := NewSimple[string]()
	require.NoError(t, err)
	lru, err := NewLRU[string](100)
	require.NoError(t, err)
	return map[string]Cache[string]{"simple": simple, "lru": lru}
}

func TestCache_BasicOperations(t *testing.T) {
	for name, c := range newCaches(t) {
		t.Run(name, func(t *testing.T) {
			created, err := c.Set("0/alpha", "first")
			require.NoError(t, err)
			assert.True(t, created)

			created, err = c.Set("0/alpha", "second")
			require.NoError(t, err)
			assert.False(t, created, "replacing an entry is not a creation")

			v, ok := c.Get("0/alpha")
			assert.True(t, ok)
			assert.Equal(t, "second", v)

			_, ok = c.Get("missing")
			assert.False(t, ok)

			deleted, err := c.Delete("0/alpha")
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = c.Delete("0/alpha")
			require.NoError(t, err)
			assert.False(t, deleted)

			stats := c.Stats()
			assert.Equal(t, int64(1), stats.Hits())
			assert.Equal(t, int64(1), stats.Misses())
			assert.Equal(t, int64(2), stats.Sets())
			assert.Equal(t, int64(1), stats.Deletes())
			assert.NoError(t, c.Close())
		})
	}
}

func TestCache_EmptyKey(t *testing.T) {
	for name, c := range newCaches(t) {
		t.Run(name, func(t *testing.T) {
			_, err := c.Set("", "x")
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))

			_, err = c.Delete("")
			assert.Error(t, err)
		})
	}
}

func TestCache_ClearAndKeys(t *testing.T) {
	for name, c := range newCaches(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				_, err := c.Set(fmt.Sprintf("k%d", i), "v")
				require.NoError(t, err)
			}
			keys := c.Keys()
			sort.Strings(keys)
			assert.Equal(t, []string{"k0", "k1", "k2", "k3", "k4"}, keys)
			assert.Equal(t, 5, c.Size())

			require.NoError(t, c.Clear())
			assert.Equal(t, 0, c.Size())
			assert.Empty(t, c.Keys())
			assert.Equal(t, int64(5), c.Stats().MaxSize())
		})
	}
}

func TestLRU_Eviction(t *testing.T) {
	var evicted []string
	c, err := NewLRU[int](2, WithEvictionCallback[int](func(key string, _ int) {
		evicted = append(evicted, key)
	}))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Set("b", 2)
	_, _ = c.Get("a")
	_, _ = c.Set("c", 3)

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, []string{"c", "a"}, c.Keys())
	assert.Equal(t, int64(1), c.Stats().Evictions())
}

func TestNewLRU_InvalidSize(t *testing.T) {
	_, err := NewLRU[string](0)
	assert.Error(t, err)
}

func TestNew_SelectsImplementation(t *testing.T) {
	c, err := New[string](0)
	require.NoError(t, err)
	_, isSimple := c.(*simpleCache[string])
	assert.True(t, isSimple)

	c, err = New[string](3)
	require.NoError(t, err)
	_, isLRU := c.(*lruCache[string])
	assert.True(t, isLRU)
}

func TestCache_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := NewSimple[string](WithMetrics[string](registry, "summaries"))
	require.NoError(t, err)

	_, _ = c.Set("0/a", "x")
	_, _ = c.Get("0/a")
	_, _ = c.Get("0/b")

	sc := c.(*simpleCache[string])
	require.NotNil(t, sc.rec.metrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(sc.rec.metrics.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(sc.rec.metrics.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(sc.rec.metrics.size))

	_, err = NewSimple[string](WithMetrics[string](registry, "summaries"))
	assert.Error(t, err, "duplicate metrics prefix")
}

func TestCache_ConcurrentAccess(t *testing.T) {
	for name, c := range newCaches(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						key := fmt.Sprintf("%d/%d", w, i%10)
						_, _ = c.Set(key, "v")
						_, _ = c.Get(key)
					}
				}(w)
			}
			wg.Wait()
			assert.Equal(t, 80, c.Size())
		})
	}
}
