package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semcommunity/metric"
)

func noop(context.Context) error { return nil }

func TestNewPool_Defaults(t *testing.T) {
	assert.Equal(t, 1, NewPool[string](0).workers)
	assert.Equal(t, 4, NewPool[string](4).workers)
}

func TestRun_EmptyBatch(t *testing.T) {
	report, err := NewPool[string](2).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Completed)
	assert.Empty(t, report.Failed)
}

func TestRun_PlanErrors(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task[string]
		want  error
	}{
		{"nil run", []Task[string]{{Key: "a"}}, ErrNilTask},
		{"duplicate", []Task[string]{{Key: "a", Run: noop}, {Key: "a", Run: noop}}, ErrDuplicateTask},
		{"unknown dependency", []Task[string]{{Key: "a", DependsOn: []string{"x"}, Run: noop}}, ErrUnknownDependency},
		{"cycle", []Task[string]{
			{Key: "a", DependsOn: []string{"b"}, Run: noop},
			{Key: "b", DependsOn: []string{"a"}, Run: noop},
		}, ErrDependencyCycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPool[string](2).Run(context.Background(), tt.tasks)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRun_DependenciesFinishFirst(t *testing.T) {
	var mu sync.Mutex
	finished := make(map[string]bool)
	var violations []string

	mk := func(key string, deps ...string) Task[string] {
		return Task[string]{
			Key:       key,
			DependsOn: deps,
			Run: func(context.Context) error {
				mu.Lock()
				for _, d := range deps {
					if !finished[d] {
						violations = append(violations, key+" before "+d)
					}
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				finished[key] = true
				mu.Unlock()
				return nil
			},
		}
	}

	tasks := []Task[string]{
		mk("root", "mid-1", "mid-2"),
		mk("mid-1", "leaf-1", "leaf-2"),
		mk("mid-2", "leaf-3"),
		mk("leaf-1"),
		mk("leaf-2"),
		mk("leaf-3"),
	}

	report, err := NewPool[string](3).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.Len(t, report.Completed, 6)
	assert.Equal(t, "root", report.Completed[5])
}

func TestRun_RespectsConcurrencyLimit(t *testing.T) {
	var current, peak int64
	tasks := make([]Task[int], 20)
	for i := range tasks {
		tasks[i] = Task[int]{Key: i, Run: func(context.Context) error {
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		}}
	}

	_, err := NewPool[int](3).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
}

func TestRun_FailureDoesNotBlockDependents(t *testing.T) {
	boom := errors.New("boom")
	parentRan := false

	tasks := []Task[string]{
		{Key: "child", Run: func(context.Context) error { return boom }},
		{Key: "parent", DependsOn: []string{"child"}, Run: func(context.Context) error {
			parentRan = true
			return nil
		}},
	}

	report, err := NewPool[string](2).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.True(t, parentRan)
	assert.ErrorIs(t, report.Failed["child"], boom)
	assert.Equal(t, []string{"parent"}, report.Completed)
}

func TestRun_HaltStopsScheduling(t *testing.T) {
	storeDown := errors.New("store down")

	tasks := []Task[string]{
		{Key: "a", Run: func(context.Context) error { return Halt(storeDown) }},
		{Key: "b", DependsOn: []string{"a"}, Run: noop},
		{Key: "c", DependsOn: []string{"b"}, Run: noop},
	}

	report, err := NewPool[string](1).Run(context.Background(), tasks)
	require.ErrorIs(t, err, storeDown)
	assert.False(t, IsHalt(err), "Run returns the cause, not the halt wrapper")
	assert.ElementsMatch(t, []string{"b", "c"}, report.Skipped)
	assert.True(t, IsHalt(report.Failed["a"]))
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	tasks := []Task[int]{
		{Key: 1, Run: func(context.Context) error {
			cancel()
			return nil
		}},
		{Key: 2, DependsOn: []int{1}, Run: noop},
	}

	report, err := NewPool[int](1).Run(ctx, tasks)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1}, report.Completed)
	assert.Equal(t, []int{2}, report.Skipped)
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	tasks := []Task[string]{{Key: "p", Run: func(context.Context) error { panic("bad") }}}

	report, err := NewPool[string](1).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Failed["p"], ErrTaskPanic)
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	pool := NewPool[string](2, WithMetricsRegistry[string](registry, "test_pool"))
	require.NotNil(t, pool.metrics)

	tasks := []Task[string]{
		{Key: "ok", Run: noop},
		{Key: "bad", Run: func(context.Context) error { return errors.New("x") }},
	}
	_, err := pool.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(pool.metrics.started))
	assert.Equal(t, 1.0, testutil.ToFloat64(pool.metrics.failed))
	assert.Equal(t, 0.0, testutil.ToFloat64(pool.metrics.inFlight))

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)

	second := NewPool[string](2, WithMetricsRegistry[string](registry, "test_pool"))
	assert.Nil(t, second.metrics, "duplicate prefix runs without metrics")
}
