// Package worker runs batches of keyed tasks with a bounded number of
// concurrent workers, starting a task only once all of its dependencies
// have finished.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semcommunity/metric"
)

// Task is a unit of work identified by Key. Run starts after every task in
// DependsOn has finished, whether it succeeded or failed.
type Task[K comparable] struct {
	Key       K
	DependsOn []K
	Run       func(ctx context.Context) error
}

// Report describes the outcome of a Run.
type Report[K comparable] struct {
	// Completed lists successful tasks in completion order.
	Completed []K
	// Failed holds the error returned by each failed task.
	Failed map[K]error
	// Skipped lists tasks never started because the run halted or was cancelled.
	Skipped []K
}

// Pool schedules dependency-ordered task batches.
type Pool[K comparable] struct {
	workers int
	metrics *Metrics

	metricsRegistry *metric.MetricsRegistry
	metricsPrefix   string

	started   int64
	processed int64
	failed    int64
}

// Metrics holds Prometheus metrics for pool monitoring
type Metrics struct {
	inFlight       prometheus.Gauge
	started        prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	skipped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option represents a configuration option for the pool
type Option[K comparable] func(*Pool[K])

// WithMetricsRegistry registers pool metrics under prefix
func WithMetricsRegistry[K comparable](registry *metric.MetricsRegistry, prefix string) Option[K] {
	return func(p *Pool[K]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// NewPool creates a pool running at most workers tasks at once.
func NewPool[K comparable](workers int, opts ...Option[K]) *Pool[K] {
	if workers <= 0 {
		workers = 1
	}

	p := &Pool[K]{workers: workers}
	for _, opt := range opts {
		opt(p)
	}

	if p.metricsRegistry != nil && p.metricsPrefix != "" {
		p.initializeMetrics()
	}

	return p
}

func (p *Pool[K]) initializeMetrics() {
	prefix := p.metricsPrefix

	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_in_flight",
			Help: "Tasks currently running",
		}),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_started_total",
			Help: "Total tasks started",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_processed_total",
			Help: "Total tasks finished",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_failed_total",
			Help: "Total tasks that returned an error",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_skipped_total",
			Help: "Total tasks skipped after a halt or cancellation",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_processing_duration_seconds",
			Help:    "Time spent running tasks",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"status"}),
	}

	// A prefix already registered by an earlier pool keeps its collectors;
	// this pool then runs without metrics.
	serviceName := "worker_pool"
	r := p.metricsRegistry
	if r.RegisterGauge(serviceName, prefix+"_in_flight", m.inFlight) != nil ||
		r.RegisterCounter(serviceName, prefix+"_started_total", m.started) != nil ||
		r.RegisterCounter(serviceName, prefix+"_processed_total", m.processed) != nil ||
		r.RegisterCounter(serviceName, prefix+"_failed_total", m.failed) != nil ||
		r.RegisterCounter(serviceName, prefix+"_skipped_total", m.skipped) != nil ||
		r.RegisterHistogramVec(serviceName, prefix+"_processing_duration_seconds", m.processingTime) != nil {
		return
	}

	p.metrics = m
}

type taskResult struct {
	idx      int
	err      error
	duration time.Duration
}

// Run executes tasks and blocks until all reachable tasks finished. A task
// failure does not stop the run unless the task returned a Halt error, in
// which case Run returns the unwrapped cause. Cancellation of ctx stops new
// tasks from starting and Run returns ctx.Err(). The report is always
// populated with whatever finished.
func (p *Pool[K]) Run(ctx context.Context, tasks []Task[K]) (*Report[K], error) {
	report := &Report[K]{Failed: make(map[K]error)}

	indegree, dependents, err := plan(tasks)
	if err != nil {
		return report, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make([]int, 0, len(tasks))
	for i := range tasks {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	results := make(chan taskResult, len(tasks))
	done := make([]bool, len(tasks))
	running := 0
	var haltErr error

	for len(ready) > 0 || running > 0 {
		for haltErr == nil && runCtx.Err() == nil && running < p.workers && len(ready) > 0 {
			idx := ready[0]
			ready = ready[1:]
			running++
			p.onStart()
			go p.execute(runCtx, idx, tasks[idx], results)
		}

		if running == 0 {
			break
		}

		res := <-results
		running--
		done[res.idx] = true
		p.onFinish(res)

		key := tasks[res.idx].Key
		if res.err != nil {
			report.Failed[key] = res.err
			if IsHalt(res.err) && haltErr == nil {
				haltErr = res.err
				cancel()
			}
		} else {
			report.Completed = append(report.Completed, key)
		}

		for _, dep := range dependents[res.idx] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	for i, t := range tasks {
		if !done[i] {
			report.Skipped = append(report.Skipped, t.Key)
		}
	}
	if p.metrics != nil {
		p.metrics.skipped.Add(float64(len(report.Skipped)))
	}

	if haltErr != nil {
		var he *HaltError
		if errors.As(haltErr, &he) {
			return report, he.Err
		}
		return report, haltErr
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pool[K]) execute(ctx context.Context, idx int, task Task[K], results chan<- taskResult) {
	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
			}
		}()
		err = task.Run(ctx)
	}()
	results <- taskResult{idx: idx, err: err, duration: time.Since(start)}
}

func (p *Pool[K]) onStart() {
	atomic.AddInt64(&p.started, 1)
	if p.metrics != nil {
		p.metrics.started.Inc()
		p.metrics.inFlight.Inc()
	}
}

func (p *Pool[K]) onFinish(res taskResult) {
	atomic.AddInt64(&p.processed, 1)
	if res.err != nil {
		atomic.AddInt64(&p.failed, 1)
	}
	if p.metrics != nil {
		p.metrics.inFlight.Dec()
		p.metrics.processed.Inc()
		status := "success"
		if res.err != nil {
			p.metrics.failed.Inc()
			status = "error"
		}
		p.metrics.processingTime.WithLabelValues(status).Observe(res.duration.Seconds())
	}
}

// Stats returns cumulative pool statistics across runs
func (p *Pool[K]) Stats() PoolStats {
	return PoolStats{
		Workers:   p.workers,
		Started:   atomic.LoadInt64(&p.started),
		Processed: atomic.LoadInt64(&p.processed),
		Failed:    atomic.LoadInt64(&p.failed),
	}
}

// PoolStats represents pool statistics
type PoolStats struct {
	Workers   int   `json:"workers"`
	Started   int64 `json:"started"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// plan validates the batch and returns, per task index, the number of
// unfinished dependencies and the indices depending on it.
func plan[K comparable](tasks []Task[K]) ([]int, [][]int, error) {
	index := make(map[K]int, len(tasks))
	for i, t := range tasks {
		if t.Run == nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrNilTask, t.Key)
		}
		if _, dup := index[t.Key]; dup {
			return nil, nil, fmt.Errorf("%w: %v", ErrDuplicateTask, t.Key)
		}
		index[t.Key] = i
	}

	indegree := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		seen := make(map[K]struct{}, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			j, ok := index[dep]
			if !ok {
				return nil, nil, fmt.Errorf("%w: %v depends on %v", ErrUnknownDependency, t.Key, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// Kahn's algorithm over a copy to reject cycles before anything runs.
	remaining := append([]int(nil), indegree...)
	queue := make([]int, 0, len(tasks))
	for i, d := range remaining {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	visited := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		visited++
		for _, j := range dependents[i] {
			remaining[j]--
			if remaining[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if visited != len(tasks) {
		return nil, nil, ErrDependencyCycle
	}

	return indegree, dependents, nil
}
