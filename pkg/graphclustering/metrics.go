package graphclustering

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semcommunity/metric"
)

const metricsService = "graphclustering"

// Build outcomes recorded in the builds_total counter.
const (
	outcomeCompleted   = "completed"
	outcomeFailed      = "failed"
	outcomeUnavailable = "unavailable"
	outcomeEmpty       = "empty"
)

// buildMetrics holds Prometheus metrics for community builds. A nil
// *buildMetrics records nothing.
type buildMetrics struct {
	builds           *prometheus.CounterVec
	buildDuration    prometheus.Histogram
	communities      *prometheus.GaugeVec
	truncated        prometheus.Counter
	summaries        *prometheus.CounterVec
	attempts         *prometheus.CounterVec
	generateDuration prometheus.Histogram
}

func newBuildMetrics(registry *metric.MetricsRegistry) (*buildMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &buildMetrics{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "community",
			Name:      "builds_total",
			Help:      "Community builds by outcome",
		}, []string{"outcome"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "community",
			Name:      "build_duration_seconds",
			Help:      "Duration of community builds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
		}),
		communities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "community",
			Name:      "communities",
			Help:      "Communities collected in the last build by level",
		}, []string{"level"}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "community",
			Name:      "payloads_truncated_total",
			Help:      "Community payloads that exceeded the size bound",
		}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "community",
			Name:      "summaries_total",
			Help:      "Community summaries by status",
		}, []string{"status"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "community",
			Name:      "generation_attempts_total",
			Help:      "Text generation attempts by outcome",
		}, []string{"outcome"}),
		generateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "community",
			Name:      "generation_duration_seconds",
			Help:      "Latency of individual text generation attempts",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	if err := registry.RegisterCounterVec(metricsService, "builds_total", m.builds); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(metricsService, "build_duration_seconds", m.buildDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec(metricsService, "communities", m.communities); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsService, "payloads_truncated_total", m.truncated); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(metricsService, "summaries_total", m.summaries); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(metricsService, "generation_attempts_total", m.attempts); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(metricsService, "generation_duration_seconds", m.generateDuration); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *buildMetrics) recordBuild(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(outcome).Inc()
	m.buildDuration.Observe(d.Seconds())
}

func (m *buildMetrics) setCommunities(perLevel []int) {
	if m == nil {
		return
	}
	m.communities.Reset()
	for level, n := range perLevel {
		m.communities.WithLabelValues(strconv.Itoa(level)).Set(float64(n))
	}
}

func (m *buildMetrics) recordTruncated() {
	if m == nil {
		return
	}
	m.truncated.Inc()
}

func (m *buildMetrics) recordSummary(status string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(status).Inc()
}

func (m *buildMetrics) recordAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
	m.generateDuration.Observe(d.Seconds())
}
