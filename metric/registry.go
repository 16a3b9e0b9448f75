// Package metric manages Prometheus metrics for semcommunity. The store,
// summarizer pool and summary cache register their collectors through one
// MetricsRegistry so a single endpoint exposes everything.
package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/semcommunity/errors"
)

// MetricsRegistry owns a Prometheus registry and tracks which component
// registered which collector.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics

	mu    sync.RWMutex
	owned map[string]prometheus.Collector // keyed by "component.name"
}

// NewMetricsRegistry creates a registry holding the core metrics and the Go
// runtime and process collectors.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		owned:              make(map[string]prometheus.Collector),
	}
	r.prometheusRegistry.MustRegister(r.Metrics.collectors()...)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core metrics
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

func (r *MetricsRegistry) RegisterCounter(component, name string, c prometheus.Counter) error {
	return r.Register(component, name, c)
}

func (r *MetricsRegistry) RegisterGauge(component, name string, g prometheus.Gauge) error {
	return r.Register(component, name, g)
}

func (r *MetricsRegistry) RegisterHistogram(component, name string, h prometheus.Histogram) error {
	return r.Register(component, name, h)
}

func (r *MetricsRegistry) RegisterCounterVec(component, name string, c *prometheus.CounterVec) error {
	return r.Register(component, name, c)
}

func (r *MetricsRegistry) RegisterGaugeVec(component, name string, g *prometheus.GaugeVec) error {
	return r.Register(component, name, g)
}

func (r *MetricsRegistry) RegisterHistogramVec(component, name string, h *prometheus.HistogramVec) error {
	return r.Register(component, name, h)
}

// Register adds c under component and name. Registering the same name twice
// for a component, or a collector Prometheus already knows, is an invalid
// error; any other Prometheus failure is fatal.
func (r *MetricsRegistry) Register(component, name string, c prometheus.Collector) error {
	key := component + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.owned[key]; dup {
		return errors.WrapInvalid(fmt.Errorf("%s already registered by %s", name, component),
			"MetricsRegistry", "Register", "register "+key)
	}

	err := r.prometheusRegistry.Register(c)
	var clash prometheus.AlreadyRegisteredError
	switch {
	case err == nil:
		r.owned[key] = c
		return nil
	case stderrors.As(err, &clash):
		return errors.WrapInvalid(err, "MetricsRegistry", "Register", "register "+key)
	default:
		return errors.WrapFatal(err, "MetricsRegistry", "Register", "register "+key)
	}
}

// Unregister removes the collector registered under component and name and
// reports whether it was present.
func (r *MetricsRegistry) Unregister(component, name string) bool {
	key := component + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.owned[key]
	if !ok || !r.prometheusRegistry.Unregister(c) {
		return false
	}
	delete(r.owned, key)
	return true
}
