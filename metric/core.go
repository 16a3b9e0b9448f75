package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semcommunity/errors"
)

// Namespace prefixes every metric exported by this module.
const Namespace = "semcommunity"

// Metrics contains process-wide metrics shared by all components.
type Metrics struct {
	// ServiceStatus: 0=stopped, 1=starting, 2=running, 3=stopping, 4=failed
	ServiceStatus *prometheus.GaugeVec
	ErrorsTotal   *prometheus.CounterVec
	BuildInfo     *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and classification",
			},
			[]string{"component", "class"},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "build_info",
				Help:      "Build information, value is always 1",
			},
			[]string{"version"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.ServiceStatus, m.ErrorsTotal, m.BuildInfo}
}

// RecordError counts err against component using its error classification.
func (m *Metrics) RecordError(component string, err error) {
	if m == nil || err == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errors.Classify(err).String()).Inc()
}

// SetServiceStatus records the lifecycle state of a service.
func (m *Metrics) SetServiceStatus(service string, status int) {
	if m == nil {
		return
	}
	m.ServiceStatus.WithLabelValues(service).Set(float64(status))
}
