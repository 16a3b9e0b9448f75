package metric

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semcommunity/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCollectors(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "c"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "g"})
	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_hist", Help: "h"}, []string{"status"})

	require.NoError(t, registry.RegisterCounter("svc", "test_counter", counter))
	require.NoError(t, registry.RegisterGauge("svc", "test_gauge", gauge))
	require.NoError(t, registry.RegisterHistogramVec("svc", "test_hist", hist))

	counter.Add(2)
	gauge.Set(42)
	hist.WithLabelValues("ok").Observe(0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(counter))
	assert.Equal(t, 42.0, testutil.ToFloat64(gauge))

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["test_counter"])
	assert.True(t, names["test_gauge"])
	assert.True(t, names["test_hist"])
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	c1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "c"})
	c2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "c"})

	require.NoError(t, registry.RegisterCounter("svc", "dup_counter", c1))

	err := registry.RegisterCounter("svc", "dup_counter", c1)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	err = registry.RegisterCounter("other", "dup_counter", c2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err), "prometheus name clash is an invalid registration")
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "temp_gauge", Help: "g"})

	require.NoError(t, registry.RegisterGauge("svc", "temp_gauge", gauge))
	assert.True(t, registry.Unregister("svc", "temp_gauge"))
	assert.False(t, registry.Unregister("svc", "temp_gauge"))

	require.NoError(t, registry.RegisterGauge("svc", "temp_gauge", gauge), "re-registration after unregister")
}

func TestMetricsRegistry_ConcurrentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("concurrent_counter_%d", i)
			c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: "c"})
			assert.NoError(t, registry.RegisterCounter("svc", name, c))
		}(i)
	}
	wg.Wait()
}

func TestMetrics_RecordError(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordError("store", errors.ErrRateLimited)
	m.RecordError("store", errors.WrapInvalid(fmt.Errorf("bad"), "a", "b", "c"))
	m.RecordError("store", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("store", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("store", "invalid")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordError("x", errors.ErrRateLimited) })
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().SetServiceStatus("builder", 2)

	srv := httptest.NewServer(NewServer(":0", "", registry).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `semcommunity_service_status{service="builder"} 2`))

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/metrics", NewMetricsRegistry())

	errCh, err := s.Start()
	require.NoError(t, err)
	assert.Contains(t, s.Address(), "127.0.0.1:")

	_, err = s.Start()
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	for range errCh {
	}
}
