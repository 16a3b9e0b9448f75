package metric

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/semcommunity/errors"
)

// Server exposes a MetricsRegistry over HTTP.
type Server struct {
	addr     string
	path     string
	registry *MetricsRegistry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a metrics server listening on addr (e.g. ":9090").
func NewServer(addr, path string, registry *MetricsRegistry) *Server {
	if path == "" {
		path = "/metrics"
	}
	if addr == "" {
		addr = ":9090"
	}
	return &Server{addr: addr, path: path, registry: registry}
}

// Handler returns the HTTP handler serving metrics and a health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start binds the listener and serves in the background. Serve errors after
// startup are reported on the returned channel.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("server already running"), "Server", "Start", "start metrics server")
	}
	if s.registry == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Server", "Start", "metrics registry not provided")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, errors.WrapFatal(err, "Server", "Start", fmt.Sprintf("listen on %s", s.addr))
	}

	s.listener = ln
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- errors.WrapTransient(err, "Server", "Start", "serve metrics")
		}
		close(errCh)
	}(s.server)

	return errCh, nil
}

// Stop shuts the server down, waiting for in-flight scrapes until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	if err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shutdown metrics server")
	}
	return nil
}

// Address returns the URL metrics are served on once started.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := s.addr
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	return fmt.Sprintf("http://%s%s", addr, s.path)
}
