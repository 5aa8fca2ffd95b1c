package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// HealthFunc reports whether the process can still submit documents.
type HealthFunc func(ctx context.Context) error

// MetricsServer serves Prometheus metrics and a health probe on a separate port.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer builds the router. The metrics path is only mounted when
// the provider has a registry; health is always served. Each routes func may
// mount additional handlers.
func NewMetricsServer(port int, path string, provider *Provider, health HealthFunc, routes ...func(*mux.Router)) *MetricsServer {
	router := newRouter(path, provider, health)
	for _, mount := range routes {
		mount(router)
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func newRouter(path string, provider *Provider, health HealthFunc) *mux.Router {
	router := mux.NewRouter()

	if provider != nil && provider.TracingEnabled() {
		router.Use(otelmux.Middleware(scope,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != path
			}),
		))
	}

	if provider != nil && provider.registry != nil {
		router.Handle(path, promhttp.HandlerFor(provider.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if health != nil {
			if err := health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprintf(w, "unhealthy: %v\n", err)
				return
			}
		}
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	return router
}

// Start serves until Shutdown and returns http.ErrServerClosed then.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr)
	return ms.server.ListenAndServe()
}

func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// Handler exposes the router for in-process tests.
func (ms *MetricsServer) Handler() http.Handler {
	return ms.server.Handler
}
