package service

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/tabsplit/internal/auth"
	"github.com/mmynk/tabsplit/internal/middleware"
)

// RouterConfig holds what the HTTP router serves.
type RouterConfig struct {
	Service *SessionService
	Tokens  *auth.TokenManager
	Metrics *middleware.Metrics

	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// NewRouter mounts the Connect service, the receipt upload, /healthz and
// /metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware)

	interceptors := []connect.Interceptor{
		middleware.OptionalAuth(cfg.Tokens),
		middleware.LoggingInterceptor(),
	}
	if cfg.Metrics != nil {
		interceptors = append(interceptors, cfg.Metrics.Interceptor())
	}
	path, handler := NewSessionServiceHandler(cfg.Service, connect.WithInterceptors(interceptors...))
	r.Mount(path, handler)

	r.With(middleware.HTTPOptionalAuth(cfg.Tokens)).
		Post("/api/sessions/{sessionID}/receipt", cfg.Service.UploadReceipt)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	return r
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
