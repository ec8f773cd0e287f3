// Package httptransport is the thin HTTP layer over the pipeline. It
// delegates to the orchestrator without embedding business logic so
// transport concerns remain isolated.
package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prioritizer/internal/cache"
	"prioritizer/internal/orchestrator"
	"prioritizer/internal/platform/metrics"
	"prioritizer/internal/task"
)

// Service is the pipeline surface the handlers need.
type Service interface {
	Process(ctx context.Context, ev task.Event) (task.PriorityResult, error)
	ProcessBatch(ctx context.Context, tasks []task.Event) ([]task.PriorityResult, error)
	Health(ctx context.Context) orchestrator.HealthReport
}

// Config bounds the synchronous endpoints.
type Config struct {
	RateLimit  int
	RateWindow time.Duration
}

// Handler holds the HTTP dependencies.
type Handler struct {
	svc     Service
	cache   cache.Store
	publish func(ctx context.Context, subject string, data []byte) error
	logger  requestLogger
	metrics *metrics.Metrics
	cfg     Config

	// pending tracks tasks accepted asynchronously by this instance so the
	// result endpoint can distinguish "processing" from "unknown".
	pending sync.Map
}

// New builds the router with all public endpoints.
func New(svc Service, store cache.Store, publish func(ctx context.Context, subject string, data []byte) error, logger requestLogger, m *metrics.Metrics, cfg Config) http.Handler {
	h := &Handler{
		svc:     svc,
		cache:   store,
		publish: publish,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(logRequests(logger))

	r.Route("/v1/tasks", func(r chi.Router) {
		r.With(h.rateLimit).Post("/prioritize", h.handlePrioritize)
		r.With(h.rateLimit).Post("/batch", h.handleBatch)
		r.Post("/", h.handleSubmit)
		r.Get("/{id}/priority", h.handleGetPriority)
	})
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
