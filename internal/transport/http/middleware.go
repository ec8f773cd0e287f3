package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type requestLogger = *slog.Logger

func logRequests(logger requestLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

// rateLimit applies the shared sliding window, keyed by client IP. A broken
// limiter backend answers permissively inside the cache layer, so this
// middleware never blocks on infrastructure trouble.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := h.cache.CheckRateLimit(r.Context(), r.RemoteAddr, h.cfg.RateLimit, h.cfg.RateWindow)
		if err == nil && !res.Allowed {
			h.metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(res.WindowSeconds))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "request rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
