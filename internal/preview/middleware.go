package preview

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/docsmith/docsmith/internal/log"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docsmith_http_request_duration_seconds",
		Help:    "Preview request latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docsmith_http_requests_in_flight",
		Help: "Preview requests currently being served.",
	})
)

// instrument records request duration and in-flight count. The chi route
// pattern keeps the path label's cardinality bounded.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		httpRequestDuration.
			WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

// requestLog writes one access log line per request and attaches a
// request-scoped logger to the context, so deeper handlers log with the
// request fields already set.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

		l := s.log.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Logger()
		next.ServeHTTP(rec, r.WithContext(log.IntoContext(r.Context(), l)))

		l.Info().
			Str("event", "http.request").
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

// responseRecorder captures status and size for middleware.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (rec *responseRecorder) WriteHeader(status int) {
	if !rec.written {
		rec.status = status
		rec.written = true
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *responseRecorder) Write(b []byte) (int, error) {
	if !rec.written {
		rec.written = true
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}
