// Package preview serves built documentation over HTTP.
//
// The server exposes the built HTML tree read-only under /, a JSON health
// probe under /healthz and Prometheus metrics under /metrics. File serving
// is hardened against path traversal and symlink escapes; directory paths
// resolve to their index.html.
package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/docsmith/docsmith/internal/log"
)

// Config wires a preview Server.
type Config struct {
	Addr    string // listen address, e.g. ":8080"
	Root    string // directory holding built HTML, usually <output>/html
	Version string // docsmith version reported by /healthz
}

// Server is the preview HTTP server.
type Server struct {
	cfg Config
	log zerolog.Logger
}

func New(cfg Config) *Server {
	return &Server{cfg: cfg, log: log.WithComponent("preview")}
}

// Router assembles the HTTP handler. Split from Run so tests can drive it
// through httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.instrument)
	r.Use(s.requestLog)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Handle("/*", s.fileServer())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

// Run serves until ctx is cancelled, then drains in-flight connections.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("preview: listen %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.log.Info().
		Str("event", "serve.start").
		Str("addr", ln.Addr().String()).
		Str("root", s.cfg.Root).
		Msg("preview server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("preview: shutdown: %w", err)
		}
		<-errCh // Serve has returned http.ErrServerClosed
		s.log.Info().Str("event", "serve.stop").Msg("preview server stopped")
		return nil
	case err := <-errCh:
		return fmt.Errorf("preview: %w", err)
	}
}
