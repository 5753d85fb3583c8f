package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"livepush/internal/config"
	"livepush/internal/history"
	"livepush/internal/revision"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware
	RequestTimeout = 30 * time.Second

	// Rate limiting - requests per minute
	GlobalRateLimit = 30
)

// MarkerFetcher reads revision markers from a deployed site. Satisfied by
// site.Client.
type MarkerFetcher interface {
	FetchMarker(ctx context.Context, siteURL, marker string) (revision.Revision, error)
}

// Server is the read-only status server: it reports remote markers and the
// local journal, and never triggers a deployment itself.
type Server struct {
	Config   *config.Config
	Journal  *history.Journal
	Site     MarkerFetcher
	Logger   *slog.Logger
	TestMode bool
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, journal *history.Journal, fetcher MarkerFetcher, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Config:   cfg,
		Journal:  journal,
		Site:     fetcher,
		Logger:   logger,
		TestMode: testMode,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	// Rate limiting middleware (only if not in test mode)
	if !s.TestMode {
		r.Use(NewRateLimitMiddleware(GlobalRateLimit, s.Logger))
	}

	// Routes - all read-only
	r.Get("/health", s.HandleHealth)
	r.Get("/status/{envName}", s.HandleStatus)
	r.Get("/history/{envName}", s.HandleHistory)

	return r
}

// Start starts the HTTP server
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.Logger.Info("Starting server", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	return server.ListenAndServe()
}

// Shutdown closes the server's journal connection
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Journal != nil {
		return s.Journal.Close()
	}
	return nil
}
