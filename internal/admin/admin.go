// Package admin serves the monitor's diagnostics over HTTP for operators.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/config"
	"github.com/nixlim/mailwatch/internal/monitor"
	"github.com/nixlim/mailwatch/internal/storage"
)

const (
	defaultEventLimit  = 20
	defaultHistoryDays = 7
	defaultAlertLimit  = 50
	maxHistoryDays     = 365
)

// Monitor is the part of *monitor.Monitor the API exposes.
type Monitor interface {
	Stats() monitor.Stats
	RecentEvents(limit int) []monitor.Event
	ErrorSummary() monitor.ErrorSummary
	IsQuotaNearLimit(threshold float64) bool
	QuotaUsagePercentage() int
	HealthStatus() monitor.Health
	ForceReset()
}

// History is the part of storage.Store the API reads.
type History interface {
	QuerySummaries(days int) []monitor.EpochSummary
	QueryDailyActivity(days int) []storage.DailyActivity
	RecentAlerts(limit int) []alerts.Alert
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables /api/history and /api/alerts.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the server's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server is the admin HTTP API.
type Server struct {
	cfg     config.AdminConfig
	mon     Monitor
	history History
	metrics http.Handler
	log     zerolog.Logger

	listener net.Listener
	server   *http.Server
	stopOnce sync.Once
}

func New(cfg config.AdminConfig, mon Monitor, opts ...Option) *Server {
	s := &Server{cfg: cfg, mon: mon, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleLiveness)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/events", s.handleEvents)
		r.Get("/errors", s.handleErrors)
		r.Get("/quota", s.handleQuota)
		r.Get("/health", s.handleHealth)
		r.Get("/history", s.handleHistory)
		r.Get("/alerts", s.handleAlerts)
		r.Post("/reset", s.handleReset)
	})
	return r
}

// Start binds the configured address and serves in the background until ctx
// is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Bind, strconv.Itoa(s.cfg.Port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d already in use", s.cfg.Port)
		}
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = lis
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("admin API stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.log.Info().Str("addr", lis.Addr().String()).Msg("admin API listening")
	return nil
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.log.Warn().Err(err).Msg("admin API shutdown")
		}
	})
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				return
			}
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("admin request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// intParam reads a positive integer query parameter, returning def when it
// is absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}
