// Package server exposes the engine over HTTP and runs the scheduled daily
// aggregation.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/Veraticus/spence/internal/engine"
	"github.com/Veraticus/spence/internal/service"
)

// Engine is the work the server triggers.
type Engine interface {
	PredictNextMonth(ctx context.Context, userID string) (*engine.Prediction, error)
	AggregateDaily(ctx context.Context) (*service.AggregationResult, error)
	AggregateHistorical(ctx context.Context, months int, progress engine.Progress) (*service.AggregationResult, error)
}

// Config holds server settings.
type Config struct {
	Location       *time.Location
	Addr           string
	Schedule       string // cron schedule for the daily aggregation
	RequestTimeout time.Duration
}

// Server serves the trigger endpoints and owns the aggregation schedule.
type Server struct {
	engine Engine
	logger *slog.Logger
	router *mux.Router
	cron   *cron.Cron
	now    func() time.Time
	cfg    Config
}

// New creates a server. An invalid schedule is rejected here rather than at
// Run time.
func New(eng Engine, cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 0 * * *"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: eng,
		cfg:    cfg,
		logger: logger.With("component", "server"),
		now:    time.Now,
		cron:   cron.New(cron.WithLocation(cfg.Location)),
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.runScheduledAggregation); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	s.router = mux.NewRouter()
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	s.router.HandleFunc("/aggregate/daily", s.handleAggregateDaily).Methods(http.MethodPost)
	s.router.HandleFunc("/aggregate/historical", s.handleAggregateHistorical).Methods(http.MethodPost)

	return s, nil
}

// Handler returns the HTTP handler for the trigger endpoints.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP and runs the schedule until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.cron.Start()
	s.logger.Info("Server started",
		"addr", s.cfg.Addr,
		"schedule", s.cfg.Schedule,
		"timezone", s.cfg.Location.String())

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		stopped := s.cron.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		// Let a running aggregation finish before returning.
		select {
		case <-stopped.Done():
		case <-shutdownCtx.Done():
		}
		return nil
	case err := <-errCh:
		s.cron.Stop()
		return fmt.Errorf("http server: %w", err)
	}
}

func (s *Server) runScheduledAggregation() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.engine.AggregateDaily(ctx)
	if err != nil {
		s.logger.Error("Scheduled aggregation failed", "error", err)
		return
	}
	s.logger.Info("Scheduled aggregation completed",
		"records", result.RecordsWritten,
		"zero_days_filled", result.ZeroDaysFilled,
		"at", s.now().In(s.cfg.Location).Format(time.RFC3339))
}
