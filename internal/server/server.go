package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/panosadamop/maqam-tab/internal/exec"
	"github.com/panosadamop/maqam-tab/internal/pipeline"
	"github.com/panosadamop/maqam-tab/internal/store"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// Config holds server configuration
type Config struct {
	Port     int
	Pipeline pipeline.Config
}

// Server is the HTTP API
type Server struct {
	config Config
	router *chi.Mux
	logger *slog.Logger
	store  *store.Store
	orch   *pipeline.Orchestrator
	runner *exec.Runner
}

// New creates a new server
func New(cfg Config) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	st := store.New()

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		store:  st,
		orch:   pipeline.New(st, nil, logger),
		runner: exec.NewRunner(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs/youtube", s.handleYouTubeJob)
		r.Post("/jobs/upload", s.handleUploadJob)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Delete("/jobs/{id}", s.handleCancelJob)
		r.Get("/tunings", s.handleTunings)
		r.Get("/maqamat", s.handleMaqamat)
	})
}

// Run starts the server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		s.logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	s.logger.Info("server starting", slog.Int("port", s.config.Port))

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}
