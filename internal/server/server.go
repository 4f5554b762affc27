// Package server provides the HTTP API for museai.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/museai/internal/config"
	"github.com/hyperjump/museai/internal/search"
	"github.com/hyperjump/museai/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the museai API.
type Server struct {
	retriever *search.Retriever
	runs      storage.RunStore // optional
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. runs may be nil, in
// which case the runs endpoint reports 501.
func NewServer(
	retriever *search.Retriever,
	runs storage.RunStore,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		retriever: retriever,
		runs:      runs,
		config:    cfg,
		logger:    logger,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if s.config.Debug {
		r.Use(middleware.Logger)
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/retrieve", s.handleRetrieve)
		r.Get("/context", s.handleContext)
		r.Get("/artifacts/{id}", s.handleGetArtifact)
		r.Get("/artifacts/{id}/context", s.handleArtifactContext)
		r.Get("/runs", s.handleListRuns)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
