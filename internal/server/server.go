// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/conversation"
	"github.com/hyperjump/kotae/internal/qa"
	"github.com/hyperjump/kotae/internal/storage"
)

// Server is the HTTP server for the Kotae API.
type Server struct {
	engine  *qa.Engine
	tracker *conversation.Tracker
	storage *storage.SQLiteStorage
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *qa.Engine,
	tracker *conversation.Tracker,
	store *storage.SQLiteStorage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		tracker: tracker,
		storage: store,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(RequestID)
	r.Use(RequireToken(s.logger))
	r.Use(RateLimit(s.config.Server.RateLimitPerSec, s.config.Server.RateLimitBurst))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Put("/api/v1/directory/users", s.handleSyncUsers)
	r.Put("/api/v1/directory/channels", s.handleSyncChannels)
	r.Get("/api/v1/conversations", s.handleListConversations)
	r.Get("/api/v1/conversations/{id}", s.handleGetConversation)
	r.Delete("/api/v1/conversations/{id}", s.handleClearConversation)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
