// Package api exposes the processing pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/config"
	"github.com/raaihank/asset-privacy/internal/logger"
	"github.com/raaihank/asset-privacy/internal/service"
	"github.com/raaihank/asset-privacy/internal/web"
	"github.com/raaihank/asset-privacy/internal/websocket"
)

// Server represents the HTTP front end
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	pipeline *service.Pipeline
	hub      *websocket.Hub
	limiter  *clientLimiter
	router   *mux.Router
	server   *http.Server
	started  time.Time
	cancel   context.CancelFunc
}

// New creates a server. hub may be nil when websocket events are disabled.
func New(cfg *config.Config, pipeline *service.Pipeline, hub *websocket.Hub, log *logger.Logger) *Server {
	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("api"),
		pipeline: pipeline,
		hub:      hub,
		router:   mux.NewRouter(),
		started:  time.Now(),
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMin > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if s.hub != nil {
		path := s.config.WebSocket.Path
		if path == "" {
			path = "/ws"
		}
		s.router.HandleFunc(path, s.hub.HandleWebSocket).Methods(http.MethodGet)
		s.router.HandleFunc("/", web.ServeDashboard).Methods(http.MethodGet)
		s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	api.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost)
	api.HandleFunc("/decrypt", s.handleDecrypt).Methods(http.MethodPost)

	api.HandleFunc("/records/{id}", s.handleGetRecord).Methods(http.MethodGet)
	api.HandleFunc("/records/{id}/complete", s.handleComplete).Methods(http.MethodPost)
	api.HandleFunc("/records/{id}/download", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/records/{id}/audit.parquet", s.handleAudit).Methods(http.MethodGet)

	api.HandleFunc("/fund_names", s.handleListFunds).Methods(http.MethodGet)
	api.HandleFunc("/fund_names", s.handleAddFund).Methods(http.MethodPost)
	api.HandleFunc("/fund_names", s.handleRemoveFund).Methods(http.MethodDelete)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting asset privacy server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("ai_configured", s.pipeline.AIConfigured()),
		zap.Bool("rate_limit", s.limiter != nil),
		zap.Bool("websocket", s.hub != nil),
	)

	if s.limiter != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.limiter.run(ctx, 30*time.Minute)
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping asset privacy server")
	if s.cancel != nil {
		s.cancel()
	}
	return s.server.Shutdown(ctx)
}
