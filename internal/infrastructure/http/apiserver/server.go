// Package apiserver provides a pure JSON API HTTP server implementation
package apiserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/sommekat/sommelier/internal/infrastructure/config"
	"github.com/sommekat/sommelier/internal/infrastructure/http/handlers"
	"github.com/sommekat/sommelier/internal/infrastructure/http/middleware"
	"github.com/sommekat/sommelier/internal/infrastructure/monitoring"
	"github.com/sommekat/sommelier/internal/ports/inbound"
	"github.com/sommekat/sommelier/pkg/healthcheck"
)

// Server represents the JSON API HTTP server
type Server struct {
	config         *config.Config
	logger         *zap.Logger
	server         *http.Server
	router         *chi.Mux
	service        inbound.PairingService
	metrics        *monitoring.Metrics
	health         *healthcheck.HealthCheck
	openAPIHandler *OpenAPIHandler
}

// NewServer creates a new API server instance. metrics and health may be nil.
func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	service inbound.PairingService,
	metrics *monitoring.Metrics,
	health *healthcheck.HealthCheck,
) *Server {
	s := &Server{
		config:         cfg,
		logger:         log,
		service:        service,
		metrics:        metrics,
		health:         health,
		openAPIHandler: NewOpenAPIHandler(log),
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(s.router, "sommelier-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()
	mw := middleware.New(s.config.RateLimit, s.logger)

	// Global middleware for API
	r.Use(mw.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Security)
	r.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware)
	}

	h := handlers.NewPairingHandlers(s.service, s.config.Server.MaxUploadBytes, s.logger)

	r.Get("/health", h.HealthCheck(s.config.App.Name, s.config.App.Version))
	if s.health != nil {
		r.Get("/health/ready", s.health.Handler())
	}
	if s.metrics != nil && s.config.Monitoring.EnableMetrics {
		r.Handle(s.config.Monitoring.MetricsPath, s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", s.openAPIHandler.ServeOpenAPISpec)
		r.Get("/docs", s.openAPIHandler.ServeSwaggerUI)

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit)
			r.Post("/pair", h.PairMenu)
			r.Post("/pair-recipe", h.PairRecipe)
		})
	})

	return r
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.server.Addr),
	)

	return s.server.ListenAndServe()
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Shutdown gracefully shuts down the API server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.server.Shutdown(ctx)
}
