package rest

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairdial/leadline-backend/internal/infrastructure/config"
	assignmentsvc "github.com/fairdial/leadline-backend/internal/service/assignment"
	callersvc "github.com/fairdial/leadline-backend/internal/service/callers"
	leadsvc "github.com/fairdial/leadline-backend/internal/service/leads"
)

// Deps bundles everything the HTTP layer serves. Dashboard is the
// websocket hub; a nil Metrics registry falls back to the process-global
// one.
type Deps struct {
	Assignments assignmentsvc.Service
	Callers     callersvc.Service
	Leads       leadsvc.Service
	Dashboard   http.Handler
	Limiter     IngestLimiter
	Checkers    []HealthChecker
	Metrics     *prometheus.Registry
}

// Server is the HTTP front of the routing service.
type Server struct {
	config     *config.Config
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	handler := NewHandler(deps.Assignments, deps.Callers, deps.Leads, deps.Limiter, WebhookAuth{
		Secret:        cfg.Webhook.Secret,
		RatePerMinute: cfg.Webhook.RatePerMinute,
	})
	auth := NewAuthenticator(&AuthConfig{
		Secret:      []byte(cfg.Security.JWTSecret),
		TokenExpiry: cfg.Security.TokenExpiry,
		Issuer:      "leadline",
	})

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if deps.Metrics != nil {
		registerer = deps.Metrics
		gatherer = deps.Metrics
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleLiveness)
	mux.Handle("GET /readyz", handleReadiness(deps.Checkers))
	// The dashboard polls the same readiness JSON from inside the API prefix.
	mux.Handle("GET /api/v1/health", handleReadiness(deps.Checkers))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Ingestion authenticates with the shared webhook secret, not a JWT;
	// form providers cannot do token exchanges.
	mux.HandleFunc("POST /api/v1/leads/webhook", handler.handleLeadWebhook)

	mux.HandleFunc("GET /api/v1/leads", handler.handleListLeads)
	mux.HandleFunc("GET /api/v1/leads/{id}", handler.handleGetLead)
	mux.Handle("PATCH /api/v1/leads/{id}/reassign", auth.Middleware(http.HandlerFunc(handler.handleReassignLead)))

	mux.HandleFunc("GET /api/v1/callers", handler.handleListCallers)
	mux.HandleFunc("GET /api/v1/callers/{id}", handler.handleGetCaller)
	mux.Handle("POST /api/v1/callers", auth.Middleware(http.HandlerFunc(handler.handleCreateCaller)))
	mux.Handle("PUT /api/v1/callers/{id}", auth.Middleware(http.HandlerFunc(handler.handleUpdateCaller)))
	mux.Handle("PATCH /api/v1/callers/{id}/status", auth.Middleware(http.HandlerFunc(handler.handleSetCallerStatus)))
	mux.Handle("DELETE /api/v1/callers/{id}", auth.Middleware(http.HandlerFunc(handler.handleDeactivateCaller)))

	if deps.Dashboard != nil {
		mux.Handle("GET /ws/dashboard", deps.Dashboard)
	}

	root := chain(mux,
		requestIDMiddleware,
		loggingMiddleware,
		metricsMiddleware(mux, registerer),
		recoveryMiddleware,
		corsMiddleware(cfg.Server.AllowedOrigins),
		timeoutMiddleware(cfg.Server.RequestTimeout),
		rateLimitMiddleware(cfg.Security.RateLimit.RequestsPerSecond, cfg.Security.RateLimit.BurstSize),
	)

	return &Server{
		config: cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      root,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Handler exposes the assembled route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the process receives an interrupt or the listener
// fails, then drains in-flight requests.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		"address", s.httpServer.Addr,
		"environment", s.config.Environment,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
