package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"go.uber.org/zap"

	"github.com/fairdial/leadline-backend/internal/api/rest"
	"github.com/fairdial/leadline-backend/internal/api/websocket"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
	"github.com/fairdial/leadline-backend/internal/infrastructure/cache"
	"github.com/fairdial/leadline-backend/internal/infrastructure/config"
	"github.com/fairdial/leadline-backend/internal/infrastructure/database"
	"github.com/fairdial/leadline-backend/internal/infrastructure/instrumentation"
	"github.com/fairdial/leadline-backend/internal/infrastructure/repository"
	"github.com/fairdial/leadline-backend/internal/infrastructure/telemetry"
	"github.com/fairdial/leadline-backend/internal/metrics"
	assignmentsvc "github.com/fairdial/leadline-backend/internal/service/assignment"
	callersvc "github.com/fairdial/leadline-backend/internal/service/callers"
	leadsvc "github.com/fairdial/leadline-backend/internal/service/leads"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("leadline-api: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// Infrastructure packages log through zap; application code uses slog.
	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init zap: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx := context.Background()

	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceVersion = cfg.Version
	telCfg.Environment = cfg.Environment
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telCfg.SamplingRate = cfg.Telemetry.SampleRate

	provider, err := telemetry.Initialize(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown", "error", err)
		}
	}()

	pool, err := database.NewPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := cache.NewClient(&cfg.Redis, zapLogger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	limiter := cache.NewRateLimiter(redisClient, zapLogger)
	feed := cache.NewEventFeed(redisClient, zapLogger, cache.DefaultFeedSize)

	cal, err := routing.NewCalendar(cfg.Routing.Timezone, nil)
	if err != nil {
		return fmt.Errorf("load routing calendar: %w", err)
	}

	runner := repository.NewRunner(pool)
	callerRepo := repository.NewCallerRepository(pool)
	leadReader := repository.NewLeadRepository(pool)

	hub := websocket.NewHub(feed, logger)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	registry, err := metrics.NewRegistry("github.com/fairdial/leadline-backend")
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	assignments := instrumentation.NewAssignmentService(
		assignmentsvc.NewService(runner, assignmentsvc.NewEngine(cal), hub, logger),
		registry,
	)
	callers := callersvc.NewService(callerRepo, cal)
	leads := leadsvc.NewService(leadReader)

	server := rest.NewServer(cfg, logger, rest.Deps{
		Assignments: assignments,
		Callers:     callers,
		Leads:       leads,
		Dashboard:   hub,
		Limiter:     limiter,
		Checkers: []rest.HealthChecker{
			rest.CheckFunc{CheckName: "database", Fn: pool.HealthCheck},
			rest.CheckFunc{CheckName: "redis", Fn: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		},
	})

	return server.Start()
}
