package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	apihttp "github.com/casekit/case-engine/internal/api/http"
	"github.com/casekit/case-engine/internal/api/http/handlers"
	"github.com/casekit/case-engine/internal/auth"
	"github.com/casekit/case-engine/internal/config"
	"github.com/casekit/case-engine/internal/events"
	"github.com/casekit/case-engine/internal/observability"
	"github.com/casekit/case-engine/internal/persistence"
	"github.com/casekit/case-engine/internal/platform"
	"github.com/casekit/case-engine/internal/repository"
	"github.com/casekit/case-engine/internal/service"
	"github.com/casekit/case-engine/internal/transcript"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	repo, err := buildRepository(cfg, pg, logger)
	if err != nil {
		logger.Fatal("repository init failed", zap.Error(err))
	}

	gateway := platform.NewGatewayClient(cfg.Gateway)
	exporter := transcript.NewExporter(gateway, cfg.Cases, logger)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	service.NewAuditService(dispatcher, logger, rdb.Client, cfg.Redis.AuditStream)

	cases := service.NewCaseService(cfg.Cases, service.CaseDependencies{
		Repo:       repo,
		Gateway:    gateway,
		Exporter:   exporter,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})

	sweeper := service.NewSweeper(cases, cfg.Sweeps, logger, metrics)
	sweeper.Start(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.ServiceTokenTTLMin)*time.Minute)

	app := apihttp.NewApp(apihttp.RouterDependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Cases:   handlers.NewCasesHandler(cases),
		Health:  handlers.NewHealthHandler(cfg.App, pg, rdb, metrics),
		Tokens:  tokens,
	})

	go func() {
		logger.Info("starting server",
			zap.String("addr", cfg.App.Addr()),
			zap.String("store_backend", cfg.Store.Backend))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func buildRepository(cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) (repository.TicketRepository, error) {
	switch cfg.Store.Backend {
	case "postgres":
		if pg.PoolHandle() == nil {
			return nil, fmt.Errorf("store backend postgres requires POSTGRES_DSN")
		}
		return repository.NewPostgresStore(pg.PoolHandle()), nil
	case "memory":
		return repository.NewMemoryStore(), nil
	default:
		return repository.NewFileStore(cfg.Store.IndexPath, logger)
	}
}
