package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/showrunr/eventcrm-backend/api/controllers"
	"github.com/showrunr/eventcrm-backend/api/routes"
	"github.com/showrunr/eventcrm-backend/internal/catalog"
	"github.com/showrunr/eventcrm-backend/internal/conflicts"
	"github.com/showrunr/eventcrm-backend/internal/equipment"
	"github.com/showrunr/eventcrm-backend/internal/events"
	"github.com/showrunr/eventcrm-backend/internal/offers"
	"github.com/showrunr/eventcrm-backend/pkg/config"
	"github.com/showrunr/eventcrm-backend/pkg/db"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
	"github.com/showrunr/eventcrm-backend/pkg/metrics"
	"github.com/showrunr/eventcrm-backend/pkg/migrate"
	"github.com/showrunr/eventcrm-backend/pkg/outbox"
	"github.com/showrunr/eventcrm-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	eventRepo := events.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	equipmentRepo := equipment.NewRepository(gormDB)
	offerRepo := offers.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	eventService, err := events.NewService(eventRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create event service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalogRepo, dbClient, equipmentRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	conflictMetrics := metrics.NewConflictMetrics(prometheus.DefaultRegisterer)

	conflictService, err := conflicts.NewService(eventRepo, catalogRepo, equipmentRepo, conflictMetrics, cfg.RPC.Timeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create conflict service", err)
		os.Exit(1)
	}

	syncer, err := equipment.NewSyncer(offerRepo, eventRepo, catalogRepo, equipmentRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger syncer", err)
		os.Exit(1)
	}

	offerService, err := offers.NewService(
		offerRepo,
		dbClient,
		catalogRepo,
		eventRepo,
		equipmentRepo,
		conflictService,
		syncer,
		equipmentRepo,
		outboxService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create offer service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:           cfg,
		Logger:           logg,
		IdempotencyStore: redisClient,
		Pingers: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Events:    eventService,
		Catalog:   catalogService,
		Equipment: equipmentRepo,
		Conflicts: conflicts.NewPool(conflictService, conflictMetrics),
		Offers:    offerService,
		Syncer:    syncer,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	errs := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	case sig := <-shutdown:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
