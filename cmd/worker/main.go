package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/showrunr/eventcrm-backend/internal/analytics"
	"github.com/showrunr/eventcrm-backend/internal/catalog"
	"github.com/showrunr/eventcrm-backend/internal/consumers"
	"github.com/showrunr/eventcrm-backend/internal/equipment"
	"github.com/showrunr/eventcrm-backend/internal/events"
	"github.com/showrunr/eventcrm-backend/internal/offers"
	"github.com/showrunr/eventcrm-backend/pkg/bigquery"
	"github.com/showrunr/eventcrm-backend/pkg/config"
	"github.com/showrunr/eventcrm-backend/pkg/db"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
	"github.com/showrunr/eventcrm-backend/pkg/migrate"
	"github.com/showrunr/eventcrm-backend/pkg/outbox/idempotency"
	"github.com/showrunr/eventcrm-backend/pkg/pubsub"
	"github.com/showrunr/eventcrm-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	bigqueryClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap bigquery", err)
		os.Exit(1)
	}
	defer func() {
		if err := bigqueryClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing bigquery client", err)
		}
	}()

	gormDB := dbClient.DB()
	eventRepo := events.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	equipmentRepo := equipment.NewRepository(gormDB)
	offerRepo := offers.NewRepository(gormDB)

	syncer, err := equipment.NewSyncer(offerRepo, eventRepo, catalogRepo, equipmentRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger syncer", err)
		os.Exit(1)
	}

	writer, err := analytics.NewWriter(bigqueryClient, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics writer", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Worker.ProcessedEventTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	offerConsumer, err := consumers.NewOfferConsumer(pubsubClient.OfferSubscription(), syncer, writer, guard, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create offer consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		PubSub:        pubsubClient,
		BigQuery:      bigqueryClient,
		OfferConsumer: offerConsumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
