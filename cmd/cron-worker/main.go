package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorpay-backend/internal/cron"
	"github.com/angelmondragon/vendorpay-backend/internal/notifications"
	"github.com/angelmondragon/vendorpay-backend/internal/orders"
	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/db"
	"github.com/angelmondragon/vendorpay-backend/pkg/instance"
	"github.com/angelmondragon/vendorpay-backend/pkg/ledger"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/metrics"
	"github.com/angelmondragon/vendorpay-backend/pkg/migrate"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
	"github.com/angelmondragon/vendorpay-backend/pkg/redis"
)

const (
	serviceKind   = "cron-worker"
	lockKeyFormat = "cron-worker:%s"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	ledgerClient, err := ledger.New(cfg.Ledger)
	if err != nil {
		logg.Error(ctx, "failed to create ledger client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	service, err := buildService(cfg, logg, dbClient, redisClient, ledgerClient, registry)
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "cron metrics server stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")
	runErr := service.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	closeErr := multierr.Combine(metricsServer.Shutdown(shutdownCtx), redisClient.Close(), dbClient.Close())
	if err := multierr.Append(runErr, closeErr); err != nil {
		logg.Error(shutdownCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(shutdownCtx, "cron worker shut down gracefully")
}

func buildService(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	ledgerClient ledger.Ledger,
	registry prometheus.Registerer,
) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(fmt.Sprintf(lockKeyFormat, envOrLocal(cfg.App.Env))), 0)
	if err != nil {
		return nil, err
	}

	reconcile, err := cron.NewReceiptReconcileJob(cron.ReceiptReconcileJobParams{
		Logger:    logg,
		Attempts:  orders.NewRepository(dbClient.DB()),
		Ledger:    ledgerClient,
		BatchSize: cfg.Cron.ReceiptBatchSize,
	})
	if err != nil {
		return nil, err
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		RetentionDays: cfg.Cron.OutboxRetentionDays,
	}, outbox.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}

	notificationRetention, err := cron.NewNotificationRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		RetentionDays: cfg.Cron.NotificationRetention,
	}, notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcile, outboxRetention, notificationRetention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(registry),
		Interval: cfg.Cron.Interval,
	})
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
