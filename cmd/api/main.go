package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorpay-backend/api/controllers"
	"github.com/angelmondragon/vendorpay-backend/api/routes"
	"github.com/angelmondragon/vendorpay-backend/internal/auth"
	"github.com/angelmondragon/vendorpay-backend/internal/cart"
	"github.com/angelmondragon/vendorpay-backend/internal/checkout"
	"github.com/angelmondragon/vendorpay-backend/internal/notifications"
	"github.com/angelmondragon/vendorpay-backend/internal/orders"
	"github.com/angelmondragon/vendorpay-backend/internal/products"
	"github.com/angelmondragon/vendorpay-backend/internal/settlement"
	"github.com/angelmondragon/vendorpay-backend/internal/users"
	"github.com/angelmondragon/vendorpay-backend/internal/vendorkeys"
	"github.com/angelmondragon/vendorpay-backend/pkg/auth/session"
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

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	if cfg.Ledger.UseMemory() {
		logg.Warn(ctx, "using in-memory ledger; transfers are not real")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := buildRouter(cfg, logg, dbClient, redisClient, ledgerClient, registry)
	if err != nil {
		logg.Error(ctx, "failed to wire api", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"ledger":   cfg.Ledger.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			closeAll(ctx, logg, dbClient, redisClient)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	err = multierr.Append(err, closeAll(shutdownCtx, logg, dbClient, redisClient))
	if err != nil {
		logg.Error(shutdownCtx, "api shutdown finished with errors", err)
		os.Exit(1)
	}
}

func buildRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	ledgerClient ledger.Ledger,
	registry *prometheus.Registry,
) (http.Handler, error) {
	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return nil, err
	}

	userRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return nil, err
	}

	directory, err := vendorkeys.NewDirectory(userRepo, redisClient, cfg.Cache.VendorKeyTTL, logg)
	if err != nil {
		return nil, err
	}
	usersService, err := users.NewService(users.ServiceParams{
		Repo:      userRepo,
		Directory: directory,
		Ledger:    ledgerClient,
		Currency:  cfg.Settlement.Currency,
	})
	if err != nil {
		return nil, err
	}

	productsService, err := products.NewService(products.ServiceParams{
		Repo:      products.NewRepository(dbClient.DB()),
		Cache:     redisClient,
		VendorTTL: cfg.Cache.ProductVendorTTL,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}

	cartService, err := cart.NewService(productsService, cart.ShippingRates{
		Standard: cfg.Settlement.StandardShipping(),
		Express:  cfg.Settlement.ExpressShipping(),
	})
	if err != nil {
		return nil, err
	}

	rates, err := settlement.NewStaticRate(cfg.Settlement)
	if err != nil {
		return nil, err
	}
	engine, err := settlement.NewEngine(settlement.EngineParams{
		Directory:       directory,
		Ledger:          ledgerClient,
		Rates:           rates,
		Metrics:         metrics.NewSettlementMetrics(registry),
		Logger:          logg,
		TransferTimeout: cfg.Ledger.TransferTimeout,
	})
	if err != nil {
		return nil, err
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, outboxService)
	if err != nil {
		return nil, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Carts:    cartService,
		Settler:  engine,
		Payers:   usersService,
		Orders:   ordersService,
		Currency: cfg.Settlement.Currency,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(routes.Params{
		Config:   cfg,
		Logger:   logg,
		Gatherer: registry,
		Metrics:  metrics.NewHTTPMetrics(registry),
		Ready: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Sessions:      sessionManager,
		Store:         redisClient,
		Auth:          authService,
		Register:      registerService,
		Users:         usersService,
		Products:      productsService,
		Cart:          cartService,
		Checkout:      checkoutService,
		Orders:        ordersService,
		Notifications: notificationsService,
	}), nil
}

func closeAll(ctx context.Context, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) error {
	err := multierr.Combine(dbClient.Close(), redisClient.Close())
	if err != nil {
		logg.Error(ctx, "error closing connections", err)
	}
	return err
}
