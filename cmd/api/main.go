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

	"github.com/ledgerline/ledgerline-backend/api/routes"
	"github.com/ledgerline/ledgerline-backend/internal/businesses"
	"github.com/ledgerline/ledgerline-backend/internal/invoices"
	"github.com/ledgerline/ledgerline-backend/internal/ledger"
	"github.com/ledgerline/ledgerline-backend/internal/products"
	"github.com/ledgerline/ledgerline-backend/pkg/config"
	"github.com/ledgerline/ledgerline-backend/pkg/db"
	"github.com/ledgerline/ledgerline-backend/pkg/logger"
	"github.com/ledgerline/ledgerline-backend/pkg/metrics"
	"github.com/ledgerline/ledgerline-backend/pkg/migrate"
	"github.com/ledgerline/ledgerline-backend/pkg/redis"
)

const shutdownGrace = 20 * time.Second

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var (
		redisClient      *redis.Client
		redisPinger      redis.Pinger
		idempotencyStore redis.IdempotencyStore
	)
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		redisPinger = redisClient
		idempotencyStore = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; purchase idempotency disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	numbers, err := numberGenerator(cfg, redisClient)
	if err != nil {
		return err
	}

	productRepo := products.NewRepository(dbClient.DB())
	stock, err := ledger.NewService(productRepo, logg, metrics.NewLedgerMetrics(reg))
	if err != nil {
		return err
	}
	productService, err := products.NewService(productRepo)
	if err != nil {
		return err
	}
	invoiceService, err := invoices.NewService(
		dbClient,
		invoices.NewRepository(dbClient.DB()),
		businesses.NewRepository(dbClient.DB()),
		stock,
		numbers,
		logg,
		metrics.NewInvoiceMetrics(reg),
	)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"number_strategy": cfg.Invoicing.NumberStrategy,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisPinger,
			idempotencyStore,
			reg,
			metrics.NewHTTPMetrics(reg),
			productService,
			invoiceService,
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.App.RequestTimeout + 5*time.Second,
		WriteTimeout:      cfg.App.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func numberGenerator(cfg *config.Config, redisClient *redis.Client) (invoices.NumberGenerator, error) {
	if cfg.Invoicing.UsesSequenceNumbers() {
		if redisClient == nil {
			return nil, errors.New("sequence invoice numbers need redis")
		}
		return invoices.NewSequenceNumbers(redisClient, nil)
	}
	return invoices.NewTimestampNumbers(nil), nil
}
