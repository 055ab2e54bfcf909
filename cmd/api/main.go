package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rentfolio/propsync/cmd/mainconfig"
	"github.com/rentfolio/propsync/internal/api/router"
	"github.com/rentfolio/propsync/internal/app/bootstrap"
	appconfig "github.com/rentfolio/propsync/internal/config"
	"github.com/rentfolio/propsync/internal/http/handlers"
	"github.com/rentfolio/propsync/internal/worker/redelivery"
	"github.com/rentfolio/propsync/pkg/logging"
)

func main() {
	// Local development reads a .env file; deployments use real env vars.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting propsync API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.BuildStack(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("failed to build service stack", "error", err)
		os.Exit(1)
	}
	defer stack.Close()

	webhookHandler := handlers.NewBuildiumWebhookHandler(stack.Verifier, stack.Pipeline, stack.Metrics, logger)
	adminEvents := handlers.NewAdminEventsHandler(stack.Events, stack.Pipeline, logger)
	adminSyncs := handlers.NewAdminSyncHandler(stack.SyncStatus, stack.Retryer, logger)
	paymentsHandler := handlers.NewPaymentsHandler(stack.Payments, stack.Metrics, logger)
	transactionsHandler := handlers.NewTransactionsHandler(stack.Reader, logger)
	healthHandler := handlers.NewHealthHandler(stack.Pool, stack.Redis, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		Webhook:         webhookHandler,
		AdminEvents:     adminEvents,
		AdminSyncs:      adminSyncs,
		Payments:        paymentsHandler,
		Transactions:    transactionsHandler,
		Health:          healthHandler,
		MetricsHandler:  promhttp.Handler(),
		AdminAuthSecret: cfg.AdminJWTSecret,

		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WebhookRateLimit:   cfg.WebhookRateLimit,
		WebhookRateBurst:   cfg.WebhookRateBurst,
	})

	// The in-process redelivery worker runs alongside the API when a
	// queue is configured; larger deployments run cmd/redelivery-worker
	// as its own process instead.
	if cfg.RedeliveryQueueURL != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue := redelivery.NewQueue(sqs.NewFromConfig(awsCfg), cfg.RedeliveryQueueURL)
		worker := redelivery.NewWorker(queue, stack.Events, stack.Pipeline, logger).
			WithBatchSize(cfg.RedeliveryBatchSize)
		go worker.Run(ctx)
		logger.Info("redelivery worker started", "queue_url", cfg.RedeliveryQueueURL)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
