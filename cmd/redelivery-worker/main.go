package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rentfolio/propsync/cmd/mainconfig"
	"github.com/rentfolio/propsync/internal/app/bootstrap"
	appconfig "github.com/rentfolio/propsync/internal/config"
	"github.com/rentfolio/propsync/internal/worker/redelivery"
	"github.com/rentfolio/propsync/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" || cfg.RedeliveryQueueURL == "" {
		logger.Error("redelivery worker requires DATABASE_URL and REDELIVERY_QUEUE_URL")
		os.Exit(1)
	}

	stack, err := bootstrap.BuildStack(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to build service stack", "error", err)
		os.Exit(1)
	}
	defer stack.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := redelivery.NewQueue(sqs.NewFromConfig(awsCfg), cfg.RedeliveryQueueURL)
	worker := redelivery.NewWorker(queue, stack.Events, stack.Pipeline, logger).
		WithBatchSize(cfg.RedeliveryBatchSize)

	// Seed the queue with rows that dead-lettered while no worker was
	// running, then drain continuously.
	if n, err := worker.EnqueueBacklog(ctx, 100); err != nil {
		logger.Warn("backlog enqueue failed", "error", err)
	} else if n > 0 {
		logger.Info("enqueued dead-lettered backlog", "count", n)
	}

	go worker.Run(ctx)
	logger.Info("redelivery worker running", "queue_url", cfg.RedeliveryQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("redelivery worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
