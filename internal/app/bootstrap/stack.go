package bootstrap

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/rentfolio/propsync/internal/alert"
	"github.com/rentfolio/propsync/internal/buildium"
	appconfig "github.com/rentfolio/propsync/internal/config"
	"github.com/rentfolio/propsync/internal/entities"
	"github.com/rentfolio/propsync/internal/ledger"
	"github.com/rentfolio/propsync/internal/observability/metrics"
	"github.com/rentfolio/propsync/internal/payments"
	"github.com/rentfolio/propsync/internal/syncstatus"
	"github.com/rentfolio/propsync/internal/webhook"
	"github.com/rentfolio/propsync/pkg/logging"
)

// Stack holds the shared service graph behind every binary: the API
// server, the redelivery worker, and the webhook Lambda all wire the
// same pipeline.
type Stack struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Remote  *buildium.Client
	Metrics *metrics.WebhookMetrics
	Alerts  alert.Notifier

	Events   *webhook.Store
	Pipeline *webhook.Pipeline
	Verifier *webhook.SignatureVerifier

	Entities   *entities.Store
	Ledger     *ledger.Engine
	Reader     *ledger.Reader
	SyncStatus *syncstatus.Store
	Retryer    *syncstatus.Retryer

	Payments *payments.Service
}

// BuildStack connects the database, Redis, the Buildium client and the
// webhook pipeline. The caller owns Pool and Redis and must close them.
func BuildStack(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer) (*Stack, error) {
	if logger == nil {
		logger = logging.Default()
	}

	pool, err := BuildPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	redisClient := BuildRedisClient(ctx, cfg, logger, true)

	remote := buildium.NewClient(buildium.Config{
		BaseURL:      cfg.BuildiumBaseURL,
		ClientID:     cfg.BuildiumClientID,
		ClientSecret: cfg.BuildiumClientSecret,
		Timeout:      cfg.BuildiumRequestTimeout,
		MaxAttempts:  cfg.BuildiumRetryMaxAttempts,
		BaseDelay:    cfg.BuildiumRetryBaseDelay,
	}, logger)

	m := metrics.NewWebhookMetrics(reg)
	alerts := alert.NotifierOrNoop(alert.NewPagerDutySink(cfg.PagerDutyRoutingKey, cfg.PagerDutyEventsURL, logger))

	eventStore := webhook.NewStore(pool, logger)
	syncStore := syncstatus.NewStore(pool, logger)
	entityStore := entities.NewStore(pool, logger)

	resolver := ledger.NewGLAccountResolver(pool, remote, redisClient, logger)
	refs := ledger.NewRefs(pool, logger)
	engine := ledger.NewEngine(pool, resolver, refs, logger)
	reader := ledger.NewReader(pool, logger)

	processor := webhook.NewProcessor(remote, entityStore, engine, syncStore, logger).WithMetrics(m)
	retryExec := webhook.NewRetryExecutor(cfg.WebhookMaxRetries,
		time.Duration(cfg.WebhookBackoffBaseMS)*time.Millisecond, logger)
	pipeline := webhook.NewPipeline(eventStore, processor, retryExec, m, alerts, logger)

	var replay webhook.ReplayCache
	if redisClient != nil {
		replay = webhook.NewRedisReplayCache(redisClient)
	}
	verifier := webhook.NewSignatureVerifier(cfg.WebhookSecret, cfg.WebhookRequireSignature,
		cfg.WebhookTimestampWindow, replay, logger)

	retryer := syncstatus.NewRetryer(syncStore, logger)
	registerSyncRetries(retryer, remote, entityStore)

	intents := payments.NewIntentStore(pool, logger)
	paymentSvc := payments.NewService(intents, remote, engine, logger)

	return &Stack{
		Pool:       pool,
		Redis:      redisClient,
		Remote:     remote,
		Metrics:    m,
		Alerts:     alerts,
		Events:     eventStore,
		Pipeline:   pipeline,
		Verifier:   verifier,
		Entities:   entityStore,
		Ledger:     engine,
		Reader:     reader,
		SyncStatus: syncStore,
		Retryer:    retryer,
		Payments:   paymentSvc,
	}, nil
}

// Close releases the connections the stack owns.
func (s *Stack) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// registerSyncRetries wires the entity types that can be re-fetched by a
// single remote id. Ledger transaction failures are retried through the
// webhook event redelivery queue instead, which preserves the original
// event context the fetch needs.
func registerSyncRetries(retryer *syncstatus.Retryer, remote *buildium.Client, store *entities.Store) {
	retryer.Register("property", func(ctx context.Context, rec syncstatus.Record) error {
		property, err := remote.GetProperty(ctx, rec.BuildiumID)
		if err != nil {
			return err
		}
		_, _, err = store.UpsertProperty(ctx, property, "")
		return err
	})
	retryer.Register("owner", func(ctx context.Context, rec syncstatus.Record) error {
		owner, err := remote.GetOwner(ctx, rec.BuildiumID)
		if err != nil {
			return err
		}
		_, _, err = store.UpsertOwner(ctx, owner, "")
		return err
	})
	retryer.Register("lease", func(ctx context.Context, rec syncstatus.Record) error {
		lease, err := remote.GetLease(ctx, rec.BuildiumID)
		if err != nil {
			return err
		}
		_, _, err = store.UpsertLease(ctx, lease, "")
		return err
	})
	retryer.Register("gl_account", func(ctx context.Context, rec syncstatus.Record) error {
		account, err := remote.GetGLAccount(ctx, rec.BuildiumID)
		if err != nil {
			return err
		}
		_, err = store.UpsertGLAccount(ctx, account, "")
		return err
	})
	retryer.Register("bank_account", func(ctx context.Context, rec syncstatus.Record) error {
		bankAccount, err := remote.GetBankAccount(ctx, rec.BuildiumID)
		if err != nil {
			return err
		}
		_, err = store.UpsertBankAccount(ctx, bankAccount, "")
		return err
	})
}
