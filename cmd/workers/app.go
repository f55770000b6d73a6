package main

import (
	"context"
	"fmt"
	"log/slog"

	"gmq/internal/platform/config"
	"gmq/internal/platform/kv"
	"gmq/internal/platform/logger"
	"gmq/internal/platform/metrics"
	"gmq/internal/platform/redis"
	"gmq/internal/queue"
	"gmq/internal/stats"
	txservice "gmq/internal/transaction/service"
	txstore "gmq/internal/transaction/store"
	valstore "gmq/internal/validator/store"
	audit "gmq/pkg/platform/audit"
	"gmq/pkg/platform/audit/publisher"
	"gmq/pkg/platform/audit/store/kafka"
	"gmq/pkg/platform/audit/store/memory"
)

// app holds what every subcommand shares: one Redis pool and the stores
// built on it.
type app struct {
	cfg          config.Config
	logger       *slog.Logger
	metrics      *metrics.Metrics
	redis        *redis.Client
	kv           *kv.RedisStore
	client       *queue.Client
	transactions *txstore.Store
	validators   *valstore.Store
	counters     *stats.Counters
	auditor      *publisher.Publisher
	service      *txservice.Service

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		logger:  logger.New(cfg.LogFormat, cfg.LogLevel),
		metrics: metrics.New(),
	}

	a.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.redis.Close() })

	a.kv = kv.NewRedis(a.redis.Client, kv.WithMetrics(a.metrics))
	a.client = queue.NewClient(a.kv, queue.WithDefaultQueue(cfg.Worker.Queues[0]))
	a.transactions = txstore.New(a.kv, a.client, txstore.WithTTL(cfg.TransactionTTL))
	a.validators = valstore.New(a.kv, a.client, valstore.WithTTL(cfg.ValidatorTTL))
	a.counters = stats.New(a.kv, a.metrics)

	sink, err := a.auditStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auditor = publisher.NewPublisher(sink, publisher.WithAsyncBuffer(1024), publisher.WithLogger(a.logger))
	a.closers = append(a.closers, a.auditor.Close)

	a.service = txservice.New(a.transactions,
		txservice.WithLocation(cfg.Timezone),
		txservice.WithRetrieveMode(cfg.Worker.RetrieveMode, cfg.Worker.CallbackEnabled),
		txservice.WithAuditor(a.auditor),
		txservice.WithLogger(a.logger),
	)
	return a, nil
}

// auditStore ships events to Kafka when brokers are configured, otherwise
// keeps them in process memory.
func (a *app) auditStore(ctx context.Context) (audit.Store, error) {
	if len(a.cfg.KafkaBrokers) == 0 {
		a.logger.Info("audit events kept in memory; set GMQ_KAFKA_BROKERS to ship them")
		return memory.NewInMemoryStore(), nil
	}
	s, err := kafka.New(ctx, a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
