package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gmq/internal/certificate"
	"gmq/internal/deadletter"
	"gmq/internal/mailer"
	"gmq/internal/platform/config"
	"gmq/internal/platform/httpserver"
	"gmq/internal/queue"
	"gmq/internal/rci"
	httptransport "gmq/internal/transport/http"
	"gmq/internal/workers"
)

const (
	scheduleInterval = time.Second
	shutdownGrace    = 10 * time.Second
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process jobs and serve the ops endpoints until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx)
		},
	}
}

func run(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.ValidateWorkers(); err != nil {
		return err
	}
	overrides, err := config.LoadRetryPolicies(a.cfg.Worker.RetryPolicyFile)
	if err != nil {
		return err
	}
	if err := a.counters.Init(ctx); err != nil {
		return err
	}

	var archive *deadletter.Archive
	if a.cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, a.cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect dead job archive: %w", err)
		}
		defer pool.Close()
		archive = deadletter.NewArchive(pool)
		if err := archive.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	set := workers.New(
		a.transactions,
		a.validators,
		mailer.NewSMTP(a.cfg.SMTP),
		rci.New(a.cfg.RCI, a.cfg.Timezone, rci.WithLogger(a.logger)),
		certificate.NewRenderer(a.cfg.Worker.CertificateDir),
		workers.WithPipeline(a.cfg.Worker),
		workers.WithAuditor(a.auditor),
		workers.WithLogger(a.logger),
	)
	registry := queue.NewRegistry()
	if err := set.Register(registry, overrides); err != nil {
		return err
	}

	queues := a.cfg.Worker.Queues
	recovered, err := queue.Recover(ctx, a.kv, queues, a.logger)
	if err != nil {
		return err
	}
	if recovered > 0 {
		a.logger.Info("in-flight jobs recovered", "count", recovered)
	}

	var sink deadletter.Inserter
	if archive != nil {
		sink = archive
	}
	dispatcher := queue.NewDispatcher(a.kv, registry,
		queue.WithQueues(queues...),
		queue.WithConcurrency(a.cfg.Worker.Concurrency),
		queue.WithPollTimeout(a.cfg.Worker.PollTimeout),
		queue.WithLogger(a.logger),
		queue.WithDeadHook(deadletter.Hook(sink, a.auditor, a.logger)),
	)
	scheduler := queue.NewScheduler(a.kv, queues, scheduleInterval, a.logger)

	opts := []httptransport.Option{}
	if archive != nil {
		opts = append(opts, httptransport.WithArchive(archive))
	}
	handler := httptransport.NewHandler(a.service, a.counters, queue.NewDeadLetters(a.kv), a.kv, a.logger, opts...)
	srv := httpserver.New(a.cfg.OpsAddr, httptransport.NewRouter(handler, a.cfg.AdminToken, a.metrics))

	a.logger.Info("workers starting",
		"queues", queues,
		"concurrency", a.cfg.Worker.Concurrency,
		"classes", registry.Classes(),
		"ops_addr", a.cfg.OpsAddr,
		"archive", archive != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return httpserver.Run(gctx, srv, shutdownGrace) })

	err = g.Wait()
	a.logger.Info("workers stopped", "error", err)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
