// Package main is the entry point for the outbox relay worker. It delivers
// committed payment events and serves prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stoq/internal/config"
	"stoq/internal/infrastructure/metrics"
	"stoq/internal/infrastructure/storage/postgres"
	"stoq/pkg/logger"
)

const (
	namespace       = "stoq"
	purgeInterval   = time.Hour
	publishedRetain = 7 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithLogger(ctx, log.WithComponent("worker"))

	pool, err := postgres.NewPool(ctx, cfg.Pool())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(namespace, reg)
	metrics.RegisterPool(namespace, reg, pool.Stats)

	txManager := postgres.NewTxManager(pool)
	relay := postgres.NewOutboxRelay(txManager, cfg.OutboxBatchSize, m.Instrument(postgres.OutboxHandlerFunc(
		func(ctx context.Context, msg *postgres.OutboxMessage) error {
			if err := m.Handle(ctx, msg); err != nil {
				return err
			}
			logger.Debug(ctx, "outbox message delivered",
				"event_type", msg.EventType,
				"aggregate_type", msg.AggregateType,
				"aggregate_id", msg.AggregateID,
			)
			return nil
		})))
	relay.OnDeadLetter(m.DeadLettered)

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		log.Infow("metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		log.Infow("outbox relay started", "batch_size", cfg.OutboxBatchSize, "interval", cfg.OutboxPollInterval)
		if err := relay.Run(ctx, cfg.OutboxPollInterval); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("outbox relay stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		housekeeping(ctx, relay, pool)
	}()

	<-ctx.Done()
	log.Info("shutting down worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("metrics server shutdown failed", "error", err)
	}

	wg.Wait()
	log.Info("worker stopped")
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// housekeeping purges old published messages and logs pool usage.
func housekeeping(ctx context.Context, relay *postgres.OutboxRelay, pool *postgres.Pool) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := relay.Purge(ctx, publishedRetain)
			if err != nil {
				logger.Error(ctx, "outbox purge failed", "error", err)
			} else if n > 0 {
				logger.Info(ctx, "purged published outbox messages", "count", n)
			}
			pool.LogStats(ctx)
		}
	}
}
