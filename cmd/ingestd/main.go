// Command ingestd runs the storm advisory ingestion service: a cron-driven
// ingestion pipeline over the configured region feeds, plus the read-only
// query API and health endpoints.
//
// Usage:
//
//	ingestd                  # run the daemon
//	ingestd -once            # run a single ingestion cycle and exit
//	ingestd -once -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/storm-advisory-ingest/internal/adapter/api"
	kafkaadapter "github.com/couchcryptid/storm-advisory-ingest/internal/adapter/kafka"
	"github.com/couchcryptid/storm-advisory-ingest/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-advisory-ingest/internal/config"
	"github.com/couchcryptid/storm-advisory-ingest/internal/feed"
	"github.com/couchcryptid/storm-advisory-ingest/internal/observability"
	"github.com/couchcryptid/storm-advisory-ingest/internal/pipeline"
	"github.com/couchcryptid/storm-advisory-ingest/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run a single ingestion cycle and exit")
	logLevel := flag.String("log-level", "", "override LOG_LEVEL for this invocation")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	regions, err := config.LoadRegions(cfg.RegionsFile)
	if err != nil {
		logger.Error("failed to load regions", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.SyncRegions(ctx, regions); err != nil {
		logger.Error("failed to sync regions", "error", err)
		os.Exit(1)
	}
	logger.Info("regions configured", "count", len(regions))

	// Optional history publication (feature-flagged via KAFKA_ENABLED).
	var publisher pipeline.HistoryPublisher
	var kafkaPub *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPub = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaHistoryTopic, logger)
		publisher = kafkaPub
		logger.Info("history publication enabled", "topic", cfg.KafkaHistoryTopic)
	}

	client := feed.NewClient(cfg.FetchTimeout, cfg.FetchRatePerSecond, logger)
	parser := feed.NewParser(logger)

	orch := pipeline.New(store, client, parser, logger, metrics, pipeline.Options{
		Workers:               cfg.RegionWorkers,
		CycleTimeout:          cfg.CycleTimeout,
		MissingCycleThreshold: cfg.MissingCycleThreshold,
		FollowWalletFeeds:     cfg.FollowWalletFeeds,
		Publisher:             publisher,
	})

	if *once {
		_, err := orch.RunCycle(ctx)
		if kafkaPub != nil {
			if cerr := kafkaPub.Close(); cerr != nil {
				logger.Error("kafka publisher close error", "error", cerr)
			}
		}
		if err != nil {
			logger.Error("ingestion cycle failed", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := api.NewServer(cfg.HTTPAddr, store, orch, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sched, err := scheduler.New(cfg.CronSchedule, orch, logger)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}

	// Run one cycle immediately at startup; subsequent cycles follow the
	// cron schedule.
	go func() {
		if _, err := orch.RunCycle(ctx); err != nil {
			logger.Error("startup ingestion cycle failed", "error", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
