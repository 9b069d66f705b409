// Command analytics starts the standalone analytics aggregation service.
//
// It consumes micro-blog usage events from Kafka, aggregates them in memory
// (mutation counts, query latency percentiles, cache hit rate, top query
// keys), exposes an HTTP API at GET /api/v1/analytics, and periodically
// snapshots the aggregates to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/microtrend-io/microtrend/internal/analytics"
	"github.com/microtrend-io/microtrend/internal/analytics/snapshot"
	"github.com/microtrend-io/microtrend/pkg/config"
	"github.com/microtrend-io/microtrend/pkg/health"
	"github.com/microtrend-io/microtrend/pkg/kafka"
	"github.com/microtrend-io/microtrend/pkg/logger"
	"github.com/microtrend-io/microtrend/pkg/middleware"
	"github.com/microtrend-io/microtrend/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	defer consumer.Close()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	var snapshotStore *snapshot.Store
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer pg.Close()
		snapshotStore = snapshot.NewStore(pg)
		if err := snapshotStore.Init(ctx); err != nil {
			slog.Error("failed to initialize snapshot schema", "error", err)
			os.Exit(1)
		}
		go snapshotStore.StartPeriodicSave(ctx, aggregator, cfg.Postgres.SnapshotEvery)
		slog.Info("snapshot store started", "every", cfg.Postgres.SnapshotEvery)
	}

	analyticsHandler := analytics.NewHandler(aggregator)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pg == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pg.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	if snapshotStore != nil {
		snapshotHandler := snapshot.NewHandler(snapshotStore)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", snapshotHandler.List)
		mux.HandleFunc("GET /api/v1/analytics/snapshots/latest", snapshotHandler.Latest)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
