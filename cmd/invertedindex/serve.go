package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/analytics"
	snapshotstore "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/analytics/aggregator"
	gwmw "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/gateway/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/store"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/executor"
	searchhandler "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/resilience"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// serve wires every component from cfg and blocks until ctx is cancelled
// or a server fails.
func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting inverted index service", "env", cfg.Env, "port", cfg.Server.Port)

	m := metrics.New(prometheus.DefaultRegisterer)

	checker := health.NewChecker()
	st := store.New()
	// Redis is optional: the query cache runs local-only without it.
	var remote cache.Remote
	if cfg.Redis.Enabled {
		var rc *redis.Client
		err := resilience.Retry(ctx, "redis-connect", resilience.RetryConfig{MaxAttempts: 5}, func() error {
			var err error
			rc, err = redis.NewClient(ctx, cfg.Redis)
			if redis.IsConfigError(err) {
				return resilience.Permanent(err)
			}
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, continuing with local cache only", "error", err)
		} else {
			defer rc.Close()
			remote = rc
			checker.Register("redis", health.PingCheck(rc.Ping, health.StatusDegraded))
			slog.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	var queryCache *cache.QueryCache
	if cfg.Cache.Enabled {
		var err error
		queryCache, err = cache.New(cache.Options{
			LocalSize:     cfg.Cache.LocalSize,
			TTL:           cfg.Redis.CacheTTL,
			RemoteTimeout: cfg.Cache.RemoteTimeout,
		}, remote, m)
		if err != nil {
			return fmt.Errorf("creating query cache: %w", err)
		}
	}

	aggregator := analytics.NewAggregator(nil)
	var publisher analytics.Publisher = aggregator
	if cfg.Analytics.Enabled {
		topic := cfg.Kafka.Topics.AnalyticsEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		publisher = producer
		aggregator.SetConsumer(kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator)))
		checker.Register("kafka", health.PingCheck(producer.Ping, health.StatusDegraded))
		slog.Info("analytics events routed through kafka", "brokers", cfg.Kafka.Brokers, "topic", topic)
	}

	var history analytics.SnapshotLister
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db.Ping, health.StatusDown))

		snapshots := snapshotstore.NewStore(db, cfg.Analytics.SnapshotRetain)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing snapshot schema: %w", err)
		}
		if err := snapshots.Restore(ctx, aggregator); err != nil {
			slog.Warn("could not restore analytics snapshot", "error", err)
		}
		snapCtx, stopSnapshots := context.WithCancel(ctx)
		saved := snapshots.StartPeriodicSave(snapCtx, aggregator, cfg.Analytics.SnapshotInterval)
		// runs after the collector drains and before db.Close
		defer func() {
			stopSnapshots()
			<-saved
		}()
		history = snapshots
	}

	collector := analytics.NewCollector(publisher, cfg.Analytics.BufferSize)
	collector.Start(ctx)
	defer collector.Close()

	engine := indexer.NewEngine(st, m, collector)
	checker.Register("index_store", engine.Ready)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window)
		defer limiter.Close()
	}

	handler := router.New(router.Handlers{
		Ingestion: ingesthandler.New(engine),
		Search:    searchhandler.New(executor.New(m), queryCache, collector, m),
		Analytics: analytics.NewHandler(aggregator, history),
		Health:    checker,
	}, router.Options{
		Metrics:      m,
		Limiter:      limiter,
		CORS:         gwmw.DefaultCORSConfig(cfg.Server.AllowOrigins),
		Timeout:      cfg.Server.WriteTimeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Tracing:      cfg.Tracing.Enabled,
	})

	servers := map[string]*http.Server{
		"api": {
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout + time.Second,
		},
	}
	if cfg.Metrics.Enabled {
		servers["metrics"] = metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, server := range servers {
		g.Go(func() error {
			slog.Info("server listening", "server", name, "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return aggregator.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for name, server := range servers {
			if err := server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("%s server shutdown: %w", name, err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		slog.Error("service stopped with error", "error", err)
		return err
	}
	slog.Info("inverted index service stopped")
	return nil
}
