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
	"time"

	"github.com/organizerlabs/smart-search-organizer/internal/analytics"
	"github.com/organizerlabs/smart-search-organizer/internal/engine"
	servercache "github.com/organizerlabs/smart-search-organizer/internal/server/cache"
	"github.com/organizerlabs/smart-search-organizer/internal/server/handler"
	"github.com/organizerlabs/smart-search-organizer/internal/server/router"
	"github.com/organizerlabs/smart-search-organizer/pkg/config"
	"github.com/organizerlabs/smart-search-organizer/pkg/health"
	"github.com/organizerlabs/smart-search-organizer/pkg/kafka"
	"github.com/organizerlabs/smart-search-organizer/pkg/logger"
	"github.com/organizerlabs/smart-search-organizer/pkg/metrics"
	pkgredis "github.com/organizerlabs/smart-search-organizer/pkg/redis"
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
	slog.Info("starting smart search organizer", "port", cfg.Server.Port)

	eng, err := engine.New(cfg.Engine)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	slog.Info("engine initialized",
		"cache_capacity", cfg.Engine.CacheCapacity,
		"default_mode", cfg.Engine.DefaultMode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var queryCache *servercache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, shared query cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = servercache.New(redisClient, cfg.Redis)
			slog.Info("shared query cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	var tracker analytics.Tracker = analytics.Noop{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.EventsTopic)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("analytics events enabled",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.EventsTopic,
		)
	}

	checker := health.NewChecker()
	checker.Register("engine", func(ctx context.Context) health.ComponentHealth {
		snap := eng.Snapshot()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", snap.Documents, snap.Terms),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if !cfg.Redis.Enabled {
			return health.ComponentHealth{Status: health.StatusUp, Message: "disabled"}
		}
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	h := handler.New(eng, queryCache, tracker, m)
	api := router.New(h, checker, m, cfg.Server.WriteTimeout)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api,
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

	slog.Info("api server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("smart search organizer stopped")
}
