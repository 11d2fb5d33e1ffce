// Package main is the entry point for the feed ranking API server.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/driftline/driftline/internal/api"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/db"
	"github.com/driftline/driftline/internal/feed"
	"github.com/driftline/driftline/internal/health"
	"github.com/driftline/driftline/internal/middleware"
	"github.com/driftline/driftline/internal/ranking"
	"github.com/driftline/driftline/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Driftline Feed Ranking API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx := context.Background()

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "driftline-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Stores: Postgres when configured, in-memory for local development.
	var (
		posts        feed.PostStore
		follows      feed.FollowStore
		interactions feed.InteractionStore
		negatives    feed.NegativeSignalStore
		checkers     = map[string]health.Checker{}
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		stores := feed.NewPostgresStores(pool)
		posts = stores.Posts
		follows = stores.Follows
		interactions = stores.Interactions
		negatives = stores.Negatives
		checkers["database"] = health.NewDBChecker(pool)
		logger.Info("using postgres stores")
	} else {
		memPosts := feed.NewInMemoryPostStore()
		memFollows := feed.NewInMemoryFollowStore()
		memPosts.UseFollowGraph(memFollows)
		posts = memPosts
		follows = memFollows
		interactions = feed.NewInMemoryInteractionStore()
		negatives = feed.NewInMemoryNegativeSignalStore()
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Optional Redis cache for interest profiles.
	var profileCache feed.ProfileCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		profileCache = feed.NewRedisProfileCache(client, feed.DefaultProfileCacheTTL, logger)
		checkers["redis"] = health.NewRedisChecker(client)
		logger.Info("interest profile cache enabled")
	}

	// Ranking weights: shipped defaults, optionally overridden by a
	// calibration file.
	weights := ranking.DefaultWeights()
	if cfg.CalibrationPath != "" {
		loaded, err := ranking.LoadCalibration(cfg.CalibrationPath)
		if err != nil {
			logger.Error("failed to load calibration", "path", cfg.CalibrationPath, "error", err)
			os.Exit(1)
		}
		weights = loaded
	}

	metrics := feed.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	params := feed.DefaultParams()
	if cfg.RankTimeoutSeconds > 0 {
		params.Timeout = time.Duration(cfg.RankTimeoutSeconds) * time.Second
	}
	if cfg.ScoreWorkers > 0 {
		params.ScoreWorkers = cfg.ScoreWorkers
	}
	if cfg.MaxCandidates > 0 {
		params.MaxCandidates = cfg.MaxCandidates
	}

	engine := feed.NewEngine(posts, follows, interactions, negatives, weights, profileCache, params, metrics, logger)

	// Routes
	feedHandler := api.NewFeedHandler(engine, posts, logger)
	healthHandler := api.NewHealthHandler(checkers, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /feed/home", feedHandler.HandleHomeFeed)
	mux.HandleFunc("GET /feed/explore", feedHandler.HandleExploreFeed)
	mux.HandleFunc("GET /search/posts", feedHandler.HandleSearchPosts)
	mux.HandleFunc("GET /health/live", healthHandler.HandleLiveness)
	mux.HandleFunc("GET /health/ready", healthHandler.HandleReadiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Apply middleware: RequestID -> Logging
	handler := middleware.RequestID(middleware.Logging(logger)(mux))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
