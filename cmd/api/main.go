// Package main is the entry point for the Relovd search API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/relovd/search-api/internal/api"
	"github.com/relovd/search-api/internal/auth"
	"github.com/relovd/search-api/internal/catalog"
	"github.com/relovd/search-api/internal/config"
	"github.com/relovd/search-api/internal/health"
	"github.com/relovd/search-api/internal/listing"
	"github.com/relovd/search-api/internal/middleware"
	"github.com/relovd/search-api/internal/rank"
	"github.com/relovd/search-api/internal/search"
	"github.com/relovd/search-api/internal/tracing"
)

const serviceName = "relovd-search"

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Relovd Search API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporterType,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	cancelPing()

	// Redis backs the catalog cache; optional.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	searchMetrics := search.NewMetrics()
	if err := searchMetrics.Register(registry); err != nil {
		logger.Error("failed to register search metrics", "error", err)
		os.Exit(1)
	}

	// Domain wiring
	store := listing.NewPostgresStore(db, logger)
	var categories catalog.Resolver = catalog.NewPostgresResolver(db)
	if redisClient != nil {
		ttl := time.Duration(cfg.CatalogCacheTTLSecs) * time.Second
		categories = catalog.NewCachedResolver(categories, redisClient, ttl, logger)
	}
	var ranker rank.Ranker
	switch cfg.RankerMode {
	case config.RankerModeStatic:
		static := rank.NewStaticRanker()
		weights, calErr := rank.LoadCalibration(cfg.RankCalibrationFile)
		if calErr != nil {
			logger.Warn("falling back to default ranking weights",
				"path", cfg.RankCalibrationFile, "error", calErr)
		}
		static.SetWeights(*weights)
		if err := warmStaticRanker(context.Background(), static, store); err != nil {
			logger.Error("failed to warm in-process ranker", "error", err)
			os.Exit(1)
		}
		ranker = static
	default:
		ranker = rank.NewProcRanker(db, logger)
	}
	searchService := search.NewService(ranker, store,
		time.Duration(cfg.RankTimeoutMS)*time.Millisecond, logger, searchMetrics)

	var identity *auth.IdentityService
	if cfg.JWTSecret != "" {
		identity = auth.NewIdentityService(cfg.JWTSecret)
	}

	searchHandlers := api.NewSearchHandlers(searchService, categories, identity, logger)

	healthConfig := api.HealthHandlersConfig{
		DBChecker: health.NewDBChecker(db),
	}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search/listings", searchHandlers.SearchListings)
	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /ready", healthHandlers.Ready)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			api.WriteError(w, r, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"relovd-search-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Middleware chain: RequestID -> Tracing -> Logging -> HTTPMetrics
	handler := middleware.RequestID(
		middleware.Tracing(serviceName)(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(httpMetrics)(mux))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracingProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}

// warmStaticRanker loads the listed catalog into the in-process ranker.
// Static mode is meant for development and small deployments, so a full
// pass over the live listings at startup is acceptable.
func warmStaticRanker(ctx context.Context, static *rank.StaticRanker, store listing.Store) error {
	const batch = 500
	for offset := 0; ; offset += batch {
		page, err := store.SearchRecent(ctx, listing.Filter{Limit: batch, Offset: offset})
		if err != nil {
			return fmt.Errorf("failed to load listings for ranking: %w", err)
		}
		for _, l := range page {
			static.Add(l)
		}
		if len(page) < batch {
			return nil
		}
	}
}
