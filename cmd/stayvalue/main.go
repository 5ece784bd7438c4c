package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/radiusdt/stayvalue/internal/capi"
	"github.com/radiusdt/stayvalue/internal/config"
	"github.com/radiusdt/stayvalue/internal/database"
	"github.com/radiusdt/stayvalue/internal/dispatch"
	"github.com/radiusdt/stayvalue/internal/geo"
	"github.com/radiusdt/stayvalue/internal/httpserver"
	"github.com/radiusdt/stayvalue/internal/ltv"
	"github.com/radiusdt/stayvalue/internal/metrics"
	"github.com/radiusdt/stayvalue/internal/middleware"
	"github.com/radiusdt/stayvalue/internal/storage"
)

const (
	connectTimeout    = 10 * time.Second
	dispatchLogSize   = 10000
	limiterCleanup    = time.Hour
	poolStatsInterval = 15 * time.Second
	idleTimeout       = 60 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	format := cfg.Log.Format
	if cfg.IsDevelopment() {
		format = "console"
	}
	logger, err := middleware.NewLogger(cfg.Log.Level, format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting stayvalue",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	checks := map[string]httpserver.HealthCheck{}

	// Booking history
	var history ltv.BookingHistory
	if cfg.Database.Enabled {
		connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		db, err := database.NewPostgresDB(connCtx, cfg.Database, logger)
		cancel()
		if err != nil {
			logger.Warn("PostgreSQL not available, using in-memory booking history", zap.Error(err))
		} else {
			defer db.Close()
			history = storage.NewPostgresBookingRepo(db.SQL())
			checks["postgres"] = db.Health
			go db.ReportStats(ctx, m, poolStatsInterval)
		}
	}
	if history == nil {
		history = storage.NewInMemoryBookingRepo()
	}

	// Dispatch recorders
	memLog := storage.NewInMemoryDispatchLog(dispatchLogSize)
	recorders := []dispatch.Recorder{memLog}
	var stats httpserver.StatsSource = memLog

	if cfg.Redis.Enabled {
		connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		rdb, err := database.NewRedisDB(connCtx, cfg.Redis, logger)
		cancel()
		if err != nil {
			logger.Warn("Redis not available, dispatch counters kept in memory", zap.Error(err))
		} else {
			defer rdb.Close()
			counters := storage.NewRedisDispatchCounters(rdb.Client, m)
			recorders = append(recorders, counters)
			stats = counters
			checks["redis"] = rdb.Health
		}
	}

	if cfg.ClickHouse.Enabled {
		connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		ch, err := database.NewClickHouseDB(connCtx, cfg.ClickHouse, logger)
		if err == nil {
			dispatchLog := storage.NewClickHouseDispatchLog(ch.Conn)
			if err = dispatchLog.EnsureSchema(connCtx); err == nil {
				defer ch.Close()
				recorders = append(recorders, dispatchLog)
				checks["clickhouse"] = ch.Health
			} else {
				_ = ch.Close()
			}
		}
		cancel()
		if err != nil {
			logger.Warn("ClickHouse not available, dispatch log disabled", zap.Error(err))
		}
	}

	// Geo enrichment
	var geoLookup dispatch.GeoLookup
	if cfg.Geo.Enabled {
		provider, err := geo.NewMaxMindProvider(cfg.Geo.DatabasePath)
		if err != nil {
			logger.Warn("failed to open GeoIP database, geo enrichment disabled", zap.Error(err))
		} else {
			resolver := geo.NewResolver(provider, cfg.Geo.CacheSize, cfg.Geo.CacheTTL, m)
			defer resolver.Close()
			geoLookup = resolver
		}
	}

	// Conversions API
	var sender dispatch.Sender
	if cfg.Meta.Enabled() {
		sender = capi.NewClient(cfg.CAPI(), logger, m)
		logger.Info("Conversions API enabled",
			zap.String("pixel_id", cfg.Meta.PixelID),
			zap.Bool("test_mode", cfg.Meta.TestEventCode != "" && !cfg.IsProduction()),
		)
	} else {
		logger.Warn("Conversions API not configured, lifecycle events will not be sent")
	}

	profiles := ltv.NewService(
		history,
		ltv.NewCalculator(ltv.NewSegmenter(cfg.Scoring.DomesticCities)),
		logger,
		m,
	)

	dispatcher := dispatch.NewDispatcher(
		dispatch.Config{
			DefaultCurrency: cfg.Scoring.DefaultCurrency,
			CountryCode:     cfg.Scoring.CountryCode,
			SendTimeout:     cfg.Meta.Timeout,
		},
		profiles,
		sender,
		geoLookup,
		recorders,
		logger,
		m,
	)

	limiter := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger, m)
	go func() {
		ticker := time.NewTicker(limiterCleanup)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.CleanupIPLimiters()
			}
		}
	}()

	handler := httpserver.NewServer(&httpserver.Dependencies{
		Profiles:     profiles,
		Dispatcher:   dispatcher,
		Stats:        stats,
		HealthChecks: checks,
		RateLimiter:  limiter,
		Gatherer:     reg,
		Config:       cfg,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
