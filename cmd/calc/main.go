package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/config"
	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/oleandro/investtrack-calc-go/internal/handler"
	"github.com/oleandro/investtrack-calc-go/internal/infra/cache"
	"github.com/oleandro/investtrack-calc-go/internal/infra/ledger"
	"github.com/oleandro/investtrack-calc-go/internal/infra/memledger"
	"github.com/oleandro/investtrack-calc-go/internal/infra/observability"
	"github.com/oleandro/investtrack-calc-go/internal/infra/resilience"
	"github.com/oleandro/investtrack-calc-go/internal/infra/scheduler"
	"github.com/oleandro/investtrack-calc-go/internal/port"
	"github.com/oleandro/investtrack-calc-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_ledger", cfg.UseLedger),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("auto_calc_enabled", cfg.AutoCalcEnabled),
		zap.Duration("auto_calc_interval", cfg.AutoCalcInterval),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "investtrack-calc")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	performanceCache := cache.New[*domain.InvestmentPerformance](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("ledger-service", logger)

	// --- Store ---
	var store port.LedgerStore
	if cfg.UseLedger && cfg.LedgerURL != "" {
		logger.Info("using Ledger Service as store",
			zap.String("ledger_url", cfg.LedgerURL),
		)
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		store = ledger.NewClient(
			httpClient,
			cfg.LedgerURL,
			cfg.LedgerAPIKey,
			cfg.LedgerServiceKey,
			cb,
			resilienceCfg,
			logger,
		)
	} else {
		logger.Warn("Ledger Service not configured, using in-memory store")
		store = memledger.New()
	}

	// --- Services ---
	interestSvc := service.NewInterestService(store, performanceCache, metrics, logger)
	returnsSvc := service.NewReturnsService(store, performanceCache, metrics, cfg.RiskFreeRate, logger)

	// --- Scheduler ---
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	if cfg.AutoCalcEnabled {
		sched := scheduler.New(store, interestSvc, cfg.AutoCalcInterval, logger)
		go sched.Run(schedCtx)
	}

	// --- Router ---
	router := handler.NewRouter(interestSvc, returnsSvc, store, metrics, cfg.JWTSecret, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stopScheduler()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
