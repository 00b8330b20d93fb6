package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"spot-trader/internal/engine"
	"spot-trader/internal/engine/engineobs"
	"spot-trader/internal/exchange/exchangeobs"
	"spot-trader/internal/exchange/mexc"
	"spot-trader/internal/filters"
	"spot-trader/internal/interfaces"
	"spot-trader/internal/logger"
	"spot-trader/internal/notify"
	"spot-trader/internal/recs"
	"spot-trader/internal/store"
	"spot-trader/internal/trace"
	"spot-trader/internal/tradelog"
)

// initializeSystem initializes env, logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old order-log files if retention is configured.
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old order logs", "error", err)
		}
	}
}

// initializeExchange builds the MEXC client with observability middleware.
// Credentials come from the environment, not the config file.
func initializeExchange(ctx context.Context, cfg *store.Config) interfaces.Exchange {
	client := mexc.New(mexc.Params{
		BaseURL: cfg.BaseURL,
		Key:     os.Getenv("MEXC_API_KEY"),
		Secret:  os.Getenv("MEXC_API_SECRET"),
	})

	if cfg.Live() {
		logger.Info(ctx, "Running in LIVE mode, orders hit the real endpoint")
	} else {
		logger.Warn(ctx, "Running in SIMULATION mode, orders go to the validate-only endpoint")
	}

	return exchangeobs.Wrap(client)
}

func initializeFilters(cfg *store.Config, exchange interfaces.Exchange) *filters.Service {
	return filters.New(
		exchange,
		time.Duration(cfg.Filters.MetadataTTLSeconds)*time.Second,
		decimal.NewFromFloat(cfg.Filters.MinNotionalFloor),
	)
}

// initializeEngine builds the trading engine with observability middleware.
func initializeEngine(cfg *store.Config, exchange interfaces.Exchange, cache *recs.Cache,
	filterSvc *filters.Service, positions *store.PositionStore, sink notify.Sink) interfaces.Engine {

	eng := engine.New(cfg, exchange, cache, filterSvc, positions, sink)
	return engineobs.Wrap(eng)
}

// startMetricsServer serves /metrics and /healthz until the context ends.
func startMetricsServer(ctx context.Context, cfg *store.Config, eng interfaces.Engine,
	cache *recs.Cache, positions *store.PositionStore) {

	if !cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", statusHandler(eng, cache, positions))

	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		logger.Info(ctx, "Metrics server listening", "addr", cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorWithErr(ctx, "Metrics server failed", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
