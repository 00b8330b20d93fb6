package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spot-trader/internal/interfaces"
	"spot-trader/internal/logger"
	"spot-trader/internal/notify"
	"spot-trader/internal/recs"
	"spot-trader/internal/store"
	"spot-trader/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	compressOldLogs(ctx)

	exchange := initializeExchange(ctx, cfg)
	filterSvc := initializeFilters(cfg, exchange)

	positions, err := store.OpenPositions(cfg.DataDir)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open position store", err, "dir", cfg.DataDir)
		os.Exit(1)
	}

	cache := recs.NewCache()
	source := recs.NewFileSource(cfg.Recs.File, cache)
	hub := notify.NewHub(notify.LogSink{})

	eng := initializeEngine(cfg, exchange, cache, filterSvc, positions, hub)
	startMetricsServer(ctx, cfg, eng, cache, positions)

	logger.Info(ctx, "Trader started",
		"mode", cfg.Mode,
		"exchange", cfg.Exchange,
		"universe", cfg.Universe,
		"period_seconds", cfg.Trading.PeriodSeconds,
		"interval", cfg.Trading.CandleInterval,
	)

	tick := time.NewTicker(time.Duration(cfg.Trading.PeriodSeconds) * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if err := source.Poll(ctx); err != nil {
				logger.Warn(ctx, "Recommendation snapshot poll failed", "error", err)
			}
			if _, err := eng.RunTick(ctx, cfg.Universe, cfg.Trading.CandleInterval); err != nil {
				logger.ErrorWithErr(ctx, "Tick failed", err)
			}
		case <-ctx.Done():
			logger.Info(ctx, "Shutting down")
			if err := trace.Shutdown(context.Background()); err != nil {
				logger.Warn(ctx, "Tracer shutdown failed", "error", err)
			}
			return
		}
	}
}

// statusHandler reports the engine's last-run view plus the position rows
// and the recommendation snapshot metadata for external readers.
func statusHandler(eng interfaces.Engine, cache *recs.Cache, positions *store.PositionStore) http.HandlerFunc {
	type recsStatus struct {
		PushedAt int64 `json:"pushed_at"`
		Count    int   `json:"count"`
	}
	type statusResponse struct {
		Engine    interfaces.EngineStatus `json:"engine"`
		Positions []store.Position        `json:"positions"`
		Recs      recsStatus              `json:"recs"`
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		pushedAt, count := cache.Meta()
		out := statusResponse{
			Engine:    eng.Status(),
			Positions: positions.All(),
			Recs:      recsStatus{Count: count},
		}
		if !pushedAt.IsZero() {
			out.Recs.PushedAt = pushedAt.Unix()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
