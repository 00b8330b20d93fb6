package engineobs

import (
	"context"
	"time"

	"spot-trader/internal/interfaces"
	"spot-trader/internal/logger"
	"spot-trader/internal/trace"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{engine: eng}
}

func (oe *observableEngine) RunTick(ctx context.Context, symbols []string, interval string) (int, error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunTick")
	defer span.End()

	start := time.Now()
	logger.Info(ctx, "Starting trading tick", "symbols", len(symbols), "interval", interval)

	actions, err := oe.engine.RunTick(ctx, symbols, interval)
	if err != nil {
		logger.ErrorWithErr(ctx, "Trading tick failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return actions, err
	}

	logger.Info(ctx, "Trading tick completed",
		"actions", actions,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return actions, nil
}

func (oe *observableEngine) Status() interfaces.EngineStatus {
	return oe.engine.Status()
}
