package exchangeobs

import (
	"context"
	"time"

	"spot-trader/internal/interfaces"
	"spot-trader/internal/logger"
	"spot-trader/internal/trace"
	"spot-trader/internal/types"
)

type observableExchange struct {
	exchange interfaces.Exchange
}

var _ interfaces.Exchange = (*observableExchange)(nil)

func Wrap(ex interfaces.Exchange) interfaces.Exchange {
	return &observableExchange{exchange: ex}
}

func (oe *observableExchange) ExchangeInfo(ctx context.Context, symbols []string) ([]types.SymbolMeta, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.ExchangeInfo")
	defer span.End()

	start := time.Now()
	metas, err := oe.exchange.ExchangeInfo(ctx, symbols)
	if err != nil {
		logger.ErrorWithErr(ctx, "Exchange metadata fetch failed", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	logger.Debug(ctx, "Exchange metadata fetched", "symbols", len(metas), "duration_ms", time.Since(start).Milliseconds())
	return metas, nil
}

func (oe *observableExchange) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.Candles")
	defer span.End()
	return oe.exchange.Candles(ctx, symbol, interval, limit)
}

func (oe *observableExchange) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.PlaceOrder")
	defer span.End()

	start := time.Now()
	resp, err := oe.exchange.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Order placement failed", err,
			"symbol", req.Symbol,
			"side", string(req.Side),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
	logger.Info(ctx, "Order placement acknowledged",
		"symbol", req.Symbol,
		"side", string(req.Side),
		"order_id", resp.OrderID,
		"status", string(resp.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (oe *observableExchange) OrderStatus(ctx context.Context, symbol, orderID string) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.OrderStatus")
	defer span.End()
	return oe.exchange.OrderStatus(ctx, symbol, orderID)
}

func (oe *observableExchange) CancelOrder(ctx context.Context, symbol, orderID string) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.CancelOrder")
	defer span.End()

	resp, err := oe.exchange.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		logger.ErrorWithErr(ctx, "Order cancellation failed", err, "symbol", symbol, "order_id", orderID)
		return resp, err
	}
	logger.Info(ctx, "Order cancellation acknowledged", "symbol", symbol, "order_id", orderID, "status", string(resp.Status))
	return resp, nil
}

func (oe *observableExchange) AccountBalances(ctx context.Context) ([]types.Balance, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.AccountBalances")
	defer span.End()
	return oe.exchange.AccountBalances(ctx)
}
