package interfaces

import (
	"context"

	"spot-trader/internal/types"
)

// Exchange is the authoritative market-data and trading surface. All calls
// carry per-call timeouts via ctx; a failure affects only the caller's
// current symbol, never the whole tick.
type Exchange interface {
	ExchangeInfo(ctx context.Context, symbols []string) ([]types.SymbolMeta, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	OrderStatus(ctx context.Context, symbol, orderID string) (types.OrderResp, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (types.OrderResp, error)
	AccountBalances(ctx context.Context) ([]types.Balance, error)
}
