package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"spot-trader/internal/interfaces"
	"spot-trader/internal/logger"
	"spot-trader/internal/metrics"
	"spot-trader/internal/notify"
	"spot-trader/internal/quant"
	"spot-trader/internal/store"
	"spot-trader/internal/types"
)

// ConfirmationStrategy decides how an acknowledged buy becomes a held
// position: the simulation strategy assumes the fill immediately, the live
// strategy parks the position in opening and resolves it by polling.
type ConfirmationStrategy interface {
	// ApplyBuy mutates pos after the exchange acknowledged a buy at the
	// given (already quantized) price and quantity.
	ApplyBuy(pos *store.Position, f quant.Filters, resp types.OrderResp, price, qty decimal.Decimal)
	// Reconcile resolves an outstanding order for pos against the
	// exchange's record. changed reports whether pos was mutated and must
	// be persisted; ev is the event to broadcast, or "" when the change
	// has no broadcast kind (a filled sell resets quietly).
	Reconcile(ctx context.Context, pos *store.Position, f quant.Filters) (ev notify.EventType, changed bool, err error)
}

// immediateConfirm backs simulation mode: the validate-only endpoint never
// fills, so the position is assumed long at the requested price.
type immediateConfirm struct {
	levels exitLevels
}

func (s *immediateConfirm) ApplyBuy(pos *store.Position, f quant.Filters, resp types.OrderResp, price, qty decimal.Decimal) {
	pos.Qty = qty
	pos.AvgPrice = price
	pos.State = store.StateLong
	pos.TargetPrice = s.levels.targetFor(f, price)
	pos.StopPrice = s.levels.stopFor(f, price)
	pos.LastBuyOrderID = resp.OrderID
}

func (s *immediateConfirm) Reconcile(ctx context.Context, pos *store.Position, f quant.Filters) (notify.EventType, bool, error) {
	return "", false, nil
}

// pendingOrder remembers what was requested so a fill with no
// exchange-reported quantities can still be applied, and when it was
// placed so stale unfilled buys can be cancelled.
type pendingOrder struct {
	price    decimal.Decimal
	qty      decimal.Decimal
	placedAt time.Time
}

// pollingConfirm backs live mode: buys park the position in opening and a
// later tick confirms or reverses the transition from the exchange's
// authoritative order status.
type pollingConfirm struct {
	exchange   interfaces.Exchange
	levels     exitLevels
	staleAfter time.Duration // zero disables stale-buy cancellation

	mu      sync.Mutex
	pending map[string]pendingOrder
	now     func() time.Time
}

func newPollingConfirm(exchange interfaces.Exchange, levels exitLevels, staleAfter time.Duration) *pollingConfirm {
	return &pollingConfirm{
		exchange:   exchange,
		levels:     levels,
		staleAfter: staleAfter,
		pending:    map[string]pendingOrder{},
		now:        time.Now,
	}
}

func (s *pollingConfirm) ApplyBuy(pos *store.Position, f quant.Filters, resp types.OrderResp, price, qty decimal.Decimal) {
	pos.State = store.StateOpening
	pos.LastBuyOrderID = resp.OrderID
	s.mu.Lock()
	s.pending[resp.OrderID] = pendingOrder{price: price, qty: qty, placedAt: s.now()}
	s.mu.Unlock()
}

func (s *pollingConfirm) Reconcile(ctx context.Context, pos *store.Position, f quant.Filters) (notify.EventType, bool, error) {
	switch pos.State {
	case store.StateOpening:
		return s.reconcileBuy(ctx, pos, f)
	case store.StateClosing:
		return s.reconcileSell(ctx, pos)
	default:
		return "", false, nil
	}
}

func (s *pollingConfirm) reconcileBuy(ctx context.Context, pos *store.Position, f quant.Filters) (notify.EventType, bool, error) {
	if pos.LastBuyOrderID == "" {
		// No order to poll; nothing holds this position open.
		pos.State = store.StateFlat
		return "", true, nil
	}
	resp, err := s.exchange.OrderStatus(ctx, pos.Symbol, pos.LastBuyOrderID)
	if err != nil {
		return "", false, err
	}

	switch resp.Status {
	case types.StatusFilled:
		s.applyFill(pos, f, resp)
		return notify.EventTradeFilledBuy, true, nil
	case types.StatusCanceled, types.StatusRejected:
		s.forget(pos.LastBuyOrderID)
		pos.State = store.StateFlat
		pos.Qty = decimal.Zero
		pos.AvgPrice = decimal.Zero
		pos.TargetPrice = decimal.Zero
		pos.StopPrice = decimal.Zero
		pos.LastBuyOrderID = ""
		return notify.EventTradeBuyCancelled, true, nil
	case types.StatusNew:
		s.cancelIfStale(ctx, pos)
		return "", false, nil
	default:
		// PARTIALLY_FILLED stays in opening for the next tick.
		return "", false, nil
	}
}

// cancelIfStale requests cancellation of a buy that sat unfilled past the
// configured window. The position stays in opening; the next reconcile pass
// observes the CANCELED status and resets it through the normal path.
func (s *pollingConfirm) cancelIfStale(ctx context.Context, pos *store.Position) {
	if s.staleAfter <= 0 {
		return
	}
	local, ok := s.lookup(pos.LastBuyOrderID)
	if !ok || s.now().Sub(local.placedAt) < s.staleAfter {
		// Unknown age (placed before a restart) is left to fill or be
		// cancelled by the operator.
		return
	}
	if _, err := s.exchange.CancelOrder(ctx, pos.Symbol, pos.LastBuyOrderID); err != nil {
		logger.Warn(ctx, "Stale buy cancellation failed", "symbol", pos.Symbol, "order_id", pos.LastBuyOrderID, "error", err)
		return
	}
	logger.Info(ctx, "Stale buy cancellation requested", "symbol", pos.Symbol, "order_id", pos.LastBuyOrderID)
}

// applyFill moves the position to long using exchange-reported fill data,
// falling back to the locally observed request when the exchange omits it.
func (s *pollingConfirm) applyFill(pos *store.Position, f quant.Filters, resp types.OrderResp) {
	local, _ := s.lookup(pos.LastBuyOrderID)
	s.forget(pos.LastBuyOrderID)

	qty := resp.ExecutedQty
	if qty.Sign() <= 0 {
		qty = local.qty
	}
	var avg decimal.Decimal
	if resp.CumQuoteQty.Sign() > 0 && qty.Sign() > 0 {
		avg = quant.RoundPrice(f, resp.CumQuoteQty.Div(qty))
	} else {
		avg = local.price
	}

	pos.Qty = qty
	pos.AvgPrice = avg
	pos.State = store.StateLong
	pos.TargetPrice = s.levels.targetFor(f, avg)
	pos.StopPrice = s.levels.stopFor(f, avg)
}

// reconcileSell resets the row to flat once the take-profit sell fills.
// The reset is a committed state change (changed=true) even though the
// closed event-kind set has no broadcast for it.
func (s *pollingConfirm) reconcileSell(ctx context.Context, pos *store.Position) (notify.EventType, bool, error) {
	if pos.LastSellOrderID == "" {
		return "", false, nil
	}
	resp, err := s.exchange.OrderStatus(ctx, pos.Symbol, pos.LastSellOrderID)
	if err != nil {
		return "", false, err
	}
	if resp.Status != types.StatusFilled {
		return "", false, nil
	}
	logger.Info(ctx, "Take-profit sell filled", "symbol", pos.Symbol, "order_id", pos.LastSellOrderID)
	metrics.Fills.WithLabelValues(string(types.SideSell)).Inc()
	pos.Qty = decimal.Zero
	pos.AvgPrice = decimal.Zero
	pos.State = store.StateFlat
	pos.TargetPrice = decimal.Zero
	pos.StopPrice = decimal.Zero
	pos.LastBuyOrderID = ""
	pos.LastSellOrderID = ""
	return "", true, nil
}

func (s *pollingConfirm) lookup(orderID string) (pendingOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[orderID]
	return p, ok
}

func (s *pollingConfirm) forget(orderID string) {
	s.mu.Lock()
	delete(s.pending, orderID)
	s.mu.Unlock()
}
