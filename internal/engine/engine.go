package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spot-trader/internal/filters"
	"spot-trader/internal/interfaces"
	"spot-trader/internal/logger"
	"spot-trader/internal/metrics"
	"spot-trader/internal/notify"
	"spot-trader/internal/quant"
	"spot-trader/internal/store"
	"spot-trader/internal/ta"
	"spot-trader/internal/tradelog"
	"spot-trader/internal/types"
)

const atrPeriod = 14

// Engine runs the periodic trading pass. Symbols are processed one at a
// time, so each position row has a single writer; external readers only
// ever see committed copies through the store.
type Engine struct {
	cfg         *store.Config
	exchange    interfaces.Exchange
	recommender interfaces.Recommender
	filters     *filters.Service
	positions   *store.PositionStore
	sink        notify.Sink
	confirm     ConfirmationStrategy

	mu          sync.Mutex
	lastRunAt   time.Time
	lastActions int
	lastErr     string
}

func New(cfg *store.Config, exchange interfaces.Exchange, recommender interfaces.Recommender,
	filterSvc *filters.Service, positions *store.PositionStore, sink notify.Sink) *Engine {

	levels := exitLevels{
		makerFee: cfg.MakerFee(),
		takerFee: cfg.TakerFee(),
		target:   decimal.NewFromFloat(cfg.Trading.TakeProfitPct),
		stopPct:  decimal.NewFromFloat(cfg.Trading.StopLossPct),
	}
	var confirm ConfirmationStrategy
	if cfg.Live() {
		staleAfter := time.Duration(cfg.Trading.StaleBuySeconds) * time.Second
		confirm = newPollingConfirm(exchange, levels, staleAfter)
	} else {
		confirm = &immediateConfirm{levels: levels}
	}
	return &Engine{
		cfg:         cfg,
		exchange:    exchange,
		recommender: recommender,
		filters:     filterSvc,
		positions:   positions,
		sink:        sink,
		confirm:     confirm,
	}
}

var _ interfaces.Engine = (*Engine)(nil)

// RunTick runs one pass over symbols and returns the number of actions
// taken (placements, fills, cancellations). Per-symbol failures are
// reported and skipped; only a live-mode balance fetch failure aborts the
// whole tick, since balances gate every live decision.
func (e *Engine) RunTick(ctx context.Context, symbols []string, interval string) (int, error) {
	start := time.Now()
	actions := 0
	var tickErr error
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
		metrics.LastTickActions.Set(float64(actions))
		e.mu.Lock()
		e.lastRunAt = start
		e.lastActions = actions
		if tickErr != nil {
			e.lastErr = tickErr.Error()
		} else {
			e.lastErr = ""
		}
		e.mu.Unlock()
	}()

	if !e.cfg.Trading.Enabled {
		logger.Debug(ctx, "Trading disabled, tick skipped")
		return 0, nil
	}

	closes := e.fetchCloses(ctx, symbols, interval)

	var balances map[string]decimal.Decimal
	if e.cfg.Live() {
		bs, err := e.exchange.AccountBalances(ctx)
		if err != nil {
			tickErr = fmt.Errorf("fetch account balances: %w", err)
			metrics.Errors.WithLabelValues("balances").Inc()
			e.sink.Publish(ctx, notify.Event{Type: notify.EventTradeError, Reason: tickErr.Error()})
			return 0, tickErr
		}
		balances = make(map[string]decimal.Decimal, len(bs))
		for _, b := range bs {
			balances[b.Asset] = b.Free
		}
	}

	for _, symbol := range symbols {
		acted, err := e.step(ctx, symbol, closes[symbol], balances)
		actions += acted
		if err != nil {
			logger.ErrorWithErr(ctx, "Symbol step failed", err, "symbol", symbol)
		}
	}
	return actions, nil
}

// Status returns the read-only configuration and last-run view.
func (e *Engine) Status() interfaces.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := interfaces.EngineStatus{
		Enabled:       e.cfg.Trading.Enabled,
		Mode:          e.cfg.Mode,
		Interval:      e.cfg.Trading.CandleInterval,
		PeriodSeconds: e.cfg.Trading.PeriodSeconds,
		LastActions:   e.lastActions,
		LastError:     e.lastErr,
	}
	if !e.lastRunAt.IsZero() {
		st.LastRunAt = e.lastRunAt.Unix()
	}
	return st
}

// fetchCloses collects the latest close per symbol, best-effort. A symbol
// whose fetch fails is simply absent from the map and skipped this tick.
func (e *Engine) fetchCloses(ctx context.Context, symbols []string, interval string) map[string]decimal.Decimal {
	closes := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		candles, err := e.exchange.Candles(ctx, symbol, interval, 2)
		if err != nil {
			logger.Warn(ctx, "Price fetch failed", "symbol", symbol, "error", err)
			continue
		}
		closes[symbol] = candles[len(candles)-1].Close
	}
	return closes
}

// step applies the state-machine transitions for one symbol in order:
// reconcile outstanding orders, then entry from flat, then exit from long.
func (e *Engine) step(ctx context.Context, symbol string, price decimal.Decimal, balances map[string]decimal.Decimal) (int, error) {
	pos := e.positions.Ensure(symbol)

	if price.Sign() <= 0 {
		e.skip(ctx, symbol, "price_unavailable", nil)
		return 0, nil
	}

	info, err := e.filters.Info(ctx, symbol)
	if err != nil {
		if errors.Is(err, filters.ErrUnknownSymbol) {
			e.skip(ctx, symbol, "unknown_symbol", nil)
			return 0, nil
		}
		e.reportError(ctx, symbol, "metadata", err)
		return 0, nil
	}
	if !isTradable(info) {
		e.skip(ctx, symbol, "not_tradable", map[string]any{"status": info.Status})
		return 0, nil
	}

	f, err := e.filters.Get(ctx, symbol)
	if err != nil {
		e.reportError(ctx, symbol, "filters", err)
		return 0, nil
	}

	actions := 0

	// Reconcile first so a confirmed fill can exit on this same tick.
	// Every mutation is persisted, including the quiet sell-fill reset.
	ev, changed, err := e.confirm.Reconcile(ctx, &pos, f)
	if err != nil {
		e.reportError(ctx, symbol, "reconcile", err)
		return 0, nil
	}
	if changed {
		if err := e.positions.Put(pos); err != nil {
			return actions, fmt.Errorf("persist position %s: %w", symbol, err)
		}
		actions++
		if ev == notify.EventTradeFilledBuy {
			metrics.Fills.WithLabelValues(string(types.SideBuy)).Inc()
		}
		if ev != "" {
			e.sink.Publish(ctx, notify.Event{
				Type:   ev,
				Symbol: symbol,
				Fields: map[string]any{
					"qty":       pos.Qty.String(),
					"avg_price": pos.AvgPrice.String(),
					"state":     string(pos.State),
				},
			})
		}
	}

	if pos.State == store.StateFlat {
		acted, err := e.tryEnter(ctx, &pos, f, info, price, balances)
		actions += acted
		if err != nil {
			return actions, err
		}
	}

	if pos.State == store.StateLong {
		acted, err := e.tryExit(ctx, &pos, f, info, balances)
		actions += acted
		if err != nil {
			return actions, err
		}
	}

	return actions, nil
}

// tryEnter places a limit buy when the recommendation, volatility gate and
// sizing all permit it.
func (e *Engine) tryEnter(ctx context.Context, pos *store.Position, f quant.Filters,
	info types.SymbolInfo, price decimal.Decimal, balances map[string]decimal.Decimal) (int, error) {

	rec, ok := e.recommender.Latest(ctx, pos.Symbol)
	if !ok || !rec.Recommendation.IsEntry() {
		return 0, nil
	}

	ratio := rec.ATRRatio
	if ratio.Sign() <= 0 {
		ratio = e.recomputeATRRatio(ctx, pos.Symbol)
	}
	minRatio := decimal.NewFromFloat(e.cfg.Trading.MinATRRatio)
	if minRatio.Sign() > 0 {
		if ratio.Sign() <= 0 {
			e.skip(ctx, pos.Symbol, "atr_unavailable", nil)
			return 0, nil
		}
		if ratio.LessThan(minRatio) {
			e.skip(ctx, pos.Symbol, "below_atr_ratio", map[string]any{
				"atr_ratio": ratio.String(),
				"min":       minRatio.String(),
			})
			return 0, nil
		}
	}

	budget := e.cfg.Budget()
	if e.cfg.Live() {
		free := balances[info.QuoteAsset]
		if free.LessThan(budget) {
			budget = free
		}
	}

	limitPrice := quant.RoundPrice(f, price)
	qty := quant.SizeOrder(f, limitPrice, budget)
	if qty.Sign() <= 0 {
		e.skip(ctx, pos.Symbol, "insufficient_budget", map[string]any{
			"price":  limitPrice.String(),
			"budget": budget.String(),
		})
		return 0, nil
	}

	resp, err := e.submit(ctx, pos.Symbol, types.SideBuy, limitPrice, qty)
	if err != nil {
		e.reportError(ctx, pos.Symbol, "place_buy", err)
		return 0, nil
	}

	e.confirm.ApplyBuy(pos, f, resp, limitPrice, qty)
	if err := e.positions.Put(*pos); err != nil {
		return 1, fmt.Errorf("persist position %s: %w", pos.Symbol, err)
	}
	e.sink.Publish(ctx, notify.Event{
		Type:   notify.EventTradeBuyPlaced,
		Symbol: pos.Symbol,
		Fields: map[string]any{
			"price":    limitPrice.String(),
			"qty":      qty.String(),
			"order_id": resp.OrderID,
			"state":    string(pos.State),
		},
	})
	return 1, nil
}

// tryExit places the take-profit limit sell for a held position.
func (e *Engine) tryExit(ctx context.Context, pos *store.Position, f quant.Filters,
	info types.SymbolInfo, balances map[string]decimal.Decimal) (int, error) {

	if pos.Qty.Sign() <= 0 || pos.AvgPrice.Sign() <= 0 {
		return 0, nil
	}

	tp := pos.TargetPrice
	if tp.Sign() <= 0 {
		levels := e.currentLevels()
		tp = levels.targetFor(f, pos.AvgPrice)
	}

	sellBase := pos.Qty
	if e.cfg.Live() {
		// Never sell more than the account actually holds; trim down only.
		free := balances[info.BaseAsset]
		if free.LessThan(sellBase) {
			sellBase = free
		}
	}
	sellQty := quant.RoundQty(f, sellBase)
	if sellQty.Sign() <= 0 || sellQty.GreaterThan(sellBase) {
		// The min-qty raise would sell more than we hold.
		e.skip(ctx, pos.Symbol, "below_min_qty", map[string]any{"held": sellBase.String()})
		return 0, nil
	}

	resp, err := e.submit(ctx, pos.Symbol, types.SideSell, tp, sellQty)
	if err != nil {
		e.reportError(ctx, pos.Symbol, "place_sell", err)
		return 0, nil
	}

	pos.State = store.StateClosing
	pos.TargetPrice = tp
	pos.LastSellOrderID = resp.OrderID
	if err := e.positions.Put(*pos); err != nil {
		return 1, fmt.Errorf("persist position %s: %w", pos.Symbol, err)
	}
	e.sink.Publish(ctx, notify.Event{
		Type:   notify.EventTradeSellTPPlaced,
		Symbol: pos.Symbol,
		Fields: map[string]any{
			"price":    tp.String(),
			"qty":      sellQty.String(),
			"order_id": resp.OrderID,
		},
	})
	return 1, nil
}

// submit places a LIMIT GTC order with a fresh idempotency token and writes
// the audit record. A rejected placement is recorded and surfaced; the next
// tick retries with a fresh record rather than mutating this one.
func (e *Engine) submit(ctx context.Context, symbol string, side types.OrderSide, price, qty decimal.Decimal) (types.OrderResp, error) {
	req := types.OrderReq{
		Symbol:        symbol,
		Side:          side,
		Type:          "LIMIT",
		Qty:           qty,
		Price:         price,
		TimeInForce:   "GTC",
		IsTest:        !e.cfg.Live(),
		ClientOrderID: uuid.New().String(),
	}

	resp, err := e.exchange.PlaceOrder(ctx, req)
	rec := tradelog.Record{
		Symbol:        symbol,
		Side:          string(side),
		Type:          req.Type,
		Price:         price.String(),
		Qty:           qty.String(),
		IsTest:        req.IsTest,
		ClientOrderID: req.ClientOrderID,
	}
	if err != nil {
		rec.Status = string(types.StatusRejected)
		rec.Error = err.Error()
		if lerr := tradelog.Append(rec); lerr != nil {
			logger.ErrorWithErr(ctx, "Order audit write failed", lerr, "symbol", symbol)
			metrics.Errors.WithLabelValues("tradelog").Inc()
		}
		return types.OrderResp{}, err
	}

	rec.Status = string(resp.Status)
	rec.ExchangeOrderID = resp.OrderID
	if lerr := tradelog.Append(rec); lerr != nil {
		// The order exists on the exchange; losing the audit row must be
		// loud even though the placement succeeded.
		logger.ErrorWithErr(ctx, "Order audit write failed", lerr, "symbol", symbol, "order_id", resp.OrderID)
		metrics.Errors.WithLabelValues("tradelog").Inc()
	}

	mode := "simulation"
	if e.cfg.Live() {
		mode = "live"
	}
	metrics.Orders.WithLabelValues(mode, strings.ToLower(string(side))).Inc()
	return resp, nil
}

// recomputeATRRatio rebuilds the volatility ratio from fresh candles when
// the snapshot did not carry one.
func (e *Engine) recomputeATRRatio(ctx context.Context, symbol string) decimal.Decimal {
	candles, err := e.exchange.Candles(ctx, symbol, e.cfg.Trading.CandleInterval, atrPeriod*4)
	if err != nil {
		logger.Warn(ctx, "ATR recomputation fetch failed", "symbol", symbol, "error", err)
		return decimal.Zero
	}
	ratio, ok := ta.ATRRatio(candles, atrPeriod)
	if !ok {
		return decimal.Zero
	}
	return ratio
}

func (e *Engine) currentLevels() exitLevels {
	return exitLevels{
		makerFee: e.cfg.MakerFee(),
		takerFee: e.cfg.TakerFee(),
		target:   decimal.NewFromFloat(e.cfg.Trading.TakeProfitPct),
		stopPct:  decimal.NewFromFloat(e.cfg.Trading.StopLossPct),
	}
}

func (e *Engine) skip(ctx context.Context, symbol, reason string, fields map[string]any) {
	logger.Skip(ctx, symbol, reason)
	metrics.Skips.WithLabelValues(reason).Inc()
	e.sink.Publish(ctx, notify.Event{
		Type:   notify.EventTradeSkip,
		Symbol: symbol,
		Reason: reason,
		Fields: fields,
	})
}

func (e *Engine) reportError(ctx context.Context, symbol, kind string, err error) {
	logger.ErrorWithErr(ctx, "Trading operation failed", err, "symbol", symbol, "kind", kind)
	metrics.Errors.WithLabelValues(kind).Inc()
	e.sink.Publish(ctx, notify.Event{
		Type:   notify.EventTradeError,
		Symbol: symbol,
		Reason: err.Error(),
		Fields: map[string]any{"kind": kind},
	})
}

// isTradable checks the exchange's status and spot-trading flag. Venues
// report status as "1", "ENABLED" or "TRADING" depending on API vintage.
func isTradable(info types.SymbolInfo) bool {
	if !info.SpotTradingAllowed {
		return false
	}
	switch strings.ToUpper(info.Status) {
	case "1", "ENABLED", "TRADING":
		return true
	default:
		return false
	}
}
