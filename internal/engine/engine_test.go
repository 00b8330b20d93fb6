package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spot-trader/internal/filters"
	"spot-trader/internal/notify"
	"spot-trader/internal/recs"
	"spot-trader/internal/store"
	"spot-trader/internal/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeExchange struct {
	mu          sync.Mutex
	metas       []types.SymbolMeta
	candles     map[string][]types.Candle
	candlesErr  map[string]error
	placed      []types.OrderReq
	placeResp   types.OrderResp
	placeErr    error
	statuses    map[string]types.OrderResp
	statusErr   error
	cancelled   []string
	balances    []types.Balance
	balancesErr error
}

func (f *fakeExchange) ExchangeInfo(ctx context.Context, symbols []string) ([]types.SymbolMeta, error) {
	return f.metas, nil
}

func (f *fakeExchange) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	if err := f.candlesErr[symbol]; err != nil {
		return nil, err
	}
	cs, ok := f.candles[symbol]
	if !ok {
		return nil, errors.New("no candles scripted")
	}
	return cs, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return types.OrderResp{}, f.placeErr
	}
	f.placed = append(f.placed, req)
	resp := f.placeResp
	if resp.OrderID == "" {
		resp = types.OrderResp{OrderID: "1000", Status: types.StatusNew}
	}
	return resp, nil
}

func (f *fakeExchange) OrderStatus(ctx context.Context, symbol, orderID string) (types.OrderResp, error) {
	if f.statusErr != nil {
		return types.OrderResp{}, f.statusErr
	}
	resp, ok := f.statuses[orderID]
	if !ok {
		return types.OrderResp{}, errors.New("order not found")
	}
	return resp, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) (types.OrderResp, error) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, orderID)
	f.mu.Unlock()
	return types.OrderResp{OrderID: orderID, Status: types.StatusCanceled}, nil
}

func (f *fakeExchange) AccountBalances(ctx context.Context) ([]types.Balance, error) {
	if f.balancesErr != nil {
		return nil, f.balancesErr
	}
	return f.balances, nil
}

func (f *fakeExchange) placedOrders() []types.OrderReq {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.OrderReq, len(f.placed))
	copy(out, f.placed)
	return out
}

type captureSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureSink) Publish(_ context.Context, ev notify.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureSink) byType(t notify.EventType) []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notify.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func btcMeta() types.SymbolMeta {
	return types.SymbolMeta{
		SymbolInfo: types.SymbolInfo{
			Symbol: "BTCUSDT", Status: "1", SpotTradingAllowed: true,
			BaseAsset: "BTC", QuoteAsset: "USDT",
		},
		Filters: []types.SymbolFilter{
			{Type: "PRICE_FILTER", TickSize: dec("0.01")},
			{Type: "LOT_SIZE", StepSize: dec("0.0001"), MinQty: dec("0.0001")},
			{Type: "MIN_NOTIONAL", MinNotional: dec("5")},
		},
	}
}

func candlesAt(close string) []types.Candle {
	c := types.Candle{
		High:  dec(close).Add(dec("1")),
		Low:   dec(close).Sub(dec("1")),
		Close: dec(close),
	}
	return []types.Candle{c, c}
}

func testConfig(mode string) *store.Config {
	cfg := &store.Config{Mode: mode, Universe: []string{"BTCUSDT"}}
	cfg.Trading.Enabled = true
	cfg.Trading.PeriodSeconds = 15
	cfg.Trading.CandleInterval = "60m"
	cfg.Trading.TakeProfitPct = 0.02
	cfg.Trading.MaxQuote = 50
	cfg.Trading.MakerBps = 8
	cfg.Trading.TakerBps = 5
	cfg.Trading.MinATRRatio = 40
	return cfg
}

type testRig struct {
	engine    *Engine
	exchange  *fakeExchange
	cache     *recs.Cache
	sink      *captureSink
	positions *store.PositionStore
}

func newRig(t *testing.T, cfg *store.Config) *testRig {
	t.Helper()
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	ex := &fakeExchange{
		metas:      []types.SymbolMeta{btcMeta()},
		candles:    map[string][]types.Candle{"BTCUSDT": candlesAt("100.00")},
		statuses:   map[string]types.OrderResp{},
		candlesErr: map[string]error{},
	}
	cache := recs.NewCache()
	sink := &captureSink{}
	positions, err := store.OpenPositions(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fsvc := filters.New(ex, time.Minute, dec("5"))
	eng := New(cfg, ex, cache, fsvc, positions, sink)
	return &testRig{engine: eng, exchange: ex, cache: cache, sink: sink, positions: positions}
}

func (r *testRig) recommend(rec types.Recommendation, atrRatio string) {
	entry := types.Rec{Symbol: "BTCUSDT", Recommendation: rec}
	if atrRatio != "" {
		entry.ATRRatio = dec(atrRatio)
	}
	r.cache.Push([]types.Rec{entry})
}

func TestSimulationEntryAssumesFilledAndPlacesTakeProfit(t *testing.T) {
	rig := newRig(t, testConfig("SIMULATION"))
	rig.recommend(types.RecBuy, "50")

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions != 2 {
		t.Errorf("actions = %d, want buy + tp sell", actions)
	}

	placed := rig.exchange.placedOrders()
	if len(placed) != 2 {
		t.Fatalf("placed %d orders, want 2", len(placed))
	}
	buy := placed[0]
	if buy.Side != types.SideBuy || !buy.IsTest {
		t.Errorf("buy = %+v, want test-mode BUY", buy)
	}
	if !buy.Price.Equal(dec("100.00")) || !buy.Qty.Equal(dec("0.5")) {
		t.Errorf("buy price=%s qty=%s, want 100.00 x 0.5", buy.Price, buy.Qty)
	}
	if buy.ClientOrderID == "" {
		t.Error("buy missing idempotency token")
	}

	sell := placed[1]
	if sell.Side != types.SideSell {
		t.Errorf("second order side = %s", sell.Side)
	}
	// 100 * 1.0008 * 1.02 / 0.9995 floored to tick
	if !sell.Price.Equal(dec("102.13")) {
		t.Errorf("tp price = %s, want 102.13", sell.Price)
	}

	pos, _ := rig.positions.Get("BTCUSDT")
	if pos.State != store.StateClosing {
		t.Errorf("state = %s, want closing", pos.State)
	}
	if !pos.Qty.Equal(dec("0.5")) || !pos.AvgPrice.Equal(dec("100.00")) {
		t.Errorf("pos qty=%s avg=%s", pos.Qty, pos.AvgPrice)
	}
	if pos.LastSellOrderID == "" {
		t.Error("sell order id not recorded")
	}

	if got := rig.sink.byType(notify.EventTradeBuyPlaced); len(got) != 1 {
		t.Errorf("trade_buy_placed events = %d", len(got))
	}
	if got := rig.sink.byType(notify.EventTradeSellTPPlaced); len(got) != 1 {
		t.Errorf("trade_sell_tp_placed events = %d", len(got))
	}
}

func TestVolatilityGateBlocksEntry(t *testing.T) {
	rig := newRig(t, testConfig("SIMULATION"))
	rig.recommend(types.RecBuy, "30") // below the configured minimum of 40

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions != 0 {
		t.Errorf("actions = %d, want 0", actions)
	}
	if len(rig.exchange.placedOrders()) != 0 {
		t.Error("order placed despite gate")
	}
	skips := rig.sink.byType(notify.EventTradeSkip)
	if len(skips) != 1 || skips[0].Reason != "below_atr_ratio" {
		t.Errorf("skips = %+v", skips)
	}
	pos, _ := rig.positions.Get("BTCUSDT")
	if pos.State != store.StateFlat {
		t.Errorf("state = %s, want flat", pos.State)
	}
}

func TestMissingATRRatioRecomputedFromCandles(t *testing.T) {
	cfg := testConfig("SIMULATION")
	cfg.Trading.MinATRRatio = 40
	rig := newRig(t, cfg)
	// Flat candle series at 100 with high/low spread 2 -> ATR 2, ratio 50.
	series := make([]types.Candle, 30)
	for i := range series {
		series[i] = types.Candle{High: dec("101"), Low: dec("99"), Close: dec("100.00")}
	}
	rig.exchange.candles["BTCUSDT"] = series
	rig.recommend(types.RecAccumulate, "") // no cached ratio

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions == 0 {
		t.Error("entry blocked despite recomputed ratio above minimum")
	}
}

func TestHoldLeavesPositionUnchanged(t *testing.T) {
	rig := newRig(t, testConfig("SIMULATION"))
	rig.recommend(types.RecHold, "50")

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions != 0 || len(rig.exchange.placedOrders()) != 0 {
		t.Errorf("HOLD acted: actions=%d orders=%d", actions, len(rig.exchange.placedOrders()))
	}
}

func TestInsufficientBudgetSkips(t *testing.T) {
	cfg := testConfig("SIMULATION")
	cfg.Trading.MaxQuote = 1 // price 2.00, min notional 5: unreachable
	rig := newRig(t, cfg)
	rig.exchange.candles["BTCUSDT"] = candlesAt("2.00")
	rig.recommend(types.RecBuy, "50")

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions != 0 {
		t.Errorf("actions = %d", actions)
	}
	skips := rig.sink.byType(notify.EventTradeSkip)
	if len(skips) != 1 || skips[0].Reason != "insufficient_budget" {
		t.Errorf("skips = %+v", skips)
	}
}

func TestLiveEntryParksPositionInOpening(t *testing.T) {
	rig := newRig(t, testConfig("LIVE"))
	rig.exchange.balances = []types.Balance{{Asset: "USDT", Free: dec("100")}}
	rig.exchange.placeResp = types.OrderResp{OrderID: "42", Status: types.StatusNew}
	rig.recommend(types.RecBuy, "50")

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions != 1 {
		t.Errorf("actions = %d, want 1", actions)
	}
	placed := rig.exchange.placedOrders()
	if len(placed) != 1 || placed[0].IsTest {
		t.Fatalf("placed = %+v, want one live order", placed)
	}

	pos, _ := rig.positions.Get("BTCUSDT")
	if pos.State != store.StateOpening {
		t.Errorf("state = %s, want opening", pos.State)
	}
	if !pos.Qty.IsZero() {
		t.Errorf("qty = %s, want 0 until fill confirmed", pos.Qty)
	}
	if pos.LastBuyOrderID != "42" {
		t.Errorf("buy order id = %s", pos.LastBuyOrderID)
	}
}

func TestLiveEntryBudgetCappedByQuoteBalance(t *testing.T) {
	rig := newRig(t, testConfig("LIVE"))
	rig.exchange.balances = []types.Balance{{Asset: "USDT", Free: dec("10")}}
	rig.recommend(types.RecBuy, "50")

	if _, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m"); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	placed := rig.exchange.placedOrders()
	if len(placed) != 1 {
		t.Fatalf("placed %d orders", len(placed))
	}
	if placed[0].Qty.Mul(placed[0].Price).GreaterThan(dec("10")) {
		t.Errorf("notional %s exceeds free balance", placed[0].Qty.Mul(placed[0].Price))
	}
}

func TestLiveReconcileFillTransitionsToLong(t *testing.T) {
	rig := newRig(t, testConfig("LIVE"))
	rig.exchange.balances = []types.Balance{
		{Asset: "USDT", Free: dec("100")},
		{Asset: "BTC", Free: dec("2")},
	}
	seedOpening(t, rig, "77")
	rig.exchange.statuses["77"] = types.OrderResp{
		OrderID:     "77",
		Status:      types.StatusFilled,
		ExecutedQty: dec("1.2345"),
		CumQuoteQty: dec("123.45"),
	}

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	pos, _ := rig.positions.Get("BTCUSDT")
	// Fill confirmation then the same-tick take-profit sell.
	if pos.State != store.StateClosing {
		t.Errorf("state = %s, want closing after fill + tp placement", pos.State)
	}
	if !pos.Qty.Equal(dec("1.2345")) {
		t.Errorf("qty = %s, want exchange-reported 1.2345", pos.Qty)
	}
	// 123.45 / 1.2345 = 100, floored to tick.
	if !pos.AvgPrice.Equal(dec("100.00")) {
		t.Errorf("avg = %s, want 100.00", pos.AvgPrice)
	}
	if pos.TargetPrice.Sign() <= 0 {
		t.Error("target price not derived on fill")
	}
	if actions != 2 {
		t.Errorf("actions = %d, want fill + sell placement", actions)
	}
	if got := rig.sink.byType(notify.EventTradeFilledBuy); len(got) != 1 {
		t.Errorf("trade_filled_buy events = %d", len(got))
	}
}

func TestLiveReconcileCancelResetsFlat(t *testing.T) {
	rig := newRig(t, testConfig("LIVE"))
	rig.exchange.balances = []types.Balance{{Asset: "USDT", Free: dec("0.5")}}
	seedOpening(t, rig, "88")
	rig.exchange.statuses["88"] = types.OrderResp{OrderID: "88", Status: types.StatusCanceled}

	if _, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m"); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	pos, _ := rig.positions.Get("BTCUSDT")
	if pos.State != store.StateFlat {
		t.Errorf("state = %s, want flat", pos.State)
	}
	if pos.LastBuyOrderID != "" {
		t.Errorf("order id not cleared: %s", pos.LastBuyOrderID)
	}
	if got := rig.sink.byType(notify.EventTradeBuyCancelled); len(got) != 1 {
		t.Errorf("trade_buy_cancelled events = %d", len(got))
	}
}

func TestLiveReconcilePartialFillStaysOpening(t *testing.T) {
	rig := newRig(t, testConfig("LIVE"))
	rig.exchange.balances = []types.Balance{{Asset: "USDT", Free: dec("100")}}
	seedOpening(t, rig, "99")
	rig.exchange.statuses["99"] = types.OrderResp{
		OrderID: "99", Status: types.StatusPartiallyFilled, ExecutedQty: dec("0.1"),
	}
	rig.recommend(types.RecBuy, "50") // entry must not fire while opening

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions != 0 {
		t.Errorf("actions = %d, want 0", actions)
	}
	if len(rig.exchange.placedOrders()) != 0 {
		t.Error("order placed while a buy is outstanding")
	}
	pos, _ := rig.positions.Get("BTCUSDT")
	if pos.State != store.StateOpening {
		t.Errorf("state = %s, want opening", pos.State)
	}
}

func TestLiveSellFillResetsStoreRowToFlat(t *testing.T) {
	rig := newRig(t, testConfig("LIVE"))
	rig.exchange.balances = []types.Balance{{Asset: "USDT", Free: dec("100")}}
	seedClosing(t, rig, "S-1")
	rig.exchange.statuses["S-1"] = types.OrderResp{
		OrderID: "S-1", Status: types.StatusFilled, ExecutedQty: dec("0.5"),
	}

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions != 1 {
		t.Errorf("actions = %d, want the fill counted", actions)
	}

	// The reset must land in the store, not just the in-memory copy.
	pos, _ := rig.positions.Get("BTCUSDT")
	if pos.State != store.StateFlat {
		t.Errorf("store row state = %s, want flat", pos.State)
	}
	if !pos.Qty.IsZero() || !pos.AvgPrice.IsZero() || !pos.TargetPrice.IsZero() {
		t.Errorf("store row not cleared: qty=%s avg=%s target=%s", pos.Qty, pos.AvgPrice, pos.TargetPrice)
	}
	if pos.LastSellOrderID != "" || pos.LastBuyOrderID != "" {
		t.Errorf("order ids not cleared: buy=%q sell=%q", pos.LastBuyOrderID, pos.LastSellOrderID)
	}
	if len(rig.exchange.placedOrders()) != 0 {
		t.Error("no order should be placed on a sell fill")
	}

	// The filled order must not be polled again on the next tick.
	delete(rig.exchange.statuses, "S-1")
	if _, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m"); err != nil {
		t.Fatalf("second RunTick: %v", err)
	}
	pos, _ = rig.positions.Get("BTCUSDT")
	if pos.State != store.StateFlat {
		t.Errorf("state after second tick = %s", pos.State)
	}
}

func TestLiveSellStillOpenStaysClosing(t *testing.T) {
	rig := newRig(t, testConfig("LIVE"))
	rig.exchange.balances = []types.Balance{{Asset: "USDT", Free: dec("100")}}
	seedClosing(t, rig, "S-2")
	rig.exchange.statuses["S-2"] = types.OrderResp{OrderID: "S-2", Status: types.StatusNew}

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions != 0 {
		t.Errorf("actions = %d, want 0", actions)
	}
	pos, _ := rig.positions.Get("BTCUSDT")
	if pos.State != store.StateClosing || pos.LastSellOrderID != "S-2" {
		t.Errorf("row = %+v, want unchanged closing", pos)
	}
}

func TestLiveStaleUnfilledBuyCancelled(t *testing.T) {
	cfg := testConfig("LIVE")
	cfg.Trading.StaleBuySeconds = 600
	rig := newRig(t, cfg)
	rig.exchange.balances = []types.Balance{{Asset: "USDT", Free: dec("100")}}
	rig.exchange.placeResp = types.OrderResp{OrderID: "42", Status: types.StatusNew}
	rig.recommend(types.RecBuy, "50")

	if _, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m"); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	rig.exchange.statuses["42"] = types.OrderResp{OrderID: "42", Status: types.StatusNew}

	pc, ok := rig.engine.confirm.(*pollingConfirm)
	if !ok {
		t.Fatal("live engine should use polling confirmation")
	}

	// Within the window no cancellation is requested.
	if _, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m"); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if len(rig.exchange.cancelled) != 0 {
		t.Fatalf("cancelled too early: %v", rig.exchange.cancelled)
	}

	pc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	if _, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m"); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if len(rig.exchange.cancelled) != 1 || rig.exchange.cancelled[0] != "42" {
		t.Fatalf("cancelled = %v, want [42]", rig.exchange.cancelled)
	}

	// The position stays opening until the exchange reports CANCELED.
	pos, _ := rig.positions.Get("BTCUSDT")
	if pos.State != store.StateOpening {
		t.Errorf("state = %s, want opening until status confirms", pos.State)
	}
	rig.exchange.statuses["42"] = types.OrderResp{OrderID: "42", Status: types.StatusCanceled}
	rig.recommend(types.RecHold, "") // no immediate re-entry after the cancel
	if _, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m"); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	pos, _ = rig.positions.Get("BTCUSDT")
	if pos.State != store.StateFlat {
		t.Errorf("state = %s, want flat after confirmed cancel", pos.State)
	}
}

func TestLiveBalanceFetchFailureAbortsTick(t *testing.T) {
	rig := newRig(t, testConfig("LIVE"))
	rig.exchange.balancesErr = errors.New("HTTP 500")
	rig.recommend(types.RecBuy, "50")

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err == nil {
		t.Fatal("expected tick error")
	}
	if actions != 0 {
		t.Errorf("actions = %d", actions)
	}
	if got := rig.sink.byType(notify.EventTradeError); len(got) != 1 {
		t.Errorf("trade_error events = %d", len(got))
	}
	if st := rig.engine.Status(); st.LastError == "" {
		t.Error("last error not recorded in status")
	}
}

func TestLiveSellTrimsToAvailableBaseBalance(t *testing.T) {
	rig := newRig(t, testConfig("LIVE"))
	rig.exchange.balances = []types.Balance{
		{Asset: "USDT", Free: dec("0")},
		{Asset: "BTC", Free: dec("1.2")},
	}
	pos := rig.positions.Ensure("BTCUSDT")
	pos.State = store.StateLong
	pos.Qty = dec("1.5")
	pos.AvgPrice = dec("100.00")
	if err := rig.positions.Put(pos); err != nil {
		t.Fatal(err)
	}

	if _, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m"); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	placed := rig.exchange.placedOrders()
	if len(placed) != 1 {
		t.Fatalf("placed %d orders", len(placed))
	}
	if !placed[0].Qty.Equal(dec("1.2")) {
		t.Errorf("sell qty = %s, want trimmed 1.2", placed[0].Qty)
	}
}

func TestNotTradableSymbolSkipped(t *testing.T) {
	rig := newRig(t, testConfig("SIMULATION"))
	meta := btcMeta()
	meta.SpotTradingAllowed = false
	rig.exchange.metas = []types.SymbolMeta{meta}
	rig.recommend(types.RecBuy, "50")

	if _, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m"); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	skips := rig.sink.byType(notify.EventTradeSkip)
	if len(skips) != 1 || skips[0].Reason != "not_tradable" {
		t.Errorf("skips = %+v", skips)
	}
}

func TestPriceFetchFailureSkipsOnlyThatSymbol(t *testing.T) {
	rig := newRig(t, testConfig("SIMULATION"))
	ethMeta := btcMeta()
	ethMeta.Symbol = "ETHUSDT"
	ethMeta.BaseAsset = "ETH"
	rig.exchange.metas = []types.SymbolMeta{btcMeta(), ethMeta}
	rig.exchange.candles["ETHUSDT"] = candlesAt("50.00")
	rig.exchange.candlesErr["BTCUSDT"] = errors.New("timeout")
	rig.cache.Push([]types.Rec{
		{Symbol: "BTCUSDT", Recommendation: types.RecBuy, ATRRatio: dec("50")},
		{Symbol: "ETHUSDT", Recommendation: types.RecBuy, ATRRatio: dec("50")},
	})

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if actions == 0 {
		t.Error("healthy symbol should still act")
	}
	for _, o := range rig.exchange.placedOrders() {
		if o.Symbol == "BTCUSDT" {
			t.Error("order placed for symbol with failed price fetch")
		}
	}
}

func TestRejectedPlacementRecordsAndContinues(t *testing.T) {
	rig := newRig(t, testConfig("SIMULATION"))
	rig.exchange.placeErr = errors.New("exchange HTTP 400: Invalid quantity")
	rig.recommend(types.RecBuy, "50")

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil {
		t.Fatalf("RunTick must not fail on a rejected placement: %v", err)
	}
	if actions != 0 {
		t.Errorf("actions = %d", actions)
	}
	pos, _ := rig.positions.Get("BTCUSDT")
	if pos.State != store.StateFlat {
		t.Errorf("state = %s, want flat after rejection", pos.State)
	}
	if got := rig.sink.byType(notify.EventTradeError); len(got) != 1 {
		t.Errorf("trade_error events = %d", len(got))
	}
}

func TestTradingDisabledDoesNothing(t *testing.T) {
	cfg := testConfig("SIMULATION")
	cfg.Trading.Enabled = false
	rig := newRig(t, cfg)
	rig.recommend(types.RecBuy, "50")

	actions, err := rig.engine.RunTick(context.Background(), []string{"BTCUSDT"}, "60m")
	if err != nil || actions != 0 {
		t.Errorf("actions=%d err=%v", actions, err)
	}
}

// seedOpening puts the symbol into opening with an outstanding buy order id,
// as a previous live tick would have left it.
func seedOpening(t *testing.T, rig *testRig, orderID string) {
	t.Helper()
	pos := rig.positions.Ensure("BTCUSDT")
	pos.State = store.StateOpening
	pos.LastBuyOrderID = orderID
	if err := rig.positions.Put(pos); err != nil {
		t.Fatal(err)
	}
}

// seedClosing puts the symbol into closing with a resting take-profit sell,
// as the exit path would have left it.
func seedClosing(t *testing.T, rig *testRig, orderID string) {
	t.Helper()
	pos := rig.positions.Ensure("BTCUSDT")
	pos.State = store.StateClosing
	pos.Qty = dec("0.5")
	pos.AvgPrice = dec("100.00")
	pos.TargetPrice = dec("102.13")
	pos.LastSellOrderID = orderID
	if err := rig.positions.Put(pos); err != nil {
		t.Fatal(err)
	}
}
