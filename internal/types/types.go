package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Candle is one closed kline. Prices are exact decimals because the close
// feeds order pricing, which must survive quantization without binary error.
type Candle struct {
	OpenTs  int64
	CloseTs int64
	Open    decimal.Decimal
	High    decimal.Decimal
	Low     decimal.Decimal
	Close   decimal.Decimal
	Volume  decimal.Decimal
}

// Recommendation is the closed set of actions the analysis layer can emit.
type Recommendation string

const (
	RecBuy        Recommendation = "BUY"
	RecAccumulate Recommendation = "ACCUMULATE"
	RecHold       Recommendation = "HOLD"
	RecAvoidSell  Recommendation = "AVOID/SELL"
)

// ParseRecommendation maps a free-form string onto the closed set.
// Anything unrecognized degrades to HOLD so the entry guard stays exhaustive.
func ParseRecommendation(s string) Recommendation {
	switch Recommendation(strings.ToUpper(strings.TrimSpace(s))) {
	case RecBuy:
		return RecBuy
	case RecAccumulate:
		return RecAccumulate
	case RecAvoidSell:
		return RecAvoidSell
	default:
		return RecHold
	}
}

// IsEntry reports whether the recommendation permits opening a position.
func (r Recommendation) IsEntry() bool {
	return r == RecBuy || r == RecAccumulate
}

// Rec is the per-symbol snapshot entry consumed by the trading loop.
// ATRRatio is zero when the analysis did not produce one; the loop
// recomputes it from fresh candles in that case.
type Rec struct {
	Symbol         string          `json:"symbol"`
	Interval       string          `json:"interval"`
	Price          decimal.Decimal `json:"price"`
	Recommendation Recommendation  `json:"recommendation"`
	ATR14          decimal.Decimal `json:"atr14"`
	ATRRatio       decimal.Decimal `json:"atr_ratio"`
}

// Balance is one asset row from the account endpoint.
type Balance struct {
	Asset string
	Free  decimal.Decimal
}

// OrderSide and order status values follow the exchange's wire strings.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
)

// OrderReq is a fully quantized limit order request. Price and Qty must
// already satisfy the symbol's tick/step/notional filters.
type OrderReq struct {
	Symbol        string
	Side          OrderSide
	Type          string // only LIMIT today
	Qty           decimal.Decimal
	Price         decimal.Decimal
	TimeInForce   string
	IsTest        bool
	ClientOrderID string
}

// OrderResp is the exchange's acknowledgement of a placement.
type OrderResp struct {
	OrderID     string
	Status      OrderStatus
	ExecutedQty decimal.Decimal
	CumQuoteQty decimal.Decimal
}

// SymbolInfo is the tradability slice of exchange metadata.
type SymbolInfo struct {
	Symbol             string
	Status             string
	SpotTradingAllowed bool
	BaseAsset          string
	QuoteAsset         string
}
