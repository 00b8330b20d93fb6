package types

import "github.com/shopspring/decimal"

// SymbolMeta is the full per-symbol exchange metadata entry. Precision
// fields back the filter derivation when the filter list is absent.
type SymbolMeta struct {
	SymbolInfo
	BaseAssetPrecision  int
	QuotePrecision      int
	QuoteAssetPrecision int
	BaseSizePrecision   decimal.Decimal // reported as a decimal step, may be zero
	Filters             []SymbolFilter
}

// SymbolFilter is one entry of the exchange's filter list. Exchanges vary
// the type naming, so consumers match by substring, not equality.
type SymbolFilter struct {
	Type        string
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
}
