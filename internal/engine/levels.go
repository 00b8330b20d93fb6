package engine

import (
	"github.com/shopspring/decimal"

	"spot-trader/internal/quant"
)

// exitLevels derives take-profit and stop prices from the configured fee
// and target fractions.
type exitLevels struct {
	makerFee decimal.Decimal
	takerFee decimal.Decimal
	target   decimal.Decimal
	stopPct  decimal.Decimal // zero disables the stop level
}

var one = decimal.NewFromInt(1)

// targetFor solves sell*(1-taker) >= buy*(1+maker)*(1+target) for the sell
// price, then floors it to the tick. A naive avg*(1+target) would undershoot
// the net target under nonzero fees.
func (e exitLevels) targetFor(f quant.Filters, avg decimal.Decimal) decimal.Decimal {
	tp := avg.
		Mul(one.Add(e.makerFee)).
		Mul(one.Add(e.target)).
		Div(one.Sub(e.takerFee))
	return quant.RoundPrice(f, tp)
}

// stopFor returns avg*(1-stopPct), or zero when the stop is disabled.
func (e exitLevels) stopFor(f quant.Filters, avg decimal.Decimal) decimal.Decimal {
	if e.stopPct.Sign() <= 0 {
		return decimal.Zero
	}
	return quant.RoundPrice(f, avg.Mul(one.Sub(e.stopPct)))
}
