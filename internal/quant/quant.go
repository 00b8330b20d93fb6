package quant

import "github.com/shopspring/decimal"

// Filters are the per-symbol exchange constraints every order must satisfy.
// All fields are exact decimals; a zero TickSize or StepSize disables the
// corresponding rounding.
type Filters struct {
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// floorToStep floors x to the nearest multiple of step at or below it.
func floorToStep(x, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return x
	}
	return x.Div(step).Floor().Mul(step)
}

// ceilToStep raises x to the nearest multiple of step at or above it.
func ceilToStep(x, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return x
	}
	return x.Div(step).Ceil().Mul(step)
}

// RoundPrice floors price to the symbol's tick size. The result is always
// a multiple of TickSize and never above the input.
func RoundPrice(f Filters, price decimal.Decimal) decimal.Decimal {
	return floorToStep(price, f.TickSize)
}

// RoundQty floors qty to the symbol's step size, then raises it to MinQty
// when the floored value falls below it. The raised value may exceed the
// requested quantity; callers must treat the result as authoritative.
func RoundQty(f Filters, qty decimal.Decimal) decimal.Decimal {
	q := floorToStep(qty, f.StepSize)
	if f.MinQty.Sign() > 0 && q.LessThan(f.MinQty) {
		return f.MinQty
	}
	return q
}

// SizeOrder computes the largest step-aligned quantity purchasable at price
// within budget, subject to the minimum notional. When the minimum notional
// cannot be met without exceeding the budget it returns zero: the order is
// refused rather than oversized.
func SizeOrder(f Filters, price, budget decimal.Decimal) decimal.Decimal {
	if price.Sign() <= 0 || budget.Sign() <= 0 {
		return decimal.Zero
	}

	q := floorToStep(budget.Div(price), f.StepSize)
	if f.MinQty.Sign() > 0 && q.LessThan(f.MinQty) {
		q = f.MinQty
	}

	if f.MinNotional.Sign() > 0 && q.Mul(price).LessThan(f.MinNotional) {
		q = ceilToStep(f.MinNotional.Div(price), f.StepSize)
		if f.MinQty.Sign() > 0 && q.LessThan(f.MinQty) {
			q = f.MinQty
		}
	}

	if q.Sign() <= 0 || q.Mul(price).GreaterThan(budget) {
		return decimal.Zero
	}
	return q
}
