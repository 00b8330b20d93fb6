package ta

import (
	"math"

	"github.com/shopspring/decimal"

	"spot-trader/internal/types"
)

// ATR returns the simple-average true range over the trailing period.
func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	n := period
	if len(closes) < n+1 || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		sum += math.Max(tr1, math.Max(tr2, tr3))
	}
	return sum / float64(n)
}

// ATRRatio computes price / ATR14 from a candle series. It is the
// volatility-normalized gate the entry path checks. Returns false when the
// series is too short or the ATR degenerates to zero.
func ATRRatio(candles []types.Candle, period int) (decimal.Decimal, bool) {
	if len(candles) < period+1 {
		return decimal.Zero, false
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i], _ = c.High.Float64()
		lows[i], _ = c.Low.Float64()
		closes[i], _ = c.Close.Float64()
	}
	atr := ATR(highs, lows, closes, period)
	if math.IsNaN(atr) || atr <= 0 {
		return decimal.Zero, false
	}
	price := closes[len(closes)-1]
	return decimal.NewFromFloat(price / atr).Round(4), true
}
