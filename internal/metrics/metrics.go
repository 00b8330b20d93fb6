// Package metrics exposes the Prometheus metric families the trader
// updates during operation:
//   - trader_orders_total{mode,side}: orders placed (mode: simulation|live)
//   - trader_fills_total{side}: confirmed fills
//   - trader_skips_total{reason}: per-symbol skips by reason
//   - trader_errors_total{kind}: recorded failures by kind
//   - trader_last_tick_actions: actions taken on the latest tick
//   - trader_tick_seconds: tick duration histogram
//
// Registered in init() and served at /metrics by cmd/trader.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders placed",
		},
		[]string{"mode", "side"},
	)

	Fills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_fills_total",
			Help: "Order fills confirmed by reconciliation",
		},
		[]string{"side"},
	)

	Skips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_skips_total",
			Help: "Per-symbol skips by reason",
		},
		[]string{"reason"},
	)

	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_errors_total",
			Help: "Failures by kind",
		},
		[]string{"kind"},
	)

	LastTickActions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_last_tick_actions",
			Help: "Actions taken on the most recent tick",
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trader_tick_seconds",
			Help:    "Trading tick duration",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		Orders,
		Fills,
		Skips,
		Errors,
		LastTickActions,
		TickDuration,
	)
}
