// Package metrics exposes the Prometheus series the core updates during
// operation: ambient observability carried alongside trading, ledger, and
// runtime behavior rather than bolted on separately.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratex_trades_total",
			Help: "Trades recorded by the ledger, split by side.",
		},
		[]string{"side"},
	)

	Ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratex_ticks_total",
			Help: "Strategy ticks executed, split by outcome.",
		},
		[]string{"strategy", "outcome"}, // outcome: ok|error
	)

	RunStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stratex_run_status",
			Help: "1 for the currently active status of a run, 0 otherwise.",
		},
		[]string{"run", "status"},
	)

	CumulativePnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stratex_pnl_eth",
			Help: "Cumulative realized PnL in ETH for a run.",
		},
		[]string{"run"},
	)

	SubmissionsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stratex_submissions_in_flight",
			Help: "On-chain submissions currently in flight per run.",
		},
		[]string{"run"},
	)
)

func init() {
	prometheus.MustRegister(Trades, Ticks, RunStatus, CumulativePnL, SubmissionsInFlight)
}

// RecordTrade increments the trade counter for a side ("buy" or "sell").
func RecordTrade(side string) { Trades.WithLabelValues(side).Inc() }

// RecordTick increments the tick counter for a strategy/outcome pair.
func RecordTick(strategyID, outcome string) { Ticks.WithLabelValues(strategyID, outcome).Inc() }

// SetPnL sets the cumulative PnL gauge for a run.
func SetPnL(runID string, pnlEth float64) { CumulativePnL.WithLabelValues(runID).Set(pnlEth) }
