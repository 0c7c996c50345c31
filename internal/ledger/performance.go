package ledger

import (
	"fmt"
	"math/big"
	"time"
)

// Range is a lookback window for Performance.
type Range string

const (
	Range1h  Range = "1h"
	Range4h  Range = "4h"
	Range1d  Range = "1d"
	Range7d  Range = "7d"
	RangeAll Range = "all"
)

func (r Range) since(now time.Time) (time.Time, bool) {
	switch r {
	case Range1h:
		return now.Add(-time.Hour), true
	case Range4h:
		return now.Add(-4 * time.Hour), true
	case Range1d:
		return now.Add(-24 * time.Hour), true
	case Range7d:
		return now.Add(-7 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

// EquityPoint is one bracketed point on a performance equity curve.
type EquityPoint struct {
	Timestamp      time.Time
	CumulativePnL  string
}

// Summary is the aggregate performance statistics over a trade set.
type Summary struct {
	TotalPnlEth    string
	TotalPnlPct    string
	WinRatePct     string
	MaxDrawdownPct string
	AvgPnlEth      string
	BestPnlEth     string
	WorstPnlEth    string
}

// Performance computes the equity curve, trade list, and summary statistics
// for a strategy over a lookback range, optionally scoped to a single run
// (the active-or-latest run is used otherwise).
func (l *Ledger) Performance(strategyID string, r Range, runID string) ([]EquityPoint, []Trade, Summary, error) {
	if runID == "" {
		runs, err := l.RunsByStrategy(strategyID)
		if err != nil {
			return nil, nil, Summary{}, err
		}
		if len(runs) == 0 {
			return nil, nil, Summary{}, fmt.Errorf("strategy %s has no runs", strategyID)
		}
		runID = runs[0].ID
	}

	trades, err := l.TradesByRun(runID)
	if err != nil {
		return nil, nil, Summary{}, err
	}

	now := time.Now()
	rangeStart, bounded := r.since(now)
	if bounded {
		filtered := trades[:0]
		for _, t := range trades {
			if !t.Timestamp.Before(rangeStart) {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	} else if len(trades) > 0 {
		rangeStart = trades[0].Timestamp
	} else {
		rangeStart = now
	}

	curve := buildEquityCurve(trades, rangeStart, now)
	summary := summarize(trades)
	return curve, trades, summary, nil
}

func buildEquityCurve(trades []Trade, rangeStart, now time.Time) []EquityPoint {
	curve := make([]EquityPoint, 0, len(trades)+2)
	curve = append(curve, EquityPoint{Timestamp: rangeStart, CumulativePnL: "0"})
	for _, t := range trades {
		curve = append(curve, EquityPoint{Timestamp: t.Timestamp, CumulativePnL: t.CumulativePnlEth})
	}
	last := "0"
	if len(trades) > 0 {
		last = trades[len(trades)-1].CumulativePnlEth
	}
	curve = append(curve, EquityPoint{Timestamp: now, CumulativePnL: last})
	return curve
}

func summarize(trades []Trade) Summary {
	sells := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.Side == "sell" {
			sells = append(sells, t)
		}
	}

	total := big.NewRat(0, 1)
	var best, worst *big.Rat
	wins := 0
	for _, t := range sells {
		pnl, ok := new(big.Rat).SetString(t.PnlEth)
		if !ok {
			pnl = big.NewRat(0, 1)
		}
		total.Add(total, pnl)
		if pnl.Sign() > 0 {
			wins++
		}
		if best == nil || pnl.Cmp(best) > 0 {
			best = pnl
		}
		if worst == nil || pnl.Cmp(worst) < 0 {
			worst = pnl
		}
	}
	if best == nil {
		best = big.NewRat(0, 1)
	}
	if worst == nil {
		worst = big.NewRat(0, 1)
	}

	winRate := big.NewRat(0, 1)
	avg := big.NewRat(0, 1)
	if len(sells) > 0 {
		winRate = new(big.Rat).SetFrac64(int64(wins)*100, int64(len(sells)))
		avg = new(big.Rat).Quo(total, big.NewRat(int64(len(sells)), 1))
	}

	totalPct := big.NewRat(0, 1)
	costBasisTotal := big.NewRat(0, 1)
	for _, t := range sells {
		pnl, _ := new(big.Rat).SetString(t.PnlEth)
		pct, ok := new(big.Rat).SetString(t.PnlPct)
		if !ok || pnl == nil {
			continue
		}
		if pct.Sign() != 0 && pnl.Sign() != 0 {
			costBasis := new(big.Rat).Quo(pnl, new(big.Rat).Quo(pct, big.NewRat(100, 1)))
			costBasisTotal.Add(costBasisTotal, costBasis)
		}
	}
	if costBasisTotal.Sign() != 0 {
		totalPct = new(big.Rat).Quo(total, costBasisTotal)
		totalPct.Mul(totalPct, big.NewRat(100, 1))
	}

	return Summary{
		TotalPnlEth:    ratToDecimalString(total),
		TotalPnlPct:    ratToDecimalString(totalPct),
		WinRatePct:     ratToDecimalString(winRate),
		MaxDrawdownPct: ratToDecimalString(maxDrawdownPct(trades)),
		AvgPnlEth:      ratToDecimalString(avg),
		BestPnlEth:     ratToDecimalString(best),
		WorstPnlEth:    ratToDecimalString(worst),
	}
}

// maxDrawdownPct is the largest (peak - current)/peak along the cumulative
// series, zero if the peak is non-positive.
func maxDrawdownPct(trades []Trade) *big.Rat {
	peak := big.NewRat(0, 1)
	maxDD := big.NewRat(0, 1)
	for _, t := range trades {
		cur, ok := new(big.Rat).SetString(t.CumulativePnlEth)
		if !ok {
			continue
		}
		if cur.Cmp(peak) > 0 {
			peak = cur
		}
		if peak.Sign() > 0 {
			dd := new(big.Rat).Sub(peak, cur)
			dd.Quo(dd, peak)
			dd.Mul(dd, big.NewRat(100, 1))
			if dd.Cmp(maxDD) > 0 {
				maxDD = dd
			}
		}
	}
	return maxDD
}
