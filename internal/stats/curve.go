package stats

import (
	"math"
	"sort"
	"time"

	"tradeview/internal/model"
)

// EquityCurve reconstructs the daily account value from the trade ledger and
// per-symbol daily closes. It is an end-of-day approximation: positions are
// folded per calendar date and valued at that date's close (forward-filled
// across the union of trading days), plus remaining cash. Intraday
// mark-to-market is deliberately not attempted; see DESIGN.md.
func EquityCurve(trades []model.Trade, closes map[string][]model.Bar, initialCash float64) []model.EquityPoint {
	if len(closes) == 0 {
		return nil
	}

	// Union of trading days across all symbols.
	daySet := make(map[time.Time]struct{})
	priceAt := make(map[string]map[time.Time]float64, len(closes))
	for sym, bars := range closes {
		m := make(map[time.Time]float64, len(bars))
		for _, b := range bars {
			d := day(b.Time)
			daySet[d] = struct{}{}
			m[d] = b.Close
		}
		priceAt[sym] = m
	}
	days := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	ordered := make([]model.Trade, len(trades))
	copy(ordered, trades)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Time.Before(ordered[j].Time) })

	qty := make(map[string]float64)
	lastPrice := make(map[string]float64) // forward-filled
	cash := initialCash
	next := 0

	points := make([]model.EquityPoint, 0, len(days))
	for _, d := range days {
		for next < len(ordered) && !day(ordered[next].Time).After(d) {
			t := ordered[next]
			qty[t.Symbol] += t.SignedQuantity()
			cash += t.CashFlow()
			next++
		}
		for sym, m := range priceAt {
			if p, ok := m[d]; ok {
				lastPrice[sym] = p
			}
		}

		holdings := 0.0
		for sym, q := range qty {
			if q == 0 {
				continue
			}
			if p, ok := lastPrice[sym]; ok {
				holdings += q * p
			}
		}
		points = append(points, model.EquityPoint{
			Date:     d,
			Cash:     cash,
			Holdings: holdings,
			Equity:   cash + holdings,
		})
	}
	return points
}

// DrawdownSeries converts an equity series to running drawdown fractions:
// (value - runningMax) / runningMax, with the running max seeded from the
// first value.
func DrawdownSeries(equity []float64) []float64 {
	if len(equity) == 0 {
		return nil
	}
	out := make([]float64, len(equity))
	runMax := equity[0]
	for i, v := range equity {
		if v > runMax {
			runMax = v
		}
		if math.Abs(runMax) < 1e-12 {
			out[i] = 0
			continue
		}
		out[i] = (v - runMax) / runMax
	}
	return out
}

// MaxDrawdown returns the deepest drawdown (most negative fraction).
func MaxDrawdown(equity []float64) (float64, error) {
	dd := DrawdownSeries(equity)
	if len(dd) == 0 {
		return 0, ErrInsufficientData
	}
	minDD := 0.0
	for _, v := range dd {
		if v < minDD {
			minDD = v
		}
	}
	return minDD, nil
}

// AnnualizedVol annualizes the stdev of daily equity returns over 252 sessions.
func AnnualizedVol(equity []float64) (float64, error) {
	sd, err := Stdev(Returns(equity))
	if err != nil {
		return 0, err
	}
	if sd <= 0 {
		return 0, ErrNotComputable
	}
	return sd * math.Sqrt(252), nil
}

// Sharpe computes the annualized Sharpe ratio of daily equity returns with a
// zero risk-free rate.
func Sharpe(equity []float64) (float64, error) {
	rets := Returns(equity)
	sd, err := Stdev(rets)
	if err != nil {
		return 0, err
	}
	if sd <= 0 {
		return 0, ErrNotComputable
	}
	mean, _ := Mean(rets)
	return mean * 252 / (sd * math.Sqrt(252)), nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
