// Package portfolio derives positions, holdings and account analytics from
// the trade ledger. Nothing here is stored: every view is recomputed by
// folding trades.
package portfolio

import (
	"math"
	"sort"

	"tradeview/internal/model"
	"tradeview/internal/stats"
)

// Positions folds trades in timestamp order into net positions. A sell
// reduces the cost basis at the running average cost. Symbols folded flat
// are omitted.
func Positions(trades []model.Trade) []model.Position {
	ordered := make([]model.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Time.Before(ordered[j].Time) })

	type acc struct{ qty, cost float64 }
	bySymbol := make(map[string]*acc)
	for _, t := range ordered {
		a := bySymbol[t.Symbol]
		if a == nil {
			a = &acc{}
			bySymbol[t.Symbol] = a
		}
		if t.Side == model.SideBuy {
			a.qty += t.Quantity
			a.cost += t.Quantity * t.Price
		} else {
			if a.qty > 0 {
				avg := a.cost / a.qty
				a.cost -= t.Quantity * avg
			}
			a.qty -= t.Quantity
		}
	}

	positions := make([]model.Position, 0, len(bySymbol))
	for sym, a := range bySymbol {
		if math.Abs(a.qty) < 1e-9 {
			continue
		}
		positions = append(positions, model.Position{
			Symbol:   sym,
			Quantity: a.qty,
			AvgCost:  a.cost / a.qty,
		})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions
}

// QuoteFunc resolves the latest price for a symbol. A returned error means
// the price is unknown; the holding row then carries no market value rather
// than a fabricated zero.
type QuoteFunc func(symbol string) (float64, error)

// Holdings joins positions with current quotes, isolating quote failures per
// symbol.
func Holdings(positions []model.Position, quote QuoteFunc) []model.Holding {
	holdings := make([]model.Holding, 0, len(positions))
	for _, p := range positions {
		h := model.Holding{Symbol: p.Symbol, Quantity: p.Quantity, AvgCost: p.AvgCost}
		if last, err := quote(p.Symbol); err == nil && last > 0 {
			h.PriceKnown = true
			h.Last = last
			h.MarketValue = p.Quantity * last
			h.UnrealizedPnL = (last - p.AvgCost) * p.Quantity
		}
		holdings = append(holdings, h)
	}
	return holdings
}

// AccountSummary aggregates the account-level view.
type AccountSummary struct {
	Cash          float64
	HoldingsValue float64
	TotalValue    float64
	PnL           float64
	UnknownPrices int // holdings excluded from the totals above
}

// Summarize totals holdings plus cash against the starting balance. Rows
// with unknown prices contribute nothing and are counted separately.
func Summarize(holdings []model.Holding, cash, initialCash float64) AccountSummary {
	s := AccountSummary{Cash: cash}
	for _, h := range holdings {
		if !h.PriceKnown {
			s.UnknownPrices++
			continue
		}
		s.HoldingsValue += h.MarketValue
	}
	s.TotalValue = s.Cash + s.HoldingsValue
	s.PnL = s.TotalValue - initialCash
	return s
}

// EquityCurveVsBenchmark builds the account equity curve plus an aligned
// buy-and-hold benchmark: the same starting cash deployed into the benchmark
// at its first available close. Benchmark values before that date are NaN.
func EquityCurveVsBenchmark(trades []model.Trade, ownCloses map[string][]model.Bar, benchCloses []model.Bar, initialCash float64) ([]model.EquityPoint, []float64) {
	equity := stats.EquityCurve(trades, ownCloses, initialCash)
	if len(equity) == 0 {
		return nil, nil
	}

	benchmark := make([]float64, len(equity))
	for i := range benchmark {
		benchmark[i] = math.NaN()
	}
	if len(benchCloses) == 0 {
		return equity, benchmark
	}

	b0 := benchCloses[0].Close
	if math.Abs(b0) < 1e-12 {
		return equity, benchmark
	}
	j := 0
	last := math.NaN()
	for i, p := range equity {
		for j < len(benchCloses) && !benchCloses[j].Time.After(p.Date.AddDate(0, 0, 1).Add(-1)) {
			last = benchCloses[j].Close
			j++
		}
		if !math.IsNaN(last) {
			benchmark[i] = initialCash * last / b0
		}
	}
	return equity, benchmark
}
