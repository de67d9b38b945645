package model

import "time"

// Position is the derived net holding for one symbol. Never stored; always
// recomputed by folding the trade ledger in timestamp order.
type Position struct {
	Symbol   string
	Quantity float64
	AvgCost  float64
}

// Holding joins a position with the current quote. PriceKnown is false when no
// quote could be obtained; market value and P&L are then unknown rather than
// zero, so a missing quote never shows up as a loss.
type Holding struct {
	Symbol        string
	Quantity      float64
	AvgCost       float64
	Last          float64
	MarketValue   float64
	UnrealizedPnL float64
	PriceKnown    bool
}

// EquityPoint is one date on the end-of-day equity curve.
type EquityPoint struct {
	Date     time.Time
	Cash     float64
	Holdings float64
	Equity   float64
}
