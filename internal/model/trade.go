package model

import "time"

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the known values.
func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// OrderType indicates how the fill price was determined.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

// Valid reports whether the order type is one of the known values.
func (o OrderType) Valid() bool { return o == OrderMarket || o == OrderLimit }

// Trade is one simulated fill in the paper-trading ledger. Trades are
// immutable once recorded; corrections are new offsetting trades.
type Trade struct {
	ID        int64
	Time      time.Time
	Symbol    string
	Side      Side
	Quantity  float64
	Price     float64
	OrderType OrderType
	Note      string
}

// CashFlow returns the signed cash effect of the trade: negative for a buy,
// positive for a sell.
func (t Trade) CashFlow() float64 {
	v := t.Quantity * t.Price
	if t.Side == SideBuy {
		return -v
	}
	return v
}

// SignedQuantity returns quantity for buys and -quantity for sells.
func (t Trade) SignedQuantity() float64 {
	if t.Side == SideBuy {
		return t.Quantity
	}
	return -t.Quantity
}
