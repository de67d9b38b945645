// Package ledger persists the append-only paper-trading record. Trades are
// never edited or deleted individually; the only destructive operation is a
// full Reset.
package ledger

import (
	"errors"
	"fmt"

	"tradeview/internal/model"
)

// ErrInsufficientPosition rejects a sell larger than the currently held
// quantity. No partial fill is written.
var ErrInsufficientPosition = errors.New("insufficient position")

// Store is the trade ledger contract.
type Store interface {
	// RecordTrade validates and durably appends a trade, returning its id.
	RecordTrade(t model.Trade) (int64, error)
	// ListTrades returns trades in timestamp order; symbol filters when non-empty.
	ListTrades(symbol string) ([]model.Trade, error)
	// Reset wipes all trades and reinitializes starting cash. Irreversible.
	Reset(startingCash float64) error
	// InitialCash returns the configured starting cash.
	InitialCash() (float64, error)
	// SetInitialCash updates starting cash without touching trade history.
	SetInitialCash(v float64) error
	// Cash returns starting cash plus the sum of all trade cash flows.
	Cash() (float64, error)
	Close() error
}

// ValidateTrade applies the pre-insert checks shared by every Store
// implementation: positive quantity and price, known side and order type.
func ValidateTrade(t model.Trade) error {
	if t.Symbol == "" {
		return fmt.Errorf("invalid trade: empty symbol")
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("invalid trade: quantity must be positive, got %v", t.Quantity)
	}
	if t.Price <= 0 {
		return fmt.Errorf("invalid trade: price must be positive, got %v", t.Price)
	}
	if !t.Side.Valid() {
		return fmt.Errorf("invalid trade: side must be BUY or SELL, got %q", t.Side)
	}
	if !t.OrderType.Valid() {
		return fmt.Errorf("invalid trade: order type must be MARKET or LIMIT, got %q", t.OrderType)
	}
	return nil
}
