package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"tradeview/internal/model"
)

// exportHeader is the fixed column order of the flat trade export.
var exportHeader = []string{"id", "timestamp", "symbol", "side", "quantity", "price", "order_type"}

// ExportCSV writes trades as CSV, one row per trade in the given order.
// Numeric fields use the shortest exact representation so a re-parse yields
// identical values.
func ExportCSV(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range trades {
		rec := []string{
			strconv.FormatInt(t.ID, 10),
			t.Time.UTC().Format(time.RFC3339),
			t.Symbol,
			string(t.Side),
			strconv.FormatFloat(t.Quantity, 'g', -1, 64),
			strconv.FormatFloat(t.Price, 'g', -1, 64),
			string(t.OrderType),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write trade %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV parses a trade export back into Trade records, preserving order.
func ImportCSV(r io.Reader) ([]model.Trade, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty export")
	}
	if len(records[0]) != len(exportHeader) || records[0][0] != "id" {
		return nil, fmt.Errorf("unexpected header: %v", records[0])
	}

	trades := make([]model.Trade, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(exportHeader) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+1, len(exportHeader), len(rec))
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d id: %w", i+1, err)
		}
		ts, err := time.Parse(time.RFC3339, rec[1])
		if err != nil {
			return nil, fmt.Errorf("row %d timestamp: %w", i+1, err)
		}
		qty, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d quantity: %w", i+1, err)
		}
		price, err := strconv.ParseFloat(rec[5], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d price: %w", i+1, err)
		}
		t := model.Trade{
			ID:        id,
			Time:      ts,
			Symbol:    rec[2],
			Side:      model.Side(rec[3]),
			Quantity:  qty,
			Price:     price,
			OrderType: model.OrderType(rec[6]),
		}
		if err := ValidateTrade(t); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}
