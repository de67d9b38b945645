package ledger

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"tradeview/internal/model"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"), 10000)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func buy(symbol string, qty, price float64) model.Trade {
	return model.Trade{
		Time: time.Now().UTC(), Symbol: symbol, Side: model.SideBuy,
		Quantity: qty, Price: price, OrderType: model.OrderMarket,
	}
}

func sell(symbol string, qty, price float64) model.Trade {
	t := buy(symbol, qty, price)
	t.Side = model.SideSell
	return t
}

func TestRecordTrade_BuyUpdatesCash(t *testing.T) {
	s := openTestStore(t)

	id, err := s.RecordTrade(buy("X", 10, 100))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id <= 0 {
		t.Errorf("expected positive id, got %d", id)
	}

	trades, err := s.ListTrades("")
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].ID != id {
		t.Fatalf("expected the trade listed exactly once, got %+v", trades)
	}

	cash, err := s.Cash()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cash-9000) > 1e-9 {
		t.Errorf("expected cash 9000, got %v", cash)
	}
}

func TestRecordTrade_RejectsInvalid(t *testing.T) {
	s := openTestStore(t)

	bad := []model.Trade{
		buy("", 1, 1),
		buy("X", 0, 1),
		buy("X", -5, 1),
		buy("X", 1, 0),
		{Time: time.Now(), Symbol: "X", Side: "HOLD", Quantity: 1, Price: 1, OrderType: model.OrderMarket},
		{Time: time.Now(), Symbol: "X", Side: model.SideBuy, Quantity: 1, Price: 1, OrderType: "STOP"},
	}
	for i, tr := range bad {
		if _, err := s.RecordTrade(tr); err == nil {
			t.Errorf("case %d: expected rejection of %+v", i, tr)
		}
	}
	trades, _ := s.ListTrades("")
	if len(trades) != 0 {
		t.Errorf("rejected trades must not be written, found %d", len(trades))
	}
}

func TestRecordTrade_OversellRejectedNoPartialWrite(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.RecordTrade(buy("X", 10, 100)); err != nil {
		t.Fatal(err)
	}
	_, err := s.RecordTrade(sell("X", 15, 110))
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("expected ErrInsufficientPosition, got %v", err)
	}

	trades, _ := s.ListTrades("")
	if len(trades) != 1 {
		t.Errorf("ledger must be unchanged after rejection, got %d trades", len(trades))
	}
	cash, _ := s.Cash()
	if math.Abs(cash-9000) > 1e-9 {
		t.Errorf("cash must be unchanged, got %v", cash)
	}
}

func TestRecordTrade_SellFlatScenario(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.RecordTrade(buy("X", 10, 100)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordTrade(sell("X", 10, 110)); err != nil {
		t.Fatalf("full exit should be allowed: %v", err)
	}
	cash, _ := s.Cash()
	if math.Abs(cash-10100) > 1e-9 {
		t.Errorf("expected cash 10100, got %v", cash)
	}
}

func TestListTrades_SymbolFilterAndOrder(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, tr := range []model.Trade{
		{Time: base, Symbol: "A", Side: model.SideBuy, Quantity: 1, Price: 10, OrderType: model.OrderMarket},
		{Time: base.Add(time.Minute), Symbol: "B", Side: model.SideBuy, Quantity: 2, Price: 20, OrderType: model.OrderMarket},
		{Time: base.Add(2 * time.Minute), Symbol: "A", Side: model.SideBuy, Quantity: 3, Price: 11, OrderType: model.OrderLimit},
	} {
		if _, err := s.RecordTrade(tr); err != nil {
			t.Fatalf("trade %d: %v", i, err)
		}
	}

	as, err := s.ListTrades("A")
	if err != nil {
		t.Fatal(err)
	}
	if len(as) != 2 {
		t.Fatalf("expected 2 trades for A, got %d", len(as))
	}
	if !as[0].Time.Before(as[1].Time) {
		t.Error("trades must be in timestamp order")
	}
	if as[0].ID >= as[1].ID {
		t.Error("ids must be monotonic")
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.RecordTrade(buy("X", 5, 50)); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(25000); err != nil {
		t.Fatalf("reset: %v", err)
	}

	trades, _ := s.ListTrades("")
	if len(trades) != 0 {
		t.Errorf("expected empty ledger after reset, got %d", len(trades))
	}
	cash, _ := s.Cash()
	if cash != 25000 {
		t.Errorf("expected cash 25000 after reset, got %v", cash)
	}

	// Fresh ledger restarts the id sequence.
	id, err := s.RecordTrade(buy("Y", 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Errorf("expected id 1 after reset, got %d", id)
	}
}

func TestReset_RejectsNegativeCash(t *testing.T) {
	s := openTestStore(t)
	if err := s.Reset(-1); err == nil {
		t.Error("expected rejection of negative starting cash")
	}
}

func TestSetInitialCash_KeepsTrades(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.RecordTrade(buy("X", 1, 100)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetInitialCash(50000); err != nil {
		t.Fatal(err)
	}
	trades, _ := s.ListTrades("")
	if len(trades) != 1 {
		t.Error("changing starting cash must not touch trades")
	}
	cash, _ := s.Cash()
	if math.Abs(cash-49900) > 1e-9 {
		t.Errorf("expected 49900, got %v", cash)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")

	s, err := NewSQLiteStore(path, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordTrade(buy("X", 2, 30)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewSQLiteStore(path, 10000)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	trades, err := s2.ListTrades("")
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].Symbol != "X" {
		t.Errorf("trade must survive reopen, got %+v", trades)
	}
}
