package session

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradeview/internal/cache"
	"tradeview/internal/config"
	"tradeview/internal/ledger"
	"tradeview/internal/model"
	"tradeview/internal/provider"
)

func testConfig() *config.Config {
	cfg, _ := config.Load("does-not-exist.yaml")
	cfg.Watchlist = []string{"AAPL"}
	cfg.Account.StartingCash = 10000
	return cfg
}

func newTestSession(t *testing.T, primary, fallback *provider.MockFetcher) *Session {
	t.Helper()
	store, err := ledger.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"), 10000)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	adapter := provider.NewAdapter(primary, fallback, cache.New(), config.ModeAuto)
	return New(adapter, store, testConfig())
}

func TestPlaceOrder_MarketBuy(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})

	res, err := s.PlaceOrder(OrderRequest{Symbol: "aapl", Side: model.SideBuy, Quantity: 10})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if res.Symbol != "AAPL" {
		t.Errorf("symbol must be normalized, got %q", res.Symbol)
	}
	if res.FillPrice != 100 {
		t.Errorf("expected fill at quote 100, got %v", res.FillPrice)
	}
	if math.Abs(res.Cash-9000) > 1e-9 {
		t.Errorf("expected cash 9000, got %v", res.Cash)
	}
}

func TestPlaceOrder_RejectsWithoutQuote(t *testing.T) {
	down := errors.New("connection refused")
	s := newTestSession(t, &provider.MockFetcher{Err: down}, &provider.MockFetcher{Err: down})

	_, err := s.PlaceOrder(OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Quantity: 1})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	trades, _ := s.Trades("")
	if len(trades) != 0 {
		t.Error("no trade may be recorded without a quote")
	}
}

func TestPlaceOrder_InsufficientCash(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})

	_, err := s.PlaceOrder(OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Quantity: 500})
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	trades, _ := s.Trades("")
	if len(trades) != 0 {
		t.Error("rejected order must not reach the ledger")
	}
}

func TestPlaceOrder_OversellPropagates(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})

	if _, err := s.PlaceOrder(OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Quantity: 10}); err != nil {
		t.Fatal(err)
	}
	_, err := s.PlaceOrder(OrderRequest{Symbol: "AAPL", Side: model.SideSell, Quantity: 15})
	if !errors.Is(err, ledger.ErrInsufficientPosition) {
		t.Fatalf("expected ErrInsufficientPosition, got %v", err)
	}
}

func TestPlaceOrder_LimitMarketability(t *testing.T) {
	cases := []struct {
		name  string
		side  model.Side
		limit float64
		fills bool
	}{
		{"buy limit above quote fills", model.SideBuy, 105, true},
		{"buy limit below quote rests", model.SideBuy, 95, false},
		{"sell limit below quote fills", model.SideSell, 95, true},
		{"sell limit above quote rests", model.SideSell, 105, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})
			if tc.side == model.SideSell {
				if _, err := s.PlaceOrder(OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Quantity: 5}); err != nil {
					t.Fatal(err)
				}
			}
			res, err := s.PlaceOrder(OrderRequest{
				Symbol: "AAPL", Side: tc.side, Quantity: 1,
				OrderType: model.OrderLimit, LimitPrice: tc.limit,
			})
			if tc.fills {
				if err != nil {
					t.Fatalf("expected fill: %v", err)
				}
				// Limit orders fill at the limit price, not the quote.
				if res.FillPrice != tc.limit {
					t.Errorf("expected fill at limit %v, got %v", tc.limit, res.FillPrice)
				}
			} else if !errors.Is(err, ErrNotMarketable) {
				t.Fatalf("expected ErrNotMarketable, got %v", err)
			}
		})
	}
}

func TestPlaceOrder_RejectsInvalidTicket(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})
	bad := []OrderRequest{
		{Symbol: "", Side: model.SideBuy, Quantity: 1},
		{Symbol: "AAPL", Side: model.SideBuy, Quantity: 0},
		{Symbol: "AAPL", Side: "HOLD", Quantity: 1},
		{Symbol: "AAPL", Side: model.SideBuy, Quantity: 1, OrderType: model.OrderLimit, LimitPrice: 0},
	}
	for i, req := range bad {
		if _, err := s.PlaceOrder(req); err == nil {
			t.Errorf("case %d: expected rejection of %+v", i, req)
		}
	}
}

func TestSetWatchlist_NormalizesAndCaps(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})

	if err := s.SetWatchlist([]string{" aapl ", "MSFT", "aapl", ""}); err != nil {
		t.Fatalf("set watchlist: %v", err)
	}
	got := s.Watchlist()
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("expected [AAPL MSFT], got %v", got)
	}

	long := make([]string, MaxWatchlist+1)
	for i := range long {
		long[i] = "S" + string(rune('A'+i))
	}
	if err := s.SetWatchlist(long); err == nil {
		t.Error("expected rejection past the watchlist cap")
	}
	if err := s.SetWatchlist(nil); err == nil {
		t.Error("expected rejection of an empty watchlist")
	}
}

func TestRenderDashboard_DegradedSymbolKeepsBatch(t *testing.T) {
	primary := &provider.MockFetcher{Err: errors.New("timeout")}
	fallback := &provider.MockFetcher{Err: errors.New("timeout")}
	s := newTestSession(t, primary, fallback)
	if err := s.SetWatchlist([]string{"AAPL", "MSFT"}); err != nil {
		t.Fatal(err)
	}

	view := s.RenderDashboard()
	if len(view.Watchlist) != 2 {
		t.Fatalf("every symbol must produce a row, got %d", len(view.Watchlist))
	}
	for _, row := range view.Watchlist {
		if row.Error == "" {
			t.Errorf("%s: expected a degraded row", row.Symbol)
		}
		if row.Last != nil {
			t.Errorf("%s: degraded row must not carry a price", row.Symbol)
		}
	}
	if len(view.Diagnostics) == 0 {
		t.Error("failures must surface as diagnostics")
	}
}

func TestRenderDashboard_Totals(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 110}, &provider.MockFetcher{})
	if _, err := s.PlaceOrder(OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Quantity: 10}); err != nil {
		t.Fatal(err)
	}

	view := s.RenderDashboard()
	if math.Abs(view.Cash-8900) > 1e-9 {
		t.Errorf("expected cash 8900, got %v", view.Cash)
	}
	if math.Abs(view.HoldingsValue-1100) > 1e-9 {
		t.Errorf("expected holdings 1100, got %v", view.HoldingsValue)
	}
	if math.Abs(view.TotalValue-10000) > 1e-9 {
		t.Errorf("expected total 10000, got %v", view.TotalValue)
	}
	if view.CashText == "" || !strings.HasPrefix(view.CashText, "$") {
		t.Errorf("expected formatted cash, got %q", view.CashText)
	}
}

func TestRenderHistory_IntradayUnavailableNotDowngraded(t *testing.T) {
	primary := &provider.MockFetcher{Err: errors.New("timeout")}
	fallback := &provider.MockFetcher{Price: 100}
	s := newTestSession(t, primary, fallback)

	_, err := s.RenderHistory("AAPL", "5d", provider.Gran5Min)
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("intraday with a dead primary must be unavailable, got %v", err)
	}
}

func TestRenderHistory_DailyOverlays(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})

	view, err := s.RenderHistory("AAPL", "1y", provider.GranDaily)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(view.Bars) == 0 {
		t.Fatal("expected bars")
	}
	if len(view.SMA20) != len(view.Bars) || len(view.SMA50) != len(view.Bars) {
		t.Error("overlays must align with the bar series")
	}
	if view.SMA20[0] != nil {
		t.Error("SMA must be null before the window fills")
	}
	if view.KeyLevels == nil || view.Stats == nil {
		t.Error("daily history must include key levels and window stats")
	}
}

func TestRenderWindowStats_ExtremeDistances(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})

	ws, err := s.RenderWindowStats("AAPL", "1mo", provider.GranDaily, 0, -1)
	if err != nil {
		t.Fatalf("window stats: %v", err)
	}
	if ws.SigmaFromHigh == nil || ws.SigmaFromLow == nil {
		t.Fatal("expected distances from the slice extremes")
	}
	if *ws.SigmaFromHigh > 0 {
		t.Errorf("price cannot sit above the slice high, got %v", *ws.SigmaFromHigh)
	}
	if *ws.SigmaFromLow < 0 {
		t.Errorf("price cannot sit below the slice low, got %v", *ws.SigmaFromLow)
	}
}

func TestRenderAnalytics_EquityAndBenchmark(t *testing.T) {
	bars := []model.Bar{
		{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Close: 100, High: 101, Low: 99, Volume: 1},
		{Time: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Close: 105, High: 106, Low: 104, Volume: 1},
	}
	s := newTestSession(t, &provider.MockFetcher{Price: 100, Bars: bars}, &provider.MockFetcher{})
	if _, err := s.PlaceOrder(OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Quantity: 10}); err != nil {
		t.Fatal(err)
	}

	view, err := s.RenderAnalytics()
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(view.Equity) != len(bars) || len(view.Benchmark) != len(bars) || len(view.Drawdown) != len(bars) {
		t.Fatalf("series must align: equity %d benchmark %d drawdown %d",
			len(view.Equity), len(view.Benchmark), len(view.Drawdown))
	}
}

func TestRenderAnalytics_WindowCoversFirstTrade(t *testing.T) {
	store, err := ledger.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"), 10000)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if _, err := store.RecordTrade(model.Trade{
		Time: time.Now().UTC().AddDate(-3, 0, 0), Symbol: "AAPL",
		Side: model.SideBuy, Quantity: 1, Price: 100, OrderType: model.OrderMarket,
	}); err != nil {
		t.Fatal(err)
	}

	primary := &provider.MockFetcher{Price: 100}
	adapter := provider.NewAdapter(primary, &provider.MockFetcher{}, cache.New(), config.ModeAuto)
	s := New(adapter, store, testConfig())

	if _, err := s.RenderAnalytics(); err != nil {
		t.Fatalf("analytics: %v", err)
	}
	// A three-year-old ledger needs more than the default 1y of closes.
	if primary.LastWindow != "5y" {
		t.Errorf("expected a 5y lookback for a 3-year-old ledger, got %q", primary.LastWindow)
	}
}

func TestExportImport_ThroughSession(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})
	if _, err := s.PlaceOrder(OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Quantity: 3}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.ExportTrades(&buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	if err := s.ResetAccount(10000); err != nil {
		t.Fatal(err)
	}
	n, err := s.ImportTrades(&buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 trade imported, got %d", n)
	}
	trades, _ := s.Trades("AAPL")
	if len(trades) != 1 || trades[0].Quantity != 3 {
		t.Errorf("imported trade missing, got %+v", trades)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	s := newTestSession(t, &provider.MockFetcher{Price: 100}, &provider.MockFetcher{})

	if err := s.SetProviderMode(config.ModeFallbackOnly); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTheme("light"); err != nil {
		t.Fatal(err)
	}
	s.SetInterval(500 * time.Millisecond) // floored to 1s
	s.SetLive(true)
	if err := s.SetInitialCash(50000); err != nil {
		t.Fatal(err)
	}

	view, err := s.RenderSettings()
	if err != nil {
		t.Fatal(err)
	}
	if view.ProviderMode != config.ModeFallbackOnly || view.Theme != "light" ||
		!view.Live || view.IntervalSec != 1 || view.InitialCash != 50000 {
		t.Errorf("settings view mismatch: %+v", view)
	}
	if err := s.SetProviderMode("turbo"); err == nil {
		t.Error("expected rejection of unknown provider mode")
	}
}
