// Package session holds the per-user UI state and the handlers that mutate
// it. All state lives in an explicit Session struct guarded by one mutex;
// render methods read it, handler methods change it.
package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeview/internal/config"
	"tradeview/internal/ledger"
	"tradeview/internal/model"
	"tradeview/internal/provider"
)

// Pages the UI can navigate to.
const (
	PageDashboard = "dashboard"
	PageTrade     = "trade"
	PagePortfolio = "portfolio"
	PageSettings  = "settings"
)

// MaxWatchlist caps the watchlist size; a longer list makes the refresh
// cycle exceed the quote TTL and every tick becomes a cold fetch.
const MaxWatchlist = 15

var (
	// ErrNotMarketable rejects a limit order that would not fill at the
	// current quote.
	ErrNotMarketable = errors.New("limit order not marketable at current quote")
	// ErrInsufficientCash rejects a buy larger than the available cash.
	ErrInsufficientCash = errors.New("insufficient cash")
)

// Session is one user's dashboard state.
type Session struct {
	mu sync.Mutex

	id        string
	page      string
	symbol    string
	watchlist []string
	benchmark string
	theme     string

	live     bool
	interval time.Duration

	market *provider.Adapter
	store  ledger.Store

	diagnostics []string
}

// New builds a session seeded from config.
func New(market *provider.Adapter, store ledger.Store, cfg *config.Config) *Session {
	watchlist := make([]string, 0, len(cfg.Watchlist))
	for _, sym := range cfg.Watchlist {
		if sym = provider.NormalizeSymbol(sym); sym != "" {
			watchlist = append(watchlist, sym)
		}
	}
	s := &Session{
		id:        uuid.NewString(),
		page:      PageDashboard,
		watchlist: watchlist,
		benchmark: provider.NormalizeSymbol(cfg.Benchmark),
		theme:     cfg.Theme,
		live:      cfg.Refresh.Enabled,
		interval:  time.Duration(cfg.Refresh.IntervalSec) * time.Second,
		market:    market,
		store:     store,
	}
	if len(s.watchlist) > 0 {
		s.symbol = provider.NormalizeSymbol(s.watchlist[0])
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Navigate switches the active page.
func (s *Session) Navigate(page string) error {
	switch page {
	case PageDashboard, PageTrade, PagePortfolio, PageSettings:
	default:
		return fmt.Errorf("unknown page %q", page)
	}
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	return nil
}

// Page returns the active page.
func (s *Session) Page() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// SelectSymbol sets the symbol the detail views render.
func (s *Session) SelectSymbol(symbol string) error {
	symbol = provider.NormalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	s.mu.Lock()
	s.symbol = symbol
	s.mu.Unlock()
	return nil
}

// Symbol returns the selected symbol.
func (s *Session) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

// Watchlist returns a copy of the watched symbols.
func (s *Session) Watchlist() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.watchlist...)
}

// SetWatchlist replaces the watchlist. Symbols are normalized and
// deduplicated; more than MaxWatchlist is rejected.
func (s *Session) SetWatchlist(symbols []string) error {
	seen := make(map[string]struct{}, len(symbols))
	clean := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = provider.NormalizeSymbol(sym)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		clean = append(clean, sym)
	}
	if len(clean) == 0 {
		return fmt.Errorf("watchlist must contain at least one symbol")
	}
	if len(clean) > MaxWatchlist {
		return fmt.Errorf("watchlist is limited to %d symbols, got %d", MaxWatchlist, len(clean))
	}
	s.mu.Lock()
	s.watchlist = clean
	s.mu.Unlock()
	return nil
}

// SetLive toggles the auto-refresh flag and returns the new state.
func (s *Session) SetLive(on bool) bool {
	s.mu.Lock()
	s.live = on
	s.mu.Unlock()
	return on
}

// Live reports whether auto-refresh is on.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Interval returns the refresh interval.
func (s *Session) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the refresh interval, floored at one second.
func (s *Session) SetInterval(d time.Duration) {
	if d < time.Second {
		d = time.Second
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// SetProviderMode switches the adapter's source selection.
func (s *Session) SetProviderMode(mode string) error {
	switch mode {
	case config.ModeAuto, config.ModePrimaryOnly, config.ModeFallbackOnly:
	default:
		return fmt.Errorf("unknown provider mode %q", mode)
	}
	s.market.SetMode(mode)
	return nil
}

// ProviderMode returns the adapter's active mode.
func (s *Session) ProviderMode() string { return s.market.Mode() }

// SetTheme switches between the light and dark palettes.
func (s *Session) SetTheme(theme string) error {
	if theme != "light" && theme != "dark" {
		return fmt.Errorf("unknown theme %q", theme)
	}
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	return nil
}

// Theme returns the active theme.
func (s *Session) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// ClearCache drops all cached provider results; the next render refetches.
func (s *Session) ClearCache() {
	s.market.ClearCache()
	log.Println("[INFO] provider cache cleared")
}

// ResetAccount wipes the ledger and restarts with the given cash.
func (s *Session) ResetAccount(startingCash float64) error {
	return s.store.Reset(startingCash)
}

// SetInitialCash changes the starting balance without touching trades.
func (s *Session) SetInitialCash(v float64) error {
	return s.store.SetInitialCash(v)
}

// OrderRequest is a trade ticket as submitted from the UI.
type OrderRequest struct {
	Symbol     string          `json:"symbol"`
	Side       model.Side      `json:"side"`
	Quantity   float64         `json:"quantity"`
	OrderType  model.OrderType `json:"order_type"`
	LimitPrice float64         `json:"limit_price"`
	Note       string          `json:"note"`
}

// OrderResult reports a recorded fill.
type OrderResult struct {
	TradeID   int64   `json:"trade_id"`
	Symbol    string  `json:"symbol"`
	FillPrice float64 `json:"fill_price"`
	Cash      float64 `json:"cash"`
}

// PlaceOrder runs the full order chain: validation, quote, limit
// marketability, cash check, ledger append. Any failure leaves the ledger
// untouched.
func (s *Session) PlaceOrder(req OrderRequest) (OrderResult, error) {
	symbol := provider.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return OrderResult{}, fmt.Errorf("empty symbol")
	}
	if req.Quantity <= 0 {
		return OrderResult{}, fmt.Errorf("quantity must be positive, got %v", req.Quantity)
	}
	if !req.Side.Valid() {
		return OrderResult{}, fmt.Errorf("side must be BUY or SELL, got %q", req.Side)
	}
	if req.OrderType == "" {
		req.OrderType = model.OrderMarket
	}
	if !req.OrderType.Valid() {
		return OrderResult{}, fmt.Errorf("order type must be MARKET or LIMIT, got %q", req.OrderType)
	}

	// No quote, no order. Simulated fills need a real reference price.
	q, _, err := s.market.GetQuote(symbol)
	if err != nil {
		return OrderResult{}, fmt.Errorf("no quote for %s, order not placed: %w", symbol, err)
	}

	fill := q.Last
	if req.OrderType == model.OrderLimit {
		if req.LimitPrice <= 0 {
			return OrderResult{}, fmt.Errorf("limit price must be positive, got %v", req.LimitPrice)
		}
		marketable := (req.Side == model.SideBuy && q.Last <= req.LimitPrice) ||
			(req.Side == model.SideSell && q.Last >= req.LimitPrice)
		if !marketable {
			return OrderResult{}, fmt.Errorf("%s %s limit %.4f vs quote %.4f: %w",
				req.Side, symbol, req.LimitPrice, q.Last, ErrNotMarketable)
		}
		fill = req.LimitPrice
	}

	if req.Side == model.SideBuy {
		cash, err := s.store.Cash()
		if err != nil {
			return OrderResult{}, fmt.Errorf("read cash: %w", err)
		}
		if cost := req.Quantity * fill; cost > cash+1e-9 {
			return OrderResult{}, fmt.Errorf("buy costs %.2f with %.2f cash: %w",
				cost, cash, ErrInsufficientCash)
		}
	}

	id, err := s.store.RecordTrade(model.Trade{
		Time:      time.Now().UTC(),
		Symbol:    symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     fill,
		OrderType: req.OrderType,
		Note:      req.Note,
	})
	if err != nil {
		return OrderResult{}, fmt.Errorf("order not placed: %w", err)
	}

	cash, err := s.store.Cash()
	if err != nil {
		return OrderResult{}, fmt.Errorf("read cash: %w", err)
	}
	log.Printf("[INFO] order filled: #%d %s %s %g @ %.4f", id, req.Side, symbol, req.Quantity, fill)
	return OrderResult{TradeID: id, Symbol: symbol, FillPrice: fill, Cash: cash}, nil
}

// Quote returns the latest quote for a symbol straight from the adapter.
func (s *Session) Quote(symbol string) (model.Quote, provider.SourceInfo, error) {
	return s.market.GetQuote(symbol)
}

// Trades lists recorded trades, optionally filtered by symbol.
func (s *Session) Trades(symbol string) ([]model.Trade, error) {
	return s.store.ListTrades(provider.NormalizeSymbol(symbol))
}

// ExportTrades writes the full ledger as CSV.
func (s *Session) ExportTrades(w io.Writer) error {
	trades, err := s.store.ListTrades("")
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	return ledger.ExportCSV(w, trades)
}

// ImportTrades replays a CSV export into the ledger. Ids are reassigned;
// returns the number of trades recorded.
func (s *Session) ImportTrades(r io.Reader) (int, error) {
	trades, err := ledger.ImportCSV(r)
	if err != nil {
		return 0, err
	}
	for i, t := range trades {
		t.ID = 0
		if _, err := s.store.RecordTrade(t); err != nil {
			return i, fmt.Errorf("trade %d: %w", i+1, err)
		}
	}
	return len(trades), nil
}

// Diagnostics returns the messages collected by the last render pass.
func (s *Session) Diagnostics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.diagnostics...)
}

func (s *Session) resetDiagnostics() {
	s.mu.Lock()
	s.diagnostics = nil
	s.mu.Unlock()
}

func (s *Session) addDiagnostic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.mu.Lock()
	s.diagnostics = append(s.diagnostics, msg)
	s.mu.Unlock()
	log.Printf("[WARN] %s", msg)
}
