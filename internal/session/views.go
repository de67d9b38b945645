package session

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"tradeview/internal/model"
	"tradeview/internal/portfolio"
	"tradeview/internal/provider"
	"tradeview/internal/stats"
)

// Nullable metrics are rendered as *float64 so JSON carries null instead of
// a fake zero (NaN is not representable in JSON).
func opt(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func optErr(v float64, err error) *float64 {
	if err != nil {
		return nil
	}
	return opt(v)
}

// WatchRow is one watchlist line on the dashboard.
type WatchRow struct {
	Symbol      string    `json:"symbol"`
	Last        *float64  `json:"last"`
	Change1D    *float64  `json:"change_1d"`
	Change1W    *float64  `json:"change_1w"`
	Change1M    *float64  `json:"change_1m"`
	High52w     *float64  `json:"high_52w"`
	Low52w      *float64  `json:"low_52w"`
	RangePos    *float64  `json:"range_pos"`
	SigmaUSD    *float64  `json:"sigma_usd"`
	SigmaToHigh *float64  `json:"sigma_to_high"`
	SigmaToLow  *float64  `json:"sigma_to_low"`
	Alert       bool      `json:"alert"`
	Volume      *float64  `json:"volume"`
	VolumeText  string    `json:"volume_text,omitempty"`
	VolumeAvg20 *float64  `json:"volume_avg_20"`
	Sparkline   []float64 `json:"sparkline,omitempty"`
	Source      string    `json:"source,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// DashboardView is the top-level dashboard payload.
type DashboardView struct {
	SessionID     string     `json:"session_id"`
	Page          string     `json:"page"`
	Theme         string     `json:"theme"`
	ProviderMode  string     `json:"provider_mode"`
	Live          bool       `json:"live"`
	Cash          float64    `json:"cash"`
	CashText      string     `json:"cash_text"`
	HoldingsValue float64    `json:"holdings_value"`
	TotalValue    float64    `json:"total_value"`
	TotalText     string     `json:"total_text"`
	PnL           float64    `json:"pnl"`
	UnknownPrices int        `json:"unknown_prices"`
	Watchlist     []WatchRow `json:"watchlist"`
	Diagnostics   []string   `json:"diagnostics,omitempty"`
	GeneratedAt   time.Time  `json:"generated_at"`
}

// RenderWatchlist builds the watchlist rows. Each symbol is independent: a
// failed fetch degrades that row and records a diagnostic, the batch
// continues.
func (s *Session) RenderWatchlist() []WatchRow {
	symbols := s.Watchlist()
	rows := make([]WatchRow, 0, len(symbols))
	for _, sym := range symbols {
		rows = append(rows, s.watchRow(sym))
	}
	return rows
}

func (s *Session) watchRow(symbol string) WatchRow {
	row := WatchRow{Symbol: symbol}

	bars, src, err := s.market.GetHistory(symbol, "1y", provider.GranDaily)
	if err != nil || len(bars) == 0 {
		row.Error = "history unavailable"
		s.addDiagnostic("%s: history unavailable: %v", symbol, err)
		return row
	}
	row.Source = src.String()

	closes := model.Closes(bars)
	last := closes[len(closes)-1]
	if q, qsrc, err := s.market.GetQuote(symbol); err == nil && q.Last > 0 {
		last = q.Last
		row.Source = qsrc.String()
	} else if err != nil {
		s.addDiagnostic("%s: quote unavailable, using last close: %v", symbol, err)
	}
	row.Last = opt(last)

	row.Change1D = optErr(stats.PctChangeFrom(closes, 1))
	row.Change1W = optErr(stats.PctChangeFrom(closes, 5))
	row.Change1M = optErr(stats.PctChangeFrom(closes, 21))

	if m, err := stats.Compute52w(closes, last); err == nil {
		row.High52w = opt(m.High)
		row.Low52w = opt(m.Low)
		row.RangePos = opt(m.RangePos)
		row.SigmaUSD = opt(m.SigmaUSD)
		row.SigmaToHigh = opt(m.SigmaToHigh)
		row.SigmaToLow = opt(m.SigmaToLow)
		row.Alert = (stats.Defined(m.SigmaToHigh) && stats.ExtremeSigma(m.SigmaToHigh)) ||
			(stats.Defined(m.SigmaToLow) && stats.ExtremeSigma(m.SigmaToLow))
	}

	if kl, err := stats.ComputeKeyLevels(bars); err == nil {
		row.Volume = opt(kl.VolumeLast)
		row.VolumeText = humanize.SIWithDigits(kl.VolumeLast, 2, "")
		row.VolumeAvg20 = opt(kl.VolumeAvg20)
	}

	spark := closes
	if len(spark) > 60 {
		spark = spark[len(spark)-60:]
	}
	row.Sparkline = append([]float64(nil), spark...)
	return row
}

// RenderDashboard is the full render pass: account totals plus watchlist.
// The scheduler runs this on every live tick.
func (s *Session) RenderDashboard() DashboardView {
	s.resetDiagnostics()

	view := DashboardView{
		SessionID:    s.ID(),
		Page:         s.Page(),
		Theme:        s.Theme(),
		ProviderMode: s.ProviderMode(),
		Live:         s.Live(),
		GeneratedAt:  time.Now().UTC(),
	}

	cash, err := s.store.Cash()
	if err != nil {
		s.addDiagnostic("account: %v", err)
	}
	initial, err := s.store.InitialCash()
	if err != nil {
		s.addDiagnostic("account: %v", err)
	}

	trades, err := s.store.ListTrades("")
	if err != nil {
		s.addDiagnostic("ledger: %v", err)
	}
	holdings := portfolio.Holdings(portfolio.Positions(trades), s.quotePrice)
	sum := portfolio.Summarize(holdings, cash, initial)

	view.Cash = sum.Cash
	view.CashText = "$" + humanize.CommafWithDigits(sum.Cash, 2)
	view.HoldingsValue = sum.HoldingsValue
	view.TotalValue = sum.TotalValue
	view.TotalText = "$" + humanize.CommafWithDigits(sum.TotalValue, 2)
	view.PnL = sum.PnL
	view.UnknownPrices = sum.UnknownPrices
	view.Watchlist = s.RenderWatchlist()
	view.Diagnostics = s.Diagnostics()
	return view
}

func (s *Session) quotePrice(symbol string) (float64, error) {
	q, _, err := s.market.GetQuote(symbol)
	if err != nil {
		s.addDiagnostic("%s: quote unavailable: %v", symbol, err)
		return 0, err
	}
	return q.Last, nil
}

// WindowStats projects slice statistics for a visible index range.
type WindowStats struct {
	Mean         float64  `json:"mean"`
	Std          *float64 `json:"std"`
	StdPct       *float64 `json:"std_pct"`
	High         float64  `json:"high"`
	Low          float64  `json:"low"`
	N             int      `json:"n"`
	CurrentSigma  *float64 `json:"current_sigma"`
	SigmaFromHigh *float64 `json:"sigma_from_high"`
	SigmaFromLow  *float64 `json:"sigma_from_low"`
	SigmaAlert    bool     `json:"sigma_alert"`
}

// KeyLevelsView is the reference-level block on the symbol page.
type KeyLevelsView struct {
	DayHigh     float64  `json:"day_high"`
	DayLow      float64  `json:"day_low"`
	WeekHigh    float64  `json:"week_high"`
	WeekLow     float64  `json:"week_low"`
	High52w     float64  `json:"high_52w"`
	Low52w      float64  `json:"low_52w"`
	VolumeLast  float64  `json:"volume_last"`
	VolumeText  string   `json:"volume_text"`
	VolumeAvg20 *float64 `json:"volume_avg_20"`
}

// HistoryView is the symbol detail payload: bars, overlays and statistics.
type HistoryView struct {
	Symbol      string         `json:"symbol"`
	Window      string         `json:"window"`
	Granularity string         `json:"granularity"`
	Source      string         `json:"source"`
	Bars        []model.Bar    `json:"bars"`
	SMA20       []*float64     `json:"sma_20,omitempty"`
	SMA50       []*float64     `json:"sma_50,omitempty"`
	Stats       *WindowStats   `json:"stats,omitempty"`
	KeyLevels   *KeyLevelsView `json:"key_levels,omitempty"`
}

// RenderHistory fetches bars for the selected symbol and derives the chart
// overlays and statistics blocks. SMA overlays are daily-only.
func (s *Session) RenderHistory(symbol string, window provider.Window, granularity provider.Granularity) (HistoryView, error) {
	symbol = provider.NormalizeSymbol(symbol)
	bars, src, err := s.market.GetHistory(symbol, window, granularity)
	if err != nil {
		return HistoryView{}, err
	}

	view := HistoryView{
		Symbol:      symbol,
		Window:      string(window),
		Granularity: string(granularity),
		Source:      src.String(),
		Bars:        bars,
	}

	closes := model.Closes(bars)
	if granularity == provider.GranDaily {
		view.SMA20 = optSeries(stats.SMASeries(closes, 20))
		view.SMA50 = optSeries(stats.SMASeries(closes, 50))
		if kl, err := stats.ComputeKeyLevels(bars); err == nil {
			view.KeyLevels = &KeyLevelsView{
				DayHigh:     kl.DayHigh,
				DayLow:      kl.DayLow,
				WeekHigh:    kl.WeekHigh,
				WeekLow:     kl.WeekLow,
				High52w:     kl.High52w,
				Low52w:      kl.Low52w,
				VolumeLast:  kl.VolumeLast,
				VolumeText:  humanize.SIWithDigits(kl.VolumeLast, 2, ""),
				VolumeAvg20: opt(kl.VolumeAvg20),
			}
		}
	}
	if ws, err := s.windowStats(bars, 0, len(bars)-1); err == nil {
		view.Stats = &ws
	}
	return view, nil
}

// RenderWindowStats computes statistics for a sub-range of the visible bars,
// as selected on the chart. Indices are clamped the same way the slice
// statistics are.
func (s *Session) RenderWindowStats(symbol string, window provider.Window, granularity provider.Granularity, start, end int) (WindowStats, error) {
	bars, _, err := s.market.GetHistory(provider.NormalizeSymbol(symbol), window, granularity)
	if err != nil {
		return WindowStats{}, err
	}
	if end < 0 {
		end = len(bars) - 1
	}
	return s.windowStats(bars, start, end)
}

func (s *Session) windowStats(bars []model.Bar, start, end int) (WindowStats, error) {
	sl, err := stats.ComputeSliceStats(bars, start, end)
	if err != nil {
		return WindowStats{}, err
	}
	ws := WindowStats{
		Mean:   sl.Mean,
		Std:    opt(sl.Std),
		StdPct: opt(sl.StdPct),
		High:   sl.High,
		Low:    sl.Low,
		N:      sl.N,
	}
	price := bars[len(bars)-1].Close
	if sigma, err := stats.CurrentSigma(price, sl); err == nil {
		ws.CurrentSigma = opt(sigma)
		ws.SigmaAlert = stats.ExtremeSigma(sigma)
	}
	if v, err := stats.SigmaFromHigh(price, sl); err == nil {
		ws.SigmaFromHigh = opt(v)
	}
	if v, err := stats.SigmaFromLow(price, sl); err == nil {
		ws.SigmaFromLow = opt(v)
	}
	return ws, nil
}

func optSeries(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i, x := range xs {
		out[i] = opt(x)
	}
	return out
}

// HoldingRow is one line of the portfolio table.
type HoldingRow struct {
	Symbol        string   `json:"symbol"`
	Quantity      float64  `json:"quantity"`
	AvgCost       float64  `json:"avg_cost"`
	Last          *float64 `json:"last"`
	MarketValue   *float64 `json:"market_value"`
	MarketText    string   `json:"market_text,omitempty"`
	UnrealizedPnL *float64 `json:"unrealized_pnl"`
}

// HoldingsView is the portfolio page payload.
type HoldingsView struct {
	Rows          []HoldingRow `json:"rows"`
	Cash          float64      `json:"cash"`
	HoldingsValue float64      `json:"holdings_value"`
	TotalValue    float64      `json:"total_value"`
	PnL           float64      `json:"pnl"`
	UnknownPrices int          `json:"unknown_prices"`
	Diagnostics   []string     `json:"diagnostics,omitempty"`
}

// RenderHoldings builds the portfolio table with current quotes.
func (s *Session) RenderHoldings() (HoldingsView, error) {
	s.resetDiagnostics()

	trades, err := s.store.ListTrades("")
	if err != nil {
		return HoldingsView{}, err
	}
	cash, err := s.store.Cash()
	if err != nil {
		return HoldingsView{}, err
	}
	initial, err := s.store.InitialCash()
	if err != nil {
		return HoldingsView{}, err
	}

	holdings := portfolio.Holdings(portfolio.Positions(trades), s.quotePrice)
	sum := portfolio.Summarize(holdings, cash, initial)

	view := HoldingsView{
		Rows:          make([]HoldingRow, 0, len(holdings)),
		Cash:          sum.Cash,
		HoldingsValue: sum.HoldingsValue,
		TotalValue:    sum.TotalValue,
		PnL:           sum.PnL,
		UnknownPrices: sum.UnknownPrices,
	}
	for _, h := range holdings {
		row := HoldingRow{Symbol: h.Symbol, Quantity: h.Quantity, AvgCost: h.AvgCost}
		if h.PriceKnown {
			row.Last = opt(h.Last)
			row.MarketValue = opt(h.MarketValue)
			row.MarketText = "$" + humanize.CommafWithDigits(h.MarketValue, 2)
			row.UnrealizedPnL = opt(h.UnrealizedPnL)
		}
		view.Rows = append(view.Rows, row)
	}
	view.Diagnostics = s.Diagnostics()
	return view, nil
}

// AnalyticsView is the account analytics payload: equity curve against the
// benchmark plus drawdown and summary risk figures.
type AnalyticsView struct {
	Dates       []time.Time `json:"dates"`
	Equity      []float64   `json:"equity"`
	Benchmark   []*float64  `json:"benchmark"`
	Drawdown    []float64   `json:"drawdown"`
	MaxDrawdown *float64    `json:"max_drawdown"`
	AnnualVol   *float64    `json:"annual_vol"`
	Sharpe      *float64    `json:"sharpe"`
	BenchSymbol string      `json:"bench_symbol"`
	Diagnostics []string    `json:"diagnostics,omitempty"`
}

// RenderAnalytics reconstructs the equity curve from the ledger, aligned with
// a buy-and-hold benchmark.
func (s *Session) RenderAnalytics() (AnalyticsView, error) {
	s.resetDiagnostics()

	trades, err := s.store.ListTrades("")
	if err != nil {
		return AnalyticsView{}, err
	}
	initial, err := s.store.InitialCash()
	if err != nil {
		return AnalyticsView{}, err
	}

	// Size the lookback from the first trade so an old ledger is not
	// truncated to a fixed window.
	window := provider.Window("1y")
	if len(trades) > 0 {
		days := int(time.Since(trades[0].Time).Hours()/24) + 1
		if days < 5 {
			days = 5
		}
		window = provider.WindowForDays(days)
	}

	symbols := make(map[string]struct{})
	for _, t := range trades {
		symbols[t.Symbol] = struct{}{}
	}
	ownCloses := make(map[string][]model.Bar, len(symbols))
	for sym := range symbols {
		bars, _, err := s.market.GetHistory(sym, window, provider.GranDaily)
		if err != nil {
			s.addDiagnostic("%s: history unavailable for equity curve: %v", sym, err)
			continue
		}
		ownCloses[sym] = bars
	}

	s.mu.Lock()
	bench := s.benchmark
	s.mu.Unlock()
	var benchBars []model.Bar
	if bench != "" {
		bars, _, err := s.market.GetHistory(bench, window, provider.GranDaily)
		if err != nil {
			s.addDiagnostic("%s: benchmark history unavailable: %v", bench, err)
		} else {
			benchBars = bars
		}
	}

	equity, benchmark := portfolio.EquityCurveVsBenchmark(trades, ownCloses, benchBars, initial)
	view := AnalyticsView{BenchSymbol: bench}
	for _, p := range equity {
		view.Dates = append(view.Dates, p.Date)
		view.Equity = append(view.Equity, p.Equity)
	}
	for _, b := range benchmark {
		view.Benchmark = append(view.Benchmark, opt(b))
	}
	view.Drawdown = stats.DrawdownSeries(view.Equity)
	view.MaxDrawdown = optErr(stats.MaxDrawdown(view.Equity))
	view.AnnualVol = optErr(stats.AnnualizedVol(view.Equity))
	view.Sharpe = optErr(stats.Sharpe(view.Equity))
	view.Diagnostics = s.Diagnostics()
	return view, nil
}

// SettingsView mirrors the mutable session and account state.
type SettingsView struct {
	SessionID    string   `json:"session_id"`
	Page         string   `json:"page"`
	Symbol       string   `json:"symbol"`
	Watchlist    []string `json:"watchlist"`
	Benchmark    string   `json:"benchmark"`
	ProviderMode string   `json:"provider_mode"`
	Live         bool     `json:"live"`
	IntervalSec  int      `json:"interval_sec"`
	Theme        string   `json:"theme"`
	InitialCash  float64  `json:"initial_cash"`
}

// RenderSettings reports the current settings.
func (s *Session) RenderSettings() (SettingsView, error) {
	initial, err := s.store.InitialCash()
	if err != nil {
		return SettingsView{}, err
	}
	s.mu.Lock()
	bench := s.benchmark
	s.mu.Unlock()
	return SettingsView{
		SessionID:    s.ID(),
		Page:         s.Page(),
		Symbol:       s.Symbol(),
		Watchlist:    s.Watchlist(),
		Benchmark:    bench,
		ProviderMode: s.ProviderMode(),
		Live:         s.Live(),
		IntervalSec:  int(s.Interval() / time.Second),
		Theme:        s.Theme(),
		InitialCash:  initial,
	}, nil
}
