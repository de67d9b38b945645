package provider

import (
	"errors"
	"fmt"
	"log"
	"time"

	"tradeview/internal/cache"
	"tradeview/internal/config"
	"tradeview/internal/model"
)

// ErrUnavailable is returned when no source could serve a request. It marks a
// degraded per-symbol result, not a fatal condition; callers render a
// placeholder and move on.
var ErrUnavailable = errors.New("market data unavailable")

// TTLs per data class. Quotes must feel live, history changes slowly, and the
// fallback source is rate-limited so its results are cached the longest.
const (
	quoteTTL    = 2 * time.Second
	historyTTL  = 20 * time.Second
	intradayTTL = 10 * time.Second
	fallbackTTL = 5 * time.Minute
)

// SourceInfo describes which source served a result.
type SourceInfo struct {
	Name     string
	Fallback bool
}

func (s SourceInfo) String() string {
	if s.Fallback {
		return s.Name + " (daily fallback)"
	}
	return s.Name
}

type historyResult struct {
	bars   []model.Bar
	source SourceInfo
}

type quoteResult struct {
	quote  model.Quote
	source SourceInfo
}

// Adapter fronts a primary and a fallback Fetcher with a TTL cache. The
// fallback serves daily bars only; intraday requests that the primary cannot
// answer surface ErrUnavailable instead of silently downgrading granularity.
type Adapter struct {
	primary  Fetcher
	fallback Fetcher
	cache    *cache.Store
	mode     string
}

// NewAdapter creates an Adapter. The cache store is injected so callers own
// its lifecycle (explicit clear, shared across adapters in tests).
func NewAdapter(primary, fallback Fetcher, store *cache.Store, mode string) *Adapter {
	if mode == "" {
		mode = config.ModeAuto
	}
	return &Adapter{primary: primary, fallback: fallback, cache: store, mode: mode}
}

// SetMode switches the provider mode (auto, primary-only, fallback-only).
func (a *Adapter) SetMode(mode string) { a.mode = mode }

// Mode returns the active provider mode.
func (a *Adapter) Mode() string { return a.mode }

// ClearCache drops all cached provider results.
func (a *Adapter) ClearCache() { a.cache.Clear() }

// GetHistory returns bars for symbol over the window at the given granularity,
// serving from cache when fresh.
func (a *Adapter) GetHistory(symbol string, window Window, granularity Granularity) ([]model.Bar, SourceInfo, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, SourceInfo{}, fmt.Errorf("empty symbol")
	}
	if !granularity.Valid() {
		return nil, SourceInfo{}, fmt.Errorf("unsupported granularity %q", granularity)
	}

	kind := cache.KindHistory
	ttl := historyTTL
	if granularity.Intraday() {
		kind = cache.KindIntraday
		ttl = intradayTTL
	}
	key := cache.Key{Symbol: symbol, Window: string(window), Granularity: string(granularity), Kind: kind}
	if v, ok := a.cache.Get(key); ok {
		r := v.(historyResult)
		return r.bars, r.source, nil
	}

	if a.mode != config.ModeFallbackOnly {
		bars, err := a.primary.FetchHistory(symbol, window, granularity)
		if err == nil && len(bars) > 0 {
			src := SourceInfo{Name: a.primary.Name()}
			a.cache.Set(key, historyResult{bars: bars, source: src}, ttl)
			return bars, src, nil
		}
		if err != nil {
			log.Printf("[WARN] %s history %s: %v", a.primary.Name(), symbol, err)
		}
		if a.mode == config.ModePrimaryOnly {
			return nil, SourceInfo{}, fmt.Errorf("%s: %w", symbol, ErrUnavailable)
		}
	}

	// Fallback path: daily only. Intraday must not be downgraded to daily bars.
	if granularity.Intraday() {
		return nil, SourceInfo{}, fmt.Errorf("%s: no intraday data, fallback serves daily bars only: %w", symbol, ErrUnavailable)
	}

	fkey := cache.Key{Symbol: symbol, Window: string(window), Granularity: string(granularity), Kind: cache.KindFallbackDaily}
	if v, ok := a.cache.Get(fkey); ok {
		r := v.(historyResult)
		return r.bars, r.source, nil
	}
	bars, err := a.fallback.FetchHistory(symbol, window, granularity)
	if err != nil || len(bars) == 0 {
		if err != nil {
			log.Printf("[WARN] %s history %s: %v", a.fallback.Name(), symbol, err)
		}
		return nil, SourceInfo{}, fmt.Errorf("%s: %w", symbol, ErrUnavailable)
	}
	src := SourceInfo{Name: a.fallback.Name(), Fallback: true}
	a.cache.Set(fkey, historyResult{bars: bars, source: src}, fallbackTTL)
	return bars, src, nil
}

// GetQuote returns the latest indicative quote for symbol.
func (a *Adapter) GetQuote(symbol string) (model.Quote, SourceInfo, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return model.Quote{}, SourceInfo{}, fmt.Errorf("empty symbol")
	}

	key := cache.Key{Symbol: symbol, Kind: cache.KindQuote}
	if v, ok := a.cache.Get(key); ok {
		r := v.(quoteResult)
		return r.quote, r.source, nil
	}

	if a.mode != config.ModeFallbackOnly {
		q, err := a.primary.FetchQuote(symbol)
		if err == nil && q.Last > 0 {
			src := SourceInfo{Name: a.primary.Name()}
			a.cache.Set(key, quoteResult{quote: q, source: src}, quoteTTL)
			return q, src, nil
		}
		if err != nil {
			log.Printf("[WARN] %s quote %s: %v", a.primary.Name(), symbol, err)
		}
		if a.mode == config.ModePrimaryOnly {
			return model.Quote{}, SourceInfo{}, fmt.Errorf("%s: %w", symbol, ErrUnavailable)
		}
	}

	q, err := a.fallback.FetchQuote(symbol)
	if err != nil || q.Last <= 0 {
		if err != nil {
			log.Printf("[WARN] %s quote %s: %v", a.fallback.Name(), symbol, err)
		}
		return model.Quote{}, SourceInfo{}, fmt.Errorf("%s: %w", symbol, ErrUnavailable)
	}
	src := SourceInfo{Name: a.fallback.Name(), Fallback: true}
	// A fallback quote is just the last daily close; keep it for the fallback
	// TTL so the rate-limited source is not hammered on every refresh tick.
	a.cache.Set(key, quoteResult{quote: q, source: src}, fallbackTTL)
	return q, src, nil
}
