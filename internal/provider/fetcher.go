package provider

import (
	"strings"

	"tradeview/internal/model"
)

// Granularity is the bar interval requested from a data source.
type Granularity string

const (
	GranDaily  Granularity = "1d"
	GranHourly Granularity = "1h"
	Gran15Min  Granularity = "15m"
	Gran5Min   Granularity = "5m"
	Gran1Min   Granularity = "1m"
)

// Intraday reports whether the granularity is finer than daily.
func (g Granularity) Intraday() bool { return g != GranDaily }

// Valid reports whether the granularity is one of the supported intervals.
func (g Granularity) Valid() bool {
	switch g {
	case GranDaily, GranHourly, Gran15Min, Gran5Min, Gran1Min:
		return true
	}
	return false
}

// maxIntradayWindow is the deepest lookback each intraday interval supports
// at the primary source.
var maxIntradayWindow = map[Granularity]Window{
	Gran1Min:   "7d",
	Gran5Min:   "60d",
	Gran15Min:  "60d",
	GranHourly: "730d",
}

// Window is a lookback period such as "5d", "1mo" or "1y".
type Window string

// Days converts the window to an approximate calendar-day count.
func (w Window) Days() int {
	switch w {
	case "1d":
		return 1
	case "5d":
		return 5
	case "7d":
		return 7
	case "1mo":
		return 30
	case "60d":
		return 60
	case "3mo":
		return 90
	case "6mo":
		return 180
	case "1y":
		return 365
	case "2y", "730d":
		return 730
	case "5y":
		return 1825
	case "10y", "max":
		return 3650
	}
	return 365
}

// WindowForDays returns the smallest standard window covering the given
// number of calendar days.
func WindowForDays(days int) Window {
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	case days <= 730:
		return "2y"
	case days <= 1825:
		return "5y"
	}
	return "10y"
}

// NormalizeSymbol uppercases a ticker and strips whitespace.
func NormalizeSymbol(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "")
}

// Fetcher defines the interface for fetching market data from one source.
type Fetcher interface {
	FetchHistory(symbol string, window Window, granularity Granularity) ([]model.Bar, error)
	FetchQuote(symbol string) (model.Quote, error)
	Name() string
}
