package provider

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradeview/internal/model"
)

// StooqFetcher implements Fetcher using the Stooq daily CSV endpoint. Stooq
// serves daily bars only; intraday requests are rejected.
type StooqFetcher struct {
	Client *http.Client
}

// NewStooqFetcher creates a Stooq fetcher with a bounded timeout.
func NewStooqFetcher(proxyURL string, timeout time.Duration) *StooqFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &StooqFetcher{
		Client: &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (f *StooqFetcher) Name() string { return "stooq" }

// stooqSymbol maps a plain US ticker to Stooq's market-suffixed form.
func stooqSymbol(symbol string) string {
	s := strings.ToLower(symbol)
	if !strings.Contains(s, ".") {
		s += ".us"
	}
	return s
}

func (f *StooqFetcher) FetchHistory(symbol string, window Window, granularity Granularity) ([]model.Bar, error) {
	if granularity.Intraday() {
		return nil, fmt.Errorf("stooq: daily bars only, %s not supported", granularity)
	}

	u := fmt.Sprintf("https://stooq.com/q/d/l/?s=%s&i=d", url.QueryEscape(stooqSymbol(symbol)))
	resp, err := f.Client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("stooq fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stooq: status %d", resp.StatusCode)
	}

	rd := csv.NewReader(resp.Body)
	rd.FieldsPerRecord = -1
	records, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("stooq parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("stooq: no data returned")
	}

	// Header: Date,Open,High,Low,Close,Volume
	bars := make([]model.Bar, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 5 {
			continue
		}
		ts, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}
		o, _ := strconv.ParseFloat(rec[1], 64)
		h, _ := strconv.ParseFloat(rec[2], 64)
		l, _ := strconv.ParseFloat(rec[3], 64)
		c, err := strconv.ParseFloat(rec[4], 64)
		if err != nil || c == 0 {
			continue
		}
		var v float64
		if len(rec) > 5 {
			v, _ = strconv.ParseFloat(rec[5], 64)
		}
		bars = append(bars, model.Bar{Time: ts, Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("stooq: no usable bars")
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	// Trim to the requested lookback, keeping a small floor for chart context.
	keep := window.Days()
	if keep < 5 {
		keep = 5
	}
	if len(bars) > keep {
		bars = bars[len(bars)-keep:]
	}
	return bars, nil
}

func (f *StooqFetcher) FetchQuote(symbol string) (model.Quote, error) {
	bars, err := f.FetchHistory(symbol, "1mo", GranDaily)
	if err != nil {
		return model.Quote{}, err
	}
	last := bars[len(bars)-1]
	return model.Quote{Symbol: symbol, Last: last.Close, Time: last.Time}, nil
}
