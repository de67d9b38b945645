package provider

import (
	"errors"
	"time"

	"tradeview/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price      float64
	Bars       []model.Bar
	Err        error
	Calls      int
	LastWindow Window
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchHistory(symbol string, window Window, granularity Granularity) ([]model.Bar, error) {
	m.Calls++
	m.LastWindow = window
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	return GenerateBars(m.Price, window.Days()), nil
}

func (m *MockFetcher) FetchQuote(symbol string) (model.Quote, error) {
	m.Calls++
	if m.Err != nil {
		return model.Quote{}, m.Err
	}
	if m.Price <= 0 {
		return model.Quote{}, errors.New("mock: no price configured")
	}
	return model.Quote{Symbol: symbol, Last: m.Price, Time: time.Now()}, nil
}

// GenerateBars produces a gently trending daily series around basePrice.
func GenerateBars(basePrice float64, count int) []model.Bar {
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Time:   time.Now().AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
