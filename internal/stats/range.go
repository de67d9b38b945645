package stats

import (
	"math"

	"tradeview/internal/model"
)

// Metrics52w bundles the 52-week range and sigma-distance readings for one
// symbol. Fields that could not be computed are NaN; use Defined before
// rendering. (NaN rather than zero so a missing volatility can never be
// mistaken for a flat one.)
type Metrics52w struct {
	Last        float64
	High        float64
	Low         float64
	RangePos    float64 // (last-low)/(high-low), clipped to 0..1
	SigmaPct    float64 // stdev of daily pct returns over <=252 sessions
	SigmaUSD    float64 // last * SigmaPct
	SigmaToHigh float64
	SigmaToLow  float64
	PctFromHigh float64
	PctFromLow  float64
}

// Defined reports whether a metric value is usable.
func Defined(v float64) bool { return !math.IsNaN(v) }

// Compute52w derives the 52-week metrics from a daily close series and the
// latest price. Works on whatever history is available: short series simply
// leave the volatility-derived fields undefined.
func Compute52w(closes []float64, last float64) (Metrics52w, error) {
	if len(closes) == 0 {
		return Metrics52w{}, ErrInsufficientData
	}

	window := closes
	if len(window) > 252 {
		window = window[len(window)-252:]
	}
	if last <= 0 {
		last = closes[len(closes)-1]
	}

	m := Metrics52w{
		Last:        last,
		High:        math.Inf(-1),
		Low:         math.Inf(1),
		RangePos:    math.NaN(),
		SigmaPct:    math.NaN(),
		SigmaUSD:    math.NaN(),
		SigmaToHigh: math.NaN(),
		SigmaToLow:  math.NaN(),
		PctFromHigh: math.NaN(),
		PctFromLow:  math.NaN(),
	}
	for _, c := range window {
		if c > m.High {
			m.High = c
		}
		if c < m.Low {
			m.Low = c
		}
	}

	if math.Abs(m.High) > 1e-12 {
		m.PctFromHigh = last/m.High - 1
	}
	if math.Abs(m.Low) > 1e-12 {
		m.PctFromLow = last/m.Low - 1
	}
	if denom := m.High - m.Low; math.Abs(denom) > 1e-12 {
		pos := (last - m.Low) / denom
		m.RangePos = math.Min(1, math.Max(0, pos))
	}

	if sd, err := Stdev(Returns(window)); err == nil && sd > 0 {
		m.SigmaPct = sd
		m.SigmaUSD = last * sd
		if m.SigmaUSD > 0 {
			m.SigmaToHigh = (last - m.High) / m.SigmaUSD
			m.SigmaToLow = (last - m.Low) / m.SigmaUSD
		}
	}
	return m, nil
}

// KeyLevels are the traditional reference levels for one symbol.
type KeyLevels struct {
	DayHigh     float64
	DayLow      float64
	WeekHigh    float64 // last 5 bars
	WeekLow     float64
	High52w     float64
	Low52w      float64
	VolumeLast  float64
	VolumeAvg20 float64 // NaN with fewer than 20 bars
}

// ComputeKeyLevels scans a daily bar sequence for day, week and 52-week
// high/low plus volume context.
func ComputeKeyLevels(bars []model.Bar) (KeyLevels, error) {
	if len(bars) == 0 {
		return KeyLevels{}, ErrInsufficientData
	}
	kl := KeyLevels{VolumeAvg20: math.NaN()}

	last := bars[len(bars)-1]
	kl.DayHigh, kl.DayLow = last.High, last.Low
	kl.VolumeLast = last.Volume

	scan := func(n int) (hi, lo float64) {
		start := len(bars) - n
		if start < 0 {
			start = 0
		}
		hi, lo = math.Inf(-1), math.Inf(1)
		for _, b := range bars[start:] {
			if b.High > hi {
				hi = b.High
			}
			if b.Low < lo {
				lo = b.Low
			}
		}
		return hi, lo
	}
	kl.WeekHigh, kl.WeekLow = scan(5)
	kl.High52w, kl.Low52w = scan(252)

	volumes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}
	if avg, err := SMA(volumes, 20); err == nil {
		kl.VolumeAvg20 = avg
	}
	return kl, nil
}
