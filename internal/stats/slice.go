package stats

import (
	"math"

	"tradeview/internal/model"
)

// SliceStats summarizes close prices over an inclusive index range. With a
// single observation the mean and range are defined but Std is NaN (a single
// point has no spread, and zero would be a lie).
type SliceStats struct {
	Mean   float64
	Std    float64
	StdPct float64 // Std as a fraction of Mean
	High   float64
	Low    float64
	N      int
}

// ComputeSliceStats computes statistics over bars[start..end] inclusive.
// Indices are clamped to the valid range and swapped if reversed. An empty
// bar sequence returns ErrInsufficientData.
func ComputeSliceStats(bars []model.Bar, start, end int) (SliceStats, error) {
	if len(bars) == 0 {
		return SliceStats{}, ErrInsufficientData
	}

	n := len(bars)
	start = clamp(start, 0, n-1)
	end = clamp(end, 0, n-1)
	if start > end {
		start, end = end, start
	}

	closes := model.Closes(bars[start : end+1])
	s := SliceStats{
		Std:    math.NaN(),
		StdPct: math.NaN(),
		High:   math.Inf(-1),
		Low:    math.Inf(1),
		N:      len(closes),
	}
	sum := 0.0
	for _, c := range closes {
		sum += c
		if c > s.High {
			s.High = c
		}
		if c < s.Low {
			s.Low = c
		}
	}
	s.Mean = sum / float64(s.N)

	if sd, err := Stdev(closes); err == nil {
		s.Std = sd
		if math.Abs(s.Mean) > 1e-12 {
			s.StdPct = sd / s.Mean
		}
	}
	return s, nil
}

// CurrentSigma measures how far price sits from the slice mean in units of
// the slice standard deviation.
func CurrentSigma(price float64, s SliceStats) (float64, error) {
	if s.N < 2 || math.IsNaN(s.Std) || s.Std <= 1e-12 {
		return 0, ErrNotComputable
	}
	return (price - s.Mean) / s.Std, nil
}

// SigmaFromHigh and SigmaFromLow measure distance from the slice extremes in
// slice-sigma units.
func SigmaFromHigh(price float64, s SliceStats) (float64, error) {
	if s.N < 2 || math.IsNaN(s.Std) || s.Std <= 1e-12 {
		return 0, ErrNotComputable
	}
	return (price - s.High) / s.Std, nil
}

func SigmaFromLow(price float64, s SliceStats) (float64, error) {
	if s.N < 2 || math.IsNaN(s.Std) || s.Std <= 1e-12 {
		return 0, ErrNotComputable
	}
	return (price - s.Low) / s.Std, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
