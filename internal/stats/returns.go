// Package stats holds the pure statistical helpers behind the dashboard:
// sigma-distance metrics, slice statistics, drawdown and equity-curve
// computation. Everything here is deterministic and side-effect free.
//
// Metrics that cannot be computed (too few observations, zero variance) are
// reported through ErrNotComputable or ErrInsufficientData, never coerced to
// zero: a zero would misread as a real value downstream.
package stats

import (
	"errors"
	"math"
)

// ErrNotComputable marks a statistic with too few observations or zero
// variance to be meaningful.
var ErrNotComputable = errors.New("statistic not computable")

// ErrInsufficientData marks an empty or unusable input selection.
var ErrInsufficientData = errors.New("insufficient data")

// SigmaAlertThreshold is the |sigma| magnitude beyond which a reading is
// flagged for the UI. The flag is a classification only; values are unchanged.
const SigmaAlertThreshold = 3.0

// ExtremeSigma reports whether a sigma distance should carry an alert flag.
func ExtremeSigma(sigma float64) bool {
	return math.Abs(sigma) > SigmaAlertThreshold
}

// Returns computes daily percentage returns from a close series. The result
// has len(closes)-1 elements; a base of zero drops that return.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if math.Abs(closes[i-1]) < 1e-12 {
			continue
		}
		rets = append(rets, closes[i]/closes[i-1]-1)
	}
	return rets
}

// Mean computes the arithmetic mean.
func Mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), nil
}

// Stdev computes the population standard deviation. Fewer than 2 observations
// is not computable rather than zero.
func Stdev(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, ErrNotComputable
	}
	mean, _ := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs))), nil
}

// SigmaDistance expresses the distance from last to level in units of
// one-sigma dollar moves, where sigmaUSD = last * stdev(returns). Returns are
// expected to cover up to the most recent 252 sessions; fewer is fine as long
// as at least 2 observations exist and volatility is non-zero.
func SigmaDistance(last, level float64, returns []float64) (float64, error) {
	sd, err := Stdev(returns)
	if err != nil {
		return 0, err
	}
	sigmaUSD := last * sd
	if sigmaUSD <= 0 {
		return 0, ErrNotComputable
	}
	return (last - level) / sigmaUSD, nil
}

// PctChangeFrom returns the change over the most recent `periods` bars:
// last/closes[len-periods-1] - 1. Counts trading bars, not calendar days.
func PctChangeFrom(closes []float64, periods int) (float64, error) {
	if periods <= 0 || len(closes) < periods+1 {
		return 0, ErrInsufficientData
	}
	base := closes[len(closes)-periods-1]
	if math.Abs(base) < 1e-12 {
		return 0, ErrNotComputable
	}
	return closes[len(closes)-1]/base - 1, nil
}

// SMA computes the simple moving average of the last `period` values.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period), nil
}

// SMASeries computes a rolling SMA aligned with closes; positions with fewer
// than `period` bars of history are NaN.
func SMASeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
