// Package stats summarises aligned return series.
package stats

import (
	"math"
	"slices"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"index-returns/internal/period"
)

// Distribution holds the share of valid values, in percent, per return bucket.
type Distribution struct {
	Negative       float64 `json:"lt0"`
	ZeroToEight    float64 `json:"0to8"`
	EightToTwelve  float64 `json:"8to12"`
	TwelveToTwenty float64 `json:"12to20"`
	TwentyPlus     float64 `json:"gte20"`
}

// Sum adds the bucket percentages.
func (d Distribution) Sum() float64 {
	return d.Negative + d.ZeroToEight + d.EightToTwelve + d.TwelveToTwenty + d.TwentyPlus
}

// Statistics summarises the valid values of one index for one period.
type Statistics struct {
	Count        int          `json:"count"`
	Min          float64      `json:"min"`
	Median       float64      `json:"median"`
	Max          float64      `json:"max"`
	StdDev       float64      `json:"stdDev"`
	Distribution Distribution `json:"distribution"`
}

// Aggregate computes Statistics over the non-null values. With no valid
// value every field is zero.
func Aggregate(values []null.Float) Statistics {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if v.Valid && !math.IsNaN(v.Float64) {
			valid = append(valid, v.Float64)
		}
	}
	if len(valid) == 0 {
		return Statistics{}
	}
	slices.Sort(valid)

	return Statistics{
		Count:        len(valid),
		Min:          floats.Min(valid),
		Median:       median(valid),
		Max:          floats.Max(valid),
		StdDev:       stat.PopStdDev(valid, nil),
		Distribution: distribute(valid),
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func distribute(values []float64) Distribution {
	var counts [5]int
	for _, v := range values {
		counts[bucket(v)]++
	}
	total := float64(len(values))
	pct := func(c int) float64 { return float64(c) / total * 100 }
	return Distribution{
		Negative:       pct(counts[0]),
		ZeroToEight:    pct(counts[1]),
		EightToTwelve:  pct(counts[2]),
		TwelveToTwenty: pct(counts[3]),
		TwentyPlus:     pct(counts[4]),
	}
}

// bucket maps a value onto the half-open ranges <0, [0,8), [8,12), [12,20), >=20.
func bucket(v float64) int {
	switch {
	case v < 0:
		return 0
	case v < 8:
		return 1
	case v < 12:
		return 2
	case v < 20:
		return 3
	default:
		return 4
	}
}

// DefaultRiskFreeRate is the annual risk-free rate, in percent, used when
// configuration does not set one.
const DefaultRiskFreeRate = 4.25

// SharpeRatio is a Sharpe-like score for a single period return. The
// volatility is not measured but estimated as |return| scaled by the
// period's multiplier, floored at 1.
func SharpeRatio(periodReturn float64, p period.Period, riskFreeRate float64) float64 {
	stdDev := math.Max(math.Abs(periodReturn)*p.VolatilityMultiplier(), 1)
	return (periodReturn - riskFreeRate) / stdDev
}
