// Package synthetic holds the two placeholder-data paths of the engine: the
// longer-horizon return estimator and the synthetic series generator used
// when no recorded data is resolvable at all.
package synthetic

import (
	"github.com/guregu/null/v6"

	"index-returns/internal/period"
)

// Estimate carries derived long-horizon returns. Invalid fields mean no estimate.
type Estimate struct {
	FiveYear  null.Float
	SevenYear null.Float
	TenYear   null.Float
}

// For returns the estimate for a period; 1Y and 3Y are never estimated.
func (e Estimate) For(p period.Period) null.Float {
	switch p {
	case period.FiveYear:
		return e.FiveYear
	case period.SevenYear:
		return e.SevenYear
	case period.TenYear:
		return e.TenYear
	default:
		return null.Float{}
	}
}

// Estimator derives 5Y/7Y/10Y returns from 1Y/3Y returns.
type Estimator interface {
	Estimate(oneYear, threeYear null.Float) Estimate
}

// Heuristic is the fixed multiplicative chain. It is not a statistical model.
type Heuristic struct{}

// Estimate chains 5Y from 3Y (or 1Y), 7Y from 5Y (or 1Y) and 10Y from 7Y
// (or 1Y). With neither input every output is invalid.
func (Heuristic) Estimate(oneYear, threeYear null.Float) Estimate {
	var e Estimate
	switch {
	case threeYear.Valid:
		e.FiveYear = null.FloatFrom(threeYear.Float64 * 1.1)
	case oneYear.Valid:
		e.FiveYear = null.FloatFrom(oneYear.Float64 * 1.2)
	}
	switch {
	case e.FiveYear.Valid:
		e.SevenYear = null.FloatFrom(e.FiveYear.Float64 * 1.05)
	case oneYear.Valid:
		e.SevenYear = null.FloatFrom(oneYear.Float64 * 1.3)
	}
	switch {
	case e.SevenYear.Valid:
		e.TenYear = null.FloatFrom(e.SevenYear.Float64 * 1.1)
	case oneYear.Valid:
		e.TenYear = null.FloatFrom(oneYear.Float64 * 1.5)
	}
	return e
}

var _ Estimator = Heuristic{}
