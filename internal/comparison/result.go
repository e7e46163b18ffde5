package comparison

import (
	"fmt"
	"strings"

	"github.com/guregu/null/v6"

	"index-returns/internal/period"
	"index-returns/internal/table"
)

// Notice codes let callers show an informational banner instead of an error.
const (
	NoticeRangeSwapped     = "range_swapped"
	NoticeNearestDates     = "nearest_dates"
	NoticePaddedDates      = "padded_dates"
	NoticeLatestDates      = "latest_dates"
	NoticeEstimatedReturns = "estimated_returns"
	NoticeSyntheticData    = "synthetic_data"
)

// Notice flags a degraded but usable response.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the aligned series of one period. Every slice in Series has
// the same length as Dates.
type Result struct {
	Period    period.Period           `json:"period"`
	Dates     []table.ObservationDate `json:"dates"`
	Keys      []string                `json:"keys"`
	Series    map[string][]null.Float `json:"series"`
	Estimated []string                `json:"estimated,omitempty"`
	Synthetic bool                    `json:"synthetic"`
}

// Values returns the series for key, or nil when absent.
func (r *Result) Values(key string) []null.Float {
	if r == nil {
		return nil
	}
	return r.Series[key]
}

// Comparison holds a Result for every supported period.
type Comparison struct {
	Indices   []string  `json:"indices"`
	Benchmark string    `json:"benchmark"`
	Results   []*Result `json:"results"`
	Notices   []Notice  `json:"notices,omitempty"`
}

// Result returns the result for p.
func (c *Comparison) Result(p period.Period) *Result {
	for _, r := range c.Results {
		if r.Period == p {
			return r
		}
	}
	return nil
}

// Synthetic reports whether any period fell back to generated data.
func (c *Comparison) Synthetic() bool {
	for _, r := range c.Results {
		if r.Synthetic {
			return true
		}
	}
	return false
}

// AddNotice appends a notice unless one with the same code exists.
func (c *Comparison) AddNotice(code, format string, args ...any) {
	for _, n := range c.Notices {
		if n.Code == code {
			return
		}
	}
	c.Notices = append(c.Notices, Notice{Code: code, Message: fmt.Sprintf(format, args...)})
}

// AlphaKey names the excess-return series of index over benchmark.
func AlphaKey(index, benchmark string) string {
	return index + "_alpha_vs_" + benchmark
}

// IsAlphaKey reports whether key names an alpha series.
func IsAlphaKey(key string) bool {
	return strings.Contains(key, "_alpha_vs_")
}
