package period

import (
	"fmt"
	"strconv"
	"strings"
)

// Period is a rolling-return horizon.
type Period int

const (
	OneYear Period = iota
	ThreeYear
	FiveYear
	SevenYear
	TenYear
)

// All lists every supported period in ascending horizon order.
var All = []Period{OneYear, ThreeYear, FiveYear, SevenYear, TenYear}

// Years returns the horizon length in years.
func (p Period) Years() int {
	switch p {
	case OneYear:
		return 1
	case ThreeYear:
		return 3
	case FiveYear:
		return 5
	case SevenYear:
		return 7
	case TenYear:
		return 10
	default:
		return 0
	}
}

func (p Period) String() string {
	if p.Years() == 0 {
		return "unknown"
	}
	return strconv.Itoa(p.Years()) + "Y"
}

// ColumnSuffix is the suffix the returns table appends to an index name, e.g. "(5Yr)".
func (p Period) ColumnSuffix() string {
	return fmt.Sprintf("(%dYr)", p.Years())
}

// VolatilityMultiplier scales an absolute period return into a rough standard deviation estimate.
func (p Period) VolatilityMultiplier() float64 {
	switch p {
	case OneYear:
		return 0.6
	case ThreeYear:
		return 0.45
	case FiveYear:
		return 0.35
	case SevenYear:
		return 0.3
	case TenYear:
		return 0.25
	default:
		return 1
	}
}

// Valid reports whether p is one of the supported periods.
func (p Period) Valid() bool { return p.Years() != 0 }

// FromYears maps a year count back to its Period.
func FromYears(years int) (Period, bool) {
	for _, p := range All {
		if p.Years() == years {
			return p, true
		}
	}
	return 0, false
}

// Parse accepts "5Y", "5y", "5yr", "5Yr" or a bare "5".
func Parse(s string) (Period, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if trimmed, ok := strings.CutSuffix(v, "yr"); ok {
		v = trimmed
	} else {
		v = strings.TrimSuffix(v, "y")
	}
	years, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: want one of 1Y, 3Y, 5Y, 7Y, 10Y", s)
	}
	p, ok := FromYears(years)
	if !ok {
		return 0, fmt.Errorf("unsupported period %q: want one of 1Y, 3Y, 5Y, 7Y, 10Y", s)
	}
	return p, nil
}

func (p Period) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid period %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
