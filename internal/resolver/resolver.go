// Package resolver maps a requested date range onto the dates a returns
// table actually recorded.
package resolver

import (
	"fmt"
	"time"

	"index-returns/internal/table"
)

const (
	DefaultMinPoints      = 10
	DefaultFallbackWindow = 50
)

// Mode describes how a resolution was reached.
type Mode string

const (
	// ModeExact means the requested range matched recorded dates directly.
	ModeExact Mode = "exact"
	// ModePadded means in-range dates were widened to reach the minimum count.
	ModePadded Mode = "padded"
	// ModeNearest means no recorded date fell in range; the closest ones were used.
	ModeNearest Mode = "nearest"
	// ModeLatest means the most recent window was used.
	ModeLatest Mode = "latest"
)

// Options tune resolution.
type Options struct {
	MinPoints      int
	FallbackWindow int
}

func (o Options) withDefaults() Options {
	if o.MinPoints <= 0 {
		o.MinPoints = DefaultMinPoints
	}
	if o.FallbackWindow <= 0 {
		o.FallbackWindow = DefaultFallbackWindow
	}
	return o
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Dates   []table.ObservationDate
	Mode    Mode
	Swapped bool
}

// Resolve picks the recorded dates to use for a [from, to] request. Either
// bound may be nil. The result is chronologically sorted and non-empty
// whenever all is non-empty; all itself is never modified.
func Resolve(all []table.ObservationDate, from, to *time.Time, opts Options) (Resolution, error) {
	if len(all) == 0 {
		return Resolution{}, fmt.Errorf("resolve dates: no recorded dates: %w", table.ErrDataUnavailable)
	}
	opts = opts.withDefaults()
	dates := normalize(all)

	var res Resolution
	switch {
	case from != nil && to != nil:
		lo, hi := table.Day(*from), table.Day(*to)
		if lo.After(hi) {
			lo, hi = hi, lo
			res.Swapped = true
		}
		res.Dates, res.Mode = resolveBetween(dates, lo, hi, opts.MinPoints)
	case from != nil:
		res.Dates, res.Mode = resolveFrom(dates, table.Day(*from), opts.FallbackWindow)
	case to != nil:
		res.Dates, res.Mode = resolveTo(dates, table.Day(*to), opts.FallbackWindow)
	}

	if len(res.Dates) == 0 {
		res.Dates = latest(dates, opts.FallbackWindow)
		res.Mode = ModeLatest
	}
	return res, nil
}

// normalize returns a sorted copy with duplicate days dropped, first seen wins.
func normalize(all []table.ObservationDate) []table.ObservationDate {
	out := make([]table.ObservationDate, 0, len(all))
	seen := make(map[time.Time]struct{}, len(all))
	for _, d := range all {
		if _, dup := seen[d.Day]; dup {
			continue
		}
		seen[d.Day] = struct{}{}
		out = append(out, d)
	}
	table.SortDates(out)
	return out
}

func resolveBetween(dates []table.ObservationDate, lo, hi time.Time, minPoints int) ([]table.ObservationDate, Mode) {
	start, end := -1, -1
	for i, d := range dates {
		if d.Day.Before(lo) || d.Day.After(hi) {
			continue
		}
		if start < 0 {
			start = i
		}
		end = i
	}

	mode := ModeExact
	if start < 0 {
		start, end = nearest(dates, lo), nearest(dates, hi)
		if start > end {
			start, end = end, start
		}
		mode = ModeNearest
	}

	if end-start+1 < minPoints {
		padStart, padEnd := pad(len(dates), start, end, minPoints)
		if (padStart != start || padEnd != end) && mode == ModeExact {
			mode = ModePadded
		}
		start, end = padStart, padEnd
	}
	return clone(dates[start : end+1]), mode
}

// pad widens [start, end] one step at a time, backward first, until the
// slice holds minPoints dates or both edges are exhausted.
func pad(n, start, end, minPoints int) (int, int) {
	for end-start+1 < minPoints {
		grew := false
		if start > 0 {
			start--
			grew = true
		}
		if end-start+1 >= minPoints {
			break
		}
		if end < n-1 {
			end++
			grew = true
		}
		if !grew {
			break
		}
	}
	return start, end
}

func resolveFrom(dates []table.ObservationDate, from time.Time, window int) ([]table.ObservationDate, Mode) {
	for i, d := range dates {
		if !d.Day.Before(from) {
			return clone(dates[i:]), ModeExact
		}
	}
	i := nearest(dates, from)
	end := i + window
	if end > len(dates) {
		end = len(dates)
	}
	return clone(dates[i:end]), ModeNearest
}

func resolveTo(dates []table.ObservationDate, to time.Time, window int) ([]table.ObservationDate, Mode) {
	for i := len(dates) - 1; i >= 0; i-- {
		if !dates[i].Day.After(to) {
			return clone(dates[:i+1]), ModeExact
		}
	}
	i := nearest(dates, to)
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	return clone(dates[start : i+1]), ModeNearest
}

func latest(dates []table.ObservationDate, window int) []table.ObservationDate {
	if len(dates) <= window {
		return clone(dates)
	}
	return clone(dates[len(dates)-window:])
}

// nearest returns the index of the date closest to target; ties go to the
// earlier index.
func nearest(dates []table.ObservationDate, target time.Time) int {
	best := 0
	bestDiff := absDuration(dates[0].Day.Sub(target))
	for i := 1; i < len(dates); i++ {
		diff := absDuration(dates[i].Day.Sub(target))
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func clone(dates []table.ObservationDate) []table.ObservationDate {
	return append([]table.ObservationDate(nil), dates...)
}
