package table

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateFormat is the canonical day format used in outputs.
const DateFormat = "2006-01-02"

// SourceDateFormat is the key format written by the returns loader.
const SourceDateFormat = "01/02/2006"

// Accepted key layouts, tried in order. The permissive single-digit forms
// come after their zero-padded counterparts.
var dateLayouts = []string{
	SourceDateFormat,
	"1/2/2006",
	DateFormat,
	"2006-1-2",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
}

// ParseDate parses a recorded key into a UTC day.
func ParseDate(key string) (time.Time, error) {
	v := strings.TrimSpace(key)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", key)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatKey renders a key as an ISO day, passing the original string
// through when it does not parse.
func FormatKey(key string) string {
	t, err := ParseDate(key)
	if err != nil {
		return key
	}
	return t.Format(DateFormat)
}

// ObservationDate is a recorded row key together with its calendar day.
type ObservationDate struct {
	Key string
	Day time.Time
}

func (o ObservationDate) String() string { return o.Day.Format(DateFormat) }

func (o ObservationDate) MarshalJSON() ([]byte, error) {
	if o.Day.IsZero() {
		return json.Marshal(o.Key)
	}
	return json.Marshal(o.Day.Format(DateFormat))
}

// DateScan summarises the keys a table yielded.
type DateScan struct {
	Dates       []ObservationDate
	Duplicates  []string
	Unparseable []string
}

// ScanDates parses keys into chronologically sorted, unique observation
// dates. Duplicates keep the first-seen key; keys that do not parse are
// reported and left out.
func ScanDates(keys []string) DateScan {
	var scan DateScan
	seen := make(map[time.Time]struct{}, len(keys))
	for _, key := range keys {
		day, err := ParseDate(key)
		if err != nil {
			scan.Unparseable = append(scan.Unparseable, key)
			continue
		}
		if _, dup := seen[day]; dup {
			scan.Duplicates = append(scan.Duplicates, key)
			continue
		}
		seen[day] = struct{}{}
		scan.Dates = append(scan.Dates, ObservationDate{Key: key, Day: day})
	}
	SortDates(scan.Dates)
	return scan
}

// SortDates sorts in place by day, keeping the relative order of equal days.
func SortDates(dates []ObservationDate) {
	sort.SliceStable(dates, func(i, j int) bool { return dates[i].Day.Before(dates[j].Day) })
}
