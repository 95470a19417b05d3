// Package dateutil provides calendar-day arithmetic shared by every
// availability and maintenance caller. All computations work on local
// civil dates (year/month/day components) to avoid off-by-one shifts
// around midnight and DST changes.
package dateutil

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// DayLayout is the canonical day-key format.
const DayLayout = "2006-01-02"

// ErrInvalidRange is returned when a window's start date is after its end date.
var ErrInvalidRange = errors.New("start date is after end date")

// ErrInvalidDay is returned when a day key cannot be parsed.
var ErrInvalidDay = errors.New("invalid day key; expected YYYY-MM-DD")

// DaySet is the set of calendar-day keys a reservation occupies.
// It is the single representation for single dates, inclusive ranges
// and explicit non-consecutive date lists.
type DaySet map[string]struct{}

// WindowMode selects how a Window's fields are interpreted.
type WindowMode string

const (
	WindowSingle WindowMode = "single"
	WindowRange  WindowMode = "range"
	WindowList   WindowMode = "list"
)

// Window is the raw date shape submitted with a reservation.
type Window struct {
	Mode  WindowMode `json:"mode"`
	Date  string     `json:"date,omitempty"`
	Start string     `json:"start,omitempty"`
	End   string     `json:"end,omitempty"`
	Dates []string   `json:"dates,omitempty"`
}

// ParseDay parses a YYYY-MM-DD key into a local civil date.
func ParseDay(key string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, strings.TrimSpace(key), time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidDay
	}
	return t, nil
}

// FormatDay formats a time as its day key, dropping the time component.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// AddDays advances a day key by n calendar days using civil-date arithmetic.
func AddDays(key string, n int) (string, error) {
	t, err := ParseDay(key)
	if err != nil {
		return "", err
	}
	return FormatDay(t.AddDate(0, 0, n)), nil
}

// AddWeeks advances a day key by n calendar weeks.
func AddWeeks(key string, n int) (string, error) {
	return AddDays(key, n*7)
}

// NormalizeWindow expands a window into its day set.
// An empty window yields an empty set; a range with start after end
// yields ErrInvalidRange.
func NormalizeWindow(w Window) (DaySet, error) {
	set := make(DaySet)
	switch w.Mode {
	case WindowSingle:
		if strings.TrimSpace(w.Date) == "" {
			return set, nil
		}
		d, err := ParseDay(w.Date)
		if err != nil {
			return nil, err
		}
		set[FormatDay(d)] = struct{}{}

	case WindowRange:
		if strings.TrimSpace(w.Start) == "" && strings.TrimSpace(w.End) == "" {
			return set, nil
		}
		start, err := ParseDay(w.Start)
		if err != nil {
			return nil, err
		}
		end, err := ParseDay(w.End)
		if err != nil {
			return nil, err
		}
		if start.After(end) {
			return nil, ErrInvalidRange
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			set[FormatDay(d)] = struct{}{}
		}

	case WindowList:
		for _, key := range w.Dates {
			if strings.TrimSpace(key) == "" {
				continue
			}
			d, err := ParseDay(key)
			if err != nil {
				return nil, err
			}
			set[FormatDay(d)] = struct{}{}
		}

	default:
		return set, nil
	}
	return set, nil
}

// SingleDay returns a one-element day set for a key.
func SingleDay(key string) (DaySet, error) {
	return NormalizeWindow(Window{Mode: WindowSingle, Date: key})
}

// RangeDays returns the inclusive day set between two keys.
func RangeDays(start, end string) (DaySet, error) {
	return NormalizeWindow(Window{Mode: WindowRange, Start: start, End: end})
}

// Contains reports whether the set includes the day key.
func (s DaySet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Intersects reports whether the two sets share at least one day.
// Symmetric; iterates the smaller set.
func (s DaySet) Intersects(other DaySet) bool {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for key := range small {
		if _, ok := big[key]; ok {
			return true
		}
	}
	return false
}

// Bounds returns the earliest and latest day keys in the set.
// Empty sets return two empty strings.
func (s DaySet) Bounds() (min, max string) {
	for key := range s {
		if min == "" || key < min {
			min = key
		}
		if key > max {
			max = key
		}
	}
	return min, max
}

// Sorted returns the day keys in ascending order.
func (s DaySet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeResourceKey canonicalizes a resource name or registration so
// that "Ford Transit " and "ford  transit" compare equal.
func NormalizeResourceKey(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
