// Package dates is the single place where calendar days and blocked-date
// markers are parsed and formatted.  Every component that stores or compares
// a check-in/check-out day or a room's blocked dates goes through this
// package, so storage and "today" comparisons always agree on one format.
//
// Two representations exist:
//
//	day    – a calendar date, "2006-01-02" (DayLayout).
//	marker – one blocked night, the day at 18:00 UTC rendered as
//	         "2006-01-02T18:00:00.000Z" (MarkerLayout).  Markers are opaque
//	         strings and compare equal exactly when they denote the same day.
package dates

import (
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/exp/maps"
)

const (
	// DayLayout is the canonical calendar-day format.
	DayLayout = "2006-01-02"
	// MarkerLayout is the canonical blocked-date marker format.
	MarkerLayout = "2006-01-02T15:04:05.000Z"
	// ReferenceHour is the fixed time of day every marker is pinned to.
	ReferenceHour = 18

	legacyDayLayout = "1/2/2006"
)

// ErrInvalidDay is returned when a day string cannot be parsed.
var ErrInvalidDay = errors.New("invalid day")

// ErrInvertedRange is returned when check-out falls before check-in.
var ErrInvertedRange = errors.New("check-out before check-in")

// ParseDay parses a calendar day.  Besides the canonical layout it accepts
// RFC3339 timestamps and the legacy M/D/YYYY form; the result is always
// midnight UTC of the calendar day written in the input.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDay
	}
	for _, layout := range []string{DayLayout, time.RFC3339Nano, legacyDayLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return truncate(t), nil
		}
	}
	return time.Time{}, ErrInvalidDay
}

// NormalizeDay parses s and returns it in DayLayout.
func NormalizeDay(s string) (string, error) {
	t, err := ParseDay(s)
	if err != nil {
		return "", err
	}
	return t.Format(DayLayout), nil
}

// FormatDay renders the calendar day of t (in t's own location) as DayLayout.
func FormatDay(t time.Time) string {
	return truncate(t).Format(DayLayout)
}

// Today returns the current calendar day as seen from loc.  A nil loc
// means UTC.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return FormatDay(now.In(loc))
}

// Marker returns the canonical blocked-date marker of t's calendar day.
func Marker(t time.Time) string {
	y, m, d := t.Date()
	return time.Date(y, m, d, ReferenceHour, 0, 0, 0, time.UTC).Format(MarkerLayout)
}

// Range returns one marker per night of the half-open interval
// [checkIn, checkOut).  Equal days produce an empty, non-nil slice.
func Range(checkIn, checkOut time.Time) ([]string, error) {
	in, out := truncate(checkIn), truncate(checkOut)
	if out.Before(in) {
		return nil, ErrInvertedRange
	}
	markers := make([]string, 0, Nights(in, out))
	for d := in; d.Before(out); d = d.AddDate(0, 0, 1) {
		markers = append(markers, Marker(d))
	}
	return markers, nil
}

// Markers is Range for canonical day strings.
func Markers(checkIn, checkOut string) ([]string, error) {
	in, err := ParseDay(checkIn)
	if err != nil {
		return nil, err
	}
	out, err := ParseDay(checkOut)
	if err != nil {
		return nil, err
	}
	return Range(in, out)
}

// Nights counts the nights between two days; negative spans count as zero.
func Nights(checkIn, checkOut time.Time) int {
	n := int(truncate(checkOut).Sub(truncate(checkIn)).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// Union merges marker sets into one sorted slice without duplicates.
func Union(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, m := range set {
			seen[m] = struct{}{}
		}
	}
	out := maps.Keys(seen)
	slices.Sort(out)
	return out
}

// Diff returns the markers of a that are absent from b, sorted.
func Diff(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, m := range b {
		drop[m] = struct{}{}
	}
	out := make([]string, 0)
	for _, m := range Union(a) {
		if _, ok := drop[m]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// Overlap returns the markers present in both a and b, sorted.
func Overlap(a, b []string) []string {
	keep := make(map[string]struct{}, len(b))
	for _, m := range b {
		keep[m] = struct{}{}
	}
	out := make([]string, 0)
	for _, m := range Union(a) {
		if _, ok := keep[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
