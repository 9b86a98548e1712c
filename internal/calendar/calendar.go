// Package calendar holds the date arithmetic shared by the scheduler.
//
// All functions work on the wall clock of the time value they receive. Values
// crossing the storage or HTTP boundary are local-naive, so callers must parse
// them with ParseLocal in the practice location before doing any arithmetic.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LocalLayout is the boundary encoding of an appointment start time.
const LocalLayout = "2006-01-02T15:04"

// DateLayout is the join key between a day and its appointments.
const DateLayout = "2006-01-02"

// WeekRolloverHour is the Saturday hour from which the next week is shown.
const WeekRolloverHour = 16

var ErrInvalidTimestamp = errors.New("invalid timestamp")

var parseLayouts = []string{
	LocalLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseLocal parses a local-naive timestamp in loc. RFC 3339 input carrying an
// offset is accepted and converted to loc.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return t, nil
}

// FormatLocal renders t in the boundary encoding, without offset.
func FormatLocal(t time.Time) string {
	return t.Format(LocalLayout)
}

// FormatDateLocal renders the local calendar date of t. It never converts to UTC.
func FormatDateLocal(t time.Time) string {
	return t.Format(DateLayout)
}

// Rewall keeps the wall clock fields of t and reinterprets them in loc.
func Rewall(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// AddDays moves t by n calendar days keeping the local hour and minute, so a DST
// change in between does not shift the slot.
func AddDays(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfWeek returns Monday 00:00 of the week containing t. From Saturday
// 16:00 onwards the following Monday is returned. Sunday belongs to the week
// that started the Monday before it.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)

	if t.Weekday() == time.Saturday && t.Hour() >= WeekRolloverHour {
		return AddDays(day, 2)
	}

	offset := int(t.Weekday()) - int(time.Monday)
	if t.Weekday() == time.Sunday {
		offset = 6
	}
	return AddDays(day, -offset)
}

// EndOfWeek returns the last instant of the Sunday closing StartOfWeek(t).
func EndOfWeek(t time.Time) time.Time {
	return AddDays(StartOfWeek(t), 7).Add(-time.Nanosecond)
}

func IsSameWeek(a, b time.Time) bool {
	return StartOfWeek(a).Equal(StartOfWeek(b))
}

// WorkWeek returns the six bookable days, Monday to Saturday, starting at weekStart.
func WorkWeek(weekStart time.Time) []time.Time {
	start := StartOfDay(weekStart)
	days := make([]time.Time, 0, 6)
	for i := 0; i < 6; i++ {
		days = append(days, AddDays(start, i))
	}
	return days
}

// ISOWeekNumber returns the ISO-8601 week of t's local calendar date.
func ISOWeekNumber(t time.Time) int {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	_, week := d.ISOWeek()
	return week
}
