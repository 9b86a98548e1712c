package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/calendar"
)

type Stride string

const (
	StrideWeekly   Stride = "weekly"
	StrideBiweekly Stride = "biweekly"
)

// MaxOccurrences bounds a single recurring request.
const MaxOccurrences = 52

func ParseStride(s string) (Stride, error) {
	switch Stride(strings.ToLower(strings.TrimSpace(s))) {
	case StrideWeekly:
		return StrideWeekly, nil
	case StrideBiweekly:
		return StrideBiweekly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStride, s)
}

// Days is the offset between two consecutive occurrences.
func (s Stride) Days() int {
	switch s {
	case StrideWeekly:
		return 7
	case StrideBiweekly:
		return 14
	}
	return 0
}

type Occurrence struct {
	Index        int
	Start        time.Time
	HasConflict  bool
	ConflictName string
	ConflictWith *Appointment
}

// GenerateOccurrences projects base count times into the future. Occurrence i,
// 1..count, starts i strides after base at the same local clock time. Each one
// is checked against snapshot only, never against its siblings.
func GenerateOccurrences(base time.Time, therapistID string, stride Stride, count int, snapshot []Appointment) ([]Occurrence, error) {
	step := stride.Days()
	if step == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStride, stride)
	}
	if count < 1 || count > MaxOccurrences {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	out := make([]Occurrence, 0, count)
	for i := 1; i <= count; i++ {
		start := calendar.AddDays(base, i*step)
		occ := Occurrence{Index: i, Start: start}
		if c := CheckSlotConflict(start, snapshot, uuid.Nil, therapistID); c != nil {
			occ.HasConflict = true
			occ.ConflictName = c.PatientName
			occ.ConflictWith = c
		}
		out = append(out, occ)
	}
	return out, nil
}

type Suggestion struct {
	Weekday time.Weekday
	Hour    int
	Next    time.Time
	// Seen is how many past sessions matched the pattern.
	Seen int
}

// SuggestSlot finds the weekday and hour the patient books most often and the
// next start matching it. When that start is busy the suggestion moves one week.
func SuggestSlot(patientName, therapistID string, appts []Appointment, now time.Time) (Suggestion, bool) {
	history := PatientAppointments(patientName, therapistID, appts)

	type key struct {
		day  time.Weekday
		hour int
	}
	counts := make(map[key]int)
	var order []key
	for _, a := range history {
		if a.IsCancelled {
			continue
		}
		k := key{a.StartTime.Weekday(), a.StartTime.Hour()}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	if len(order) == 0 {
		return Suggestion{}, false
	}

	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), best.hour, 0, 0, 0, now.Location())
	daysAhead := (int(best.day) + 7 - int(now.Weekday())) % 7
	if daysAhead == 0 && next.Before(now) {
		daysAhead = 7
	}
	next = calendar.AddDays(next, daysAhead)

	if !IsSlotFree(next, appts, uuid.Nil, therapistID) {
		next = calendar.AddDays(next, 7)
	}

	return Suggestion{Weekday: best.day, Hour: best.hour, Next: next, Seen: counts[best]}, true
}
