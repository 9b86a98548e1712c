package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/calendar"
)

// SlotWindow is the minimum separation between two appointment starts of the
// same therapist.
const SlotWindow = time.Hour

const (
	OpeningHour = 9
	ClosingHour = 20
)

// IsSlotFree reports whether candidate is at least SlotWindow away from every
// non-cancelled appointment of therapistID, ignoring excludeID.
func IsSlotFree(candidate time.Time, appts []Appointment, excludeID uuid.UUID, therapistID string) bool {
	return CheckSlotConflict(candidate, appts, excludeID, therapistID) == nil
}

// CheckSlotConflict returns the first appointment that makes candidate busy, or nil.
func CheckSlotConflict(candidate time.Time, appts []Appointment, excludeID uuid.UUID, therapistID string) *Appointment {
	target := NormalizeTherapist(therapistID)

	for i := range appts {
		a := appts[i]
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		if a.IsCancelled {
			continue
		}
		if NormalizeTherapist(a.TherapistID) != target {
			continue
		}
		if absDuration(a.StartTime.Sub(candidate)) < SlotWindow {
			return &a
		}
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

type SlotState struct {
	Start    time.Time
	Free     bool
	BusyWith string
}

// DailySlots lists the hourly booking candidates of one day, from opening until
// the last full hour before closing. On the current day hours that already
// started are left out.
func DailySlots(day time.Time, appts []Appointment, therapistID string, now time.Time) []SlotState {
	if day.Weekday() == time.Sunday {
		return nil
	}

	today := calendar.IsSameDay(day, now)
	base := calendar.StartOfDay(day)

	var slots []SlotState
	for hour := OpeningHour; hour < ClosingHour; hour++ {
		if today && hour <= now.Hour() {
			continue
		}
		start := time.Date(base.Year(), base.Month(), base.Day(), hour, 0, 0, 0, base.Location())
		state := SlotState{Start: start, Free: true}
		if c := CheckSlotConflict(start, appts, uuid.Nil, therapistID); c != nil {
			state.Free = false
			state.BusyWith = c.PatientName
		}
		slots = append(slots, state)
	}
	return slots
}

// FreeSlots returns free hourly starts, opening to closing inclusive, over days
// consecutive days from from. Sundays and starts not after now are skipped.
func FreeSlots(from time.Time, days int, appts []Appointment, therapistID string, now time.Time) []time.Time {
	var out []time.Time
	first := calendar.StartOfDay(from)
	for d := 0; d < days; d++ {
		day := calendar.AddDays(first, d)
		if day.Weekday() == time.Sunday {
			continue
		}
		for hour := OpeningHour; hour <= ClosingHour; hour++ {
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
			if !start.After(now) {
				continue
			}
			if IsSlotFree(start, appts, uuid.Nil, therapistID) {
				out = append(out, start)
			}
		}
	}
	return out
}

// RescheduleOptions proposes the same clock time on each of the following seven
// days, skipping Sundays and busy slots.
func RescheduleOptions(current time.Time, appts []Appointment, excludeID uuid.UUID, therapistID string) []time.Time {
	var out []time.Time
	for i := 1; i <= 7; i++ {
		candidate := calendar.AddDays(current, i)
		if candidate.Weekday() == time.Sunday {
			continue
		}
		if IsSlotFree(candidate, appts, excludeID, therapistID) {
			out = append(out, candidate)
		}
	}
	return out
}

type DayView struct {
	Date         string
	Day          time.Time
	Appointments []Appointment
}

type WeekView struct {
	Start       time.Time
	ISOWeek     int
	Days        []DayView
	TherapistID string
}

// BuildWeekView groups the appointments of the six working days starting at
// weekStart by local date. therapistID may be AllTherapists.
func BuildWeekView(weekStart time.Time, appts []Appointment, therapistID string) WeekView {
	start := calendar.StartOfDay(weekStart)
	days := calendar.WorkWeek(start)

	byDate := make(map[string][]Appointment, len(days))
	for _, a := range appts {
		if therapistID != AllTherapists && NormalizeTherapist(a.TherapistID) != NormalizeTherapist(therapistID) {
			continue
		}
		key := calendar.FormatDateLocal(a.StartTime)
		byDate[key] = append(byDate[key], a)
	}

	view := WeekView{
		Start:       start,
		ISOWeek:     calendar.ISOWeekNumber(start),
		TherapistID: therapistID,
	}
	for _, d := range days {
		key := calendar.FormatDateLocal(d)
		list := byDate[key]
		sortByStart(list)
		view.Days = append(view.Days, DayView{Date: key, Day: d, Appointments: list})
	}
	return view
}
