package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func appt(name string, start time.Time, therapist string) Appointment {
	return Appointment{ID: uuid.New(), PatientName: name, StartTime: start, TherapistID: therapist}
}

func TestCheckSlotConflictWindow(t *testing.T) {
	existing := []Appointment{appt("Bob", at(2024, 6, 10, 10, 0), "diana")}

	tests := []struct {
		name      string
		candidate time.Time
		free      bool
	}{
		{"exactly one hour before", at(2024, 6, 10, 9, 0), true},
		{"59 minutes before", at(2024, 6, 10, 9, 1), false},
		{"same start", at(2024, 6, 10, 10, 0), false},
		{"59 minutes after", at(2024, 6, 10, 10, 59), false},
		{"exactly one hour after", at(2024, 6, 10, 11, 0), true},
		{"next day", at(2024, 6, 11, 10, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSlotFree(tt.candidate, existing, uuid.Nil, "diana"); got != tt.free {
				t.Errorf("IsSlotFree(%s) = %v, want %v", tt.candidate.Format(time.Kitchen), got, tt.free)
			}
		})
	}
}

func TestCheckSlotConflictFilters(t *testing.T) {
	start := at(2024, 6, 10, 10, 0)

	cancelled := appt("Cancelled", start, "diana")
	cancelled.IsCancelled = true
	if c := CheckSlotConflict(start, []Appointment{cancelled}, uuid.Nil, "diana"); c != nil {
		t.Errorf("cancelled appointment should not block, got %s", c.PatientName)
	}

	self := appt("Self", start, "diana")
	if c := CheckSlotConflict(start.Add(30*time.Minute), []Appointment{self}, self.ID, "diana"); c != nil {
		t.Errorf("excluded appointment should not block")
	}

	other := appt("Other", start, "marta")
	if !IsSlotFree(start, []Appointment{other}, uuid.Nil, "diana") {
		t.Errorf("another therapist's appointment should not block")
	}
	if IsSlotFree(start, []Appointment{other}, uuid.Nil, "marta") {
		t.Errorf("same therapist should block")
	}

	legacy := appt("Legacy", start, "")
	if c := CheckSlotConflict(start, []Appointment{legacy}, uuid.Nil, "diana"); c == nil || c.PatientName != "Legacy" {
		t.Errorf("record without therapist should belong to the fallback therapist")
	}
	if c := CheckSlotConflict(start, []Appointment{appt("Diana", start, "diana")}, uuid.Nil, ""); c == nil {
		t.Errorf("empty candidate therapist should match the fallback therapist")
	}
}

func TestDailySlots(t *testing.T) {
	day := at(2024, 6, 11, 0, 0)
	now := at(2024, 6, 10, 15, 0)
	existing := []Appointment{appt("Bob", at(2024, 6, 11, 12, 30), "diana")}

	slots := DailySlots(day, existing, "diana", now)
	if len(slots) != 11 {
		t.Fatalf("expected 11 slots, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 9 || slots[10].Start.Hour() != 19 {
		t.Errorf("unexpected range %d..%d", slots[0].Start.Hour(), slots[10].Start.Hour())
	}

	busy := map[int]string{}
	for _, s := range slots {
		if !s.Free {
			busy[s.Start.Hour()] = s.BusyWith
		}
	}
	if len(busy) != 2 || busy[12] != "Bob" || busy[13] != "Bob" {
		t.Errorf("unexpected busy slots %v", busy)
	}
}

func TestDailySlotsToday(t *testing.T) {
	now := at(2024, 6, 10, 12, 30)
	slots := DailySlots(now, nil, "diana", now)
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots after 12:30, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 13 {
		t.Errorf("first slot at %d, want 13", slots[0].Start.Hour())
	}
}

func TestDailySlotsSunday(t *testing.T) {
	if slots := DailySlots(at(2024, 6, 16, 0, 0), nil, "diana", at(2024, 6, 10, 8, 0)); slots != nil {
		t.Errorf("expected no slots on Sunday, got %d", len(slots))
	}
}

func TestFreeSlots(t *testing.T) {
	now := at(2024, 6, 14, 8, 0)
	existing := []Appointment{appt("Bob", at(2024, 6, 15, 10, 0), "diana")}

	// Friday and Saturday, then Sunday is skipped.
	free := FreeSlots(at(2024, 6, 14, 0, 0), 3, existing, "diana", now)
	if len(free) != 12+11 {
		t.Fatalf("expected 23 free slots, got %d", len(free))
	}
	for _, f := range free {
		if f.Weekday() == time.Sunday {
			t.Errorf("Sunday slot returned: %s", f)
		}
		if f.Equal(at(2024, 6, 15, 10, 0)) {
			t.Errorf("busy slot returned")
		}
	}
	last := free[len(free)-1]
	if last.Hour() != 20 {
		t.Errorf("last slot at %d, want 20", last.Hour())
	}
}

func TestFreeSlotsSkipsPast(t *testing.T) {
	now := at(2024, 6, 14, 18, 0)
	free := FreeSlots(now, 1, nil, "diana", now)
	if len(free) != 2 {
		t.Fatalf("expected 19:00 and 20:00, got %v", free)
	}
}

func TestRescheduleOptions(t *testing.T) {
	current := appt("Ana", at(2024, 6, 15, 10, 0), "diana")
	existing := []Appointment{
		current,
		appt("Bob", at(2024, 6, 18, 10, 15), "diana"),
	}

	opts := RescheduleOptions(current.StartTime, existing, current.ID, "diana")
	// Sun 16 skipped, Tue 18 busy: Mon 17, Wed 19, Thu 20, Fri 21, Sat 22.
	if len(opts) != 5 {
		t.Fatalf("expected 5 options, got %d: %v", len(opts), opts)
	}
	if !opts[0].Equal(at(2024, 6, 17, 10, 0)) {
		t.Errorf("first option %s", opts[0])
	}
}

func TestBuildWeekView(t *testing.T) {
	existing := []Appointment{
		appt("Late", at(2024, 6, 12, 16, 0), "diana"),
		appt("Early", at(2024, 6, 12, 9, 0), "diana"),
		appt("Other", at(2024, 6, 13, 9, 0), "marta"),
		appt("NextWeek", at(2024, 6, 17, 9, 0), "diana"),
	}

	view := BuildWeekView(at(2024, 6, 10, 0, 0), existing, "diana")
	if len(view.Days) != 6 {
		t.Fatalf("expected 6 days, got %d", len(view.Days))
	}
	if view.ISOWeek != 24 {
		t.Errorf("ISOWeek = %d", view.ISOWeek)
	}
	wed := view.Days[2]
	if wed.Date != "2024-06-12" || len(wed.Appointments) != 2 {
		t.Fatalf("unexpected Wednesday %+v", wed)
	}
	if wed.Appointments[0].PatientName != "Early" {
		t.Errorf("appointments not sorted: %s first", wed.Appointments[0].PatientName)
	}
	if len(view.Days[3].Appointments) != 0 {
		t.Errorf("other therapist leaked into view")
	}

	all := BuildWeekView(at(2024, 6, 10, 0, 0), existing, AllTherapists)
	if len(all.Days[3].Appointments) != 1 {
		t.Errorf("all-therapist view should include marta")
	}
}

func TestIsSlotFreeSymmetric(t *testing.T) {
	base := at(2024, 6, 10, 10, 0)

	tests := []struct {
		name       string
		delta      time.Duration
		therapistA string
		therapistB string
	}{
		{"same start", 0, "diana", "diana"},
		{"59 minutes", 59 * time.Minute, "diana", "diana"},
		{"60 minutes", 60 * time.Minute, "diana", "diana"},
		{"61 minutes", 61 * time.Minute, "diana", "diana"},
		{"minus 30 minutes", -30 * time.Minute, "diana", "diana"},
		{"blank and fallback therapist", 30 * time.Minute, "", "diana"},
		{"different therapists", 30 * time.Minute, "diana", "marta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t1, t2 := base, base.Add(tt.delta)
			forward := IsSlotFree(t1, []Appointment{appt("Bob", t2, tt.therapistB)}, uuid.Nil, tt.therapistA)
			backward := IsSlotFree(t2, []Appointment{appt("Ana", t1, tt.therapistA)}, uuid.Nil, tt.therapistB)
			if forward != backward {
				t.Errorf("IsSlotFree not symmetric: forward=%v backward=%v", forward, backward)
			}
		})
	}
}

func TestIsSlotFreePerTherapist(t *testing.T) {
	existing := []Appointment{appt("Bob", at(2024, 6, 10, 10, 0), "a")}

	if IsSlotFree(at(2024, 6, 10, 10, 30), existing, uuid.Nil, "a") {
		t.Error("10:30 should be busy for therapist a")
	}
	if !IsSlotFree(at(2024, 6, 10, 11, 0), existing, uuid.Nil, "a") {
		t.Error("11:00 should be free for therapist a")
	}
	if !IsSlotFree(at(2024, 6, 10, 10, 30), existing, uuid.Nil, "b") {
		t.Error("10:30 should be free for therapist b")
	}
}
