package appointment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/calendar"
)

const (
	MsgNameRequired   = "patient name is required"
	MsgDateRequired   = "date is required"
	MsgDateInvalid    = "date is not valid"
	MsgCostInvalid    = "cost must be a non-negative number"
	MsgSunday         = "appointments cannot be booked on Sundays"
	MsgOutsideHours   = "appointments must start between 09:00 and 20:00"
	msgConflictFormat = "the %s slot is already taken by %s"
)

// ValidationInput is a proposed appointment as received at the boundary. An
// empty Cost means no cost was given. ID is set when an existing appointment
// is being edited.
type ValidationInput struct {
	Name string
	Date string
	Cost string
	ID   uuid.UUID
}

type ValidationResult struct {
	Valid  bool
	Errors []string
	// Start is the parsed date when rule 2 passed.
	Start time.Time
	// Conflict is the appointment found by the slot check, if any.
	Conflict *Appointment
}

// Err returns the result as a *ValidationError, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Messages: r.Errors}
}

// Validate checks a proposed appointment against every booking rule and
// collects all violations. It has no side effects.
func Validate(in ValidationInput, existing []Appointment, therapistID string, loc *time.Location) ValidationResult {
	var res ValidationResult

	if strings.TrimSpace(in.Name) == "" {
		res.Errors = append(res.Errors, MsgNameRequired)
	}

	var (
		start  time.Time
		parsed bool
	)
	if strings.TrimSpace(in.Date) == "" {
		res.Errors = append(res.Errors, MsgDateRequired)
	} else if t, err := calendar.ParseLocal(in.Date, loc); err != nil {
		res.Errors = append(res.Errors, MsgDateInvalid)
	} else {
		start = t
		parsed = true
	}

	if c := strings.TrimSpace(in.Cost); c != "" {
		if _, ok := ParseCost(c); !ok {
			res.Errors = append(res.Errors, MsgCostInvalid)
		}
	}

	if parsed {
		res.Start = start

		if start.Weekday() == time.Sunday {
			res.Errors = append(res.Errors, MsgSunday)
		}
		if !WithinWorkingHours(start) {
			res.Errors = append(res.Errors, MsgOutsideHours)
		}
		if conflict := CheckSlotConflict(start, existing, in.ID, therapistID); conflict != nil {
			res.Conflict = conflict
			res.Errors = append(res.Errors, ConflictMessage(start, conflict.PatientName))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// ParseCost reads a session cost. NaN, infinities and negatives are rejected.
func ParseCost(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// WithinWorkingHours reports whether t starts inside the 09:00-20:00 window.
// 20:00 sharp is the last valid start.
func WithinWorkingHours(t time.Time) bool {
	h := t.Hour()
	if h < OpeningHour || h > ClosingHour {
		return false
	}
	if h == ClosingHour && (t.Minute() > 0 || t.Second() > 0) {
		return false
	}
	return true
}

func ConflictMessage(at time.Time, name string) string {
	return fmt.Sprintf(msgConflictFormat, at.Format("15:04"), name)
}

// ValidatePatientName checks a profile name and returns a message, or "" if valid.
func ValidatePatientName(name string) string {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return "patient name is required"
	case len([]rune(n)) < 2:
		return "patient name must have at least 2 characters"
	case len([]rune(name)) > 100:
		return "patient name is too long"
	}
	return ""
}
