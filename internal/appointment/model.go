package appointment

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FallbackTherapist is assumed for records created before the practice had more
// than one therapist.
const FallbackTherapist = "diana"

// AllTherapists is the view filter that matches every therapist.
const AllTherapists = "all"

type Appointment struct {
	ID          uuid.UUID
	PatientName string
	StartTime   time.Time
	Cost        float64
	TherapistID string
	IsPaid      bool
	IsConfirmed bool
	IsCancelled bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt *time.Time
}

type PatientProfile struct {
	ID              uuid.UUID
	Name            string
	FirstName       string
	LastName        string
	TherapistID     string
	IsActive        bool
	DateAdded       time.Time
	DateInactivated *time.Time
	LastSessionDate *time.Time
}

// AppointmentUpdate carries the fields a caller wants to change. Nil fields are
// left untouched.
type AppointmentUpdate struct {
	StartTime   *time.Time
	IsPaid      *bool
	IsConfirmed *bool
	IsCancelled *bool
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// NormalizeTherapist maps a missing therapist id to the fallback therapist.
func NormalizeTherapist(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return FallbackTherapist
	}
	return id
}

// NormalizeAppointments returns a copy of appts with therapist ids normalized.
func NormalizeAppointments(appts []Appointment) []Appointment {
	out := make([]Appointment, len(appts))
	for i, a := range appts {
		a.TherapistID = NormalizeTherapist(a.TherapistID)
		out[i] = a
	}
	return out
}

// NormalizePatients returns a copy of profiles with therapist ids normalized.
func NormalizePatients(profiles []PatientProfile) []PatientProfile {
	out := make([]PatientProfile, len(profiles))
	for i, p := range profiles {
		p.TherapistID = NormalizeTherapist(p.TherapistID)
		out[i] = p
	}
	return out
}

// ComposeName builds the display name of a patient from its parts.
func ComposeName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// FindPatientByName looks a profile up by case-insensitive name. An empty
// therapistID searches every roster.
func FindPatientByName(name, therapistID string, profiles []PatientProfile) (*PatientProfile, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, false
	}
	for i := range profiles {
		p := profiles[i]
		if therapistID != "" && NormalizeTherapist(p.TherapistID) != NormalizeTherapist(therapistID) {
			continue
		}
		if strings.ToLower(strings.TrimSpace(p.Name)) == needle {
			return &p, true
		}
	}
	return nil, false
}

func FindAppointment(id uuid.UUID, appts []Appointment) (*Appointment, bool) {
	for i := range appts {
		if appts[i].ID == id {
			a := appts[i]
			return &a, true
		}
	}
	return nil, false
}

// PatientAppointments returns the appointments booked under name for one
// therapist, oldest first.
func PatientAppointments(name, therapistID string, appts []Appointment) []Appointment {
	needle := strings.ToLower(strings.TrimSpace(name))
	target := NormalizeTherapist(therapistID)

	var out []Appointment
	for _, a := range appts {
		if NormalizeTherapist(a.TherapistID) != target {
			continue
		}
		if strings.ToLower(strings.TrimSpace(a.PatientName)) != needle {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	return out
}

func sortByStart(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].StartTime.Before(appts[j].StartTime)
	})
}

// LastSessionBefore returns the start of the latest non-cancelled appointment
// that started before now.
func LastSessionBefore(appts []Appointment, now time.Time) *time.Time {
	var last *time.Time
	for _, a := range appts {
		if a.IsCancelled || !a.StartTime.Before(now) {
			continue
		}
		if last == nil || a.StartTime.After(*last) {
			t := a.StartTime
			last = &t
		}
	}
	return last
}
