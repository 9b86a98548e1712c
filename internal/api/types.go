package api

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// costField accepts a JSON number or string and keeps the raw text, so the
// validator sees exactly what the client sent.
type costField string

func (c *costField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = costField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = costField(n.String())
	return nil
}

type ValidateAppointmentRequest struct {
	PatientName   string    `json:"patient_name"`
	Date          string    `json:"date"`
	Cost          costField `json:"cost"`
	TherapistID   string    `json:"therapist_id"`
	AppointmentID string    `json:"appointment_id,omitempty"`
}

type RecurrenceRequest struct {
	Stride   string `json:"stride"`
	Sessions int    `json:"sessions"`
}

type CreateAppointmentRequest struct {
	PatientName string             `json:"patient_name"`
	Date        string             `json:"date"`
	Cost        costField          `json:"cost"`
	TherapistID string             `json:"therapist_id"`
	Recurrence  *RecurrenceRequest `json:"recurrence,omitempty"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
}

type CreatePatientRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	TherapistID string `json:"therapist_id"`
}

type AppointmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	PatientName string     `json:"patient_name"`
	Date        string     `json:"date"`
	TherapistID string     `json:"therapist_id"`
	Cost        *float64   `json:"cost,omitempty"`
	IsPaid      *bool      `json:"is_paid,omitempty"`
	IsConfirmed bool       `json:"is_confirmed"`
	IsCancelled bool       `json:"is_cancelled"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type BookingResponse struct {
	State       string               `json:"state"`
	Appointment *AppointmentResponse `json:"appointment,omitempty"`
	Trace       []string             `json:"trace"`
}

type SkippedResponse struct {
	Index        int    `json:"index"`
	Date         string `json:"date"`
	Reason       string `json:"reason"`
	ConflictName string `json:"conflict_name,omitempty"`
}

type SeriesResponse struct {
	State   string                `json:"state"`
	Booked  []AppointmentResponse `json:"booked"`
	Skipped []SkippedResponse     `json:"skipped"`
	Trace   []string              `json:"trace"`
}

type OccurrenceResponse struct {
	Index        int    `json:"index"`
	Date         string `json:"date"`
	HasConflict  bool   `json:"has_conflict"`
	ConflictName string `json:"conflict_name,omitempty"`
}

type DayResponse struct {
	Date         string                `json:"date"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type WeekResponse struct {
	Start       string        `json:"start"`
	ISOWeek     int           `json:"iso_week"`
	TherapistID string        `json:"therapist_id"`
	Days        []DayResponse `json:"days"`
}

type SlotResponse struct {
	Start    string `json:"start"`
	Free     bool   `json:"free"`
	BusyWith string `json:"busy_with,omitempty"`
}

type CheckSlotResponse struct {
	Free         bool                 `json:"free"`
	ConflictWith *AppointmentResponse `json:"conflict_with,omitempty"`
}

type PatientResponse struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	TherapistID     string     `json:"therapist_id"`
	IsActive        bool       `json:"is_active"`
	DateAdded       time.Time  `json:"date_added"`
	DateInactivated *time.Time `json:"date_inactivated,omitempty"`
	LastSessionDate string     `json:"last_session_date,omitempty"`
}

type SuggestionResponse struct {
	Weekday string `json:"weekday"`
	Hour    int    `json:"hour"`
	Next    string `json:"next"`
	Seen    int    `json:"seen"`
}

type PatientSummaryResponse struct {
	Patient      PatientResponse       `json:"patient"`
	Appointments []AppointmentResponse `json:"appointments"`
	TotalPaid    *float64              `json:"total_paid,omitempty"`
	TotalPending *float64              `json:"total_pending,omitempty"`
	Completed    int                   `json:"completed"`
	Upcoming     int                   `json:"upcoming"`
	Cancelled    int                   `json:"cancelled"`
	LastSession  string                `json:"last_session,omitempty"`
	Suggestion   *SuggestionResponse   `json:"suggestion,omitempty"`
}

type DeletePatientResponse struct {
	RemovedAppointments int `json:"removed_appointments"`
}

type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

func queryInt(raw string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return n
	}
	return def
}
