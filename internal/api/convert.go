package api

import (
	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/auth"
	"github.com/hackgods/therapy-scheduling/internal/calendar"
)

// toAppointmentResponse renders a for p, leaving out payment data p may not see.
func toAppointmentResponse(a appointment.Appointment, p auth.Principal) AppointmentResponse {
	resp := AppointmentResponse{
		ID:          a.ID,
		PatientName: a.PatientName,
		Date:        calendar.FormatLocal(a.StartTime),
		TherapistID: appointment.NormalizeTherapist(a.TherapistID),
		IsConfirmed: a.IsConfirmed,
		IsCancelled: a.IsCancelled,
		CancelledAt: a.CancelledAt,
	}
	if p.CanViewFinancials(a) {
		cost, paid := a.Cost, a.IsPaid
		resp.Cost = &cost
		resp.IsPaid = &paid
	}
	return resp
}

func toAppointmentResponses(appts []appointment.Appointment, p auth.Principal) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a, p))
	}
	return out
}

func toPatientResponse(pp appointment.PatientProfile) PatientResponse {
	resp := PatientResponse{
		ID:              pp.ID,
		Name:            pp.Name,
		FirstName:       pp.FirstName,
		LastName:        pp.LastName,
		TherapistID:     appointment.NormalizeTherapist(pp.TherapistID),
		IsActive:        pp.IsActive,
		DateAdded:       pp.DateAdded,
		DateInactivated: pp.DateInactivated,
	}
	if pp.LastSessionDate != nil {
		resp.LastSessionDate = calendar.FormatLocal(*pp.LastSessionDate)
	}
	return resp
}

func toSuggestionResponse(s appointment.Suggestion) *SuggestionResponse {
	return &SuggestionResponse{
		Weekday: s.Weekday.String(),
		Hour:    s.Hour,
		Next:    calendar.FormatLocal(s.Next),
		Seen:    s.Seen,
	}
}

func traceStrings(trace []appointment.BookingState) []string {
	out := make([]string, len(trace))
	for i, s := range trace {
		out[i] = string(s)
	}
	return out
}
