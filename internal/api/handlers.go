package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/calendar"
)

type handlers struct {
	svc    *appointment.Service
	logger *zap.Logger
}

func (h *handlers) validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := appointment.ValidationInput{Name: req.PatientName, Date: req.Date, Cost: string(req.Cost)}
	if req.AppointmentID != "" {
		id, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}
		in.ID = id
	}

	therapist := bookingTherapist(req.TherapistID, principal(r).TherapistID)
	res := h.svc.ValidateProposal(in, therapist)

	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, ValidationResponse{Valid: res.Valid, Errors: errs})
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := principal(r)
	therapist := bookingTherapist(req.TherapistID, p.TherapistID)
	if !p.CanBookFor(therapist) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot book on this calendar")
		return
	}

	booking := appointment.BookingRequest{
		Name:        req.PatientName,
		Date:        req.Date,
		Cost:        string(req.Cost),
		TherapistID: therapist,
	}

	if req.Recurrence != nil {
		h.createSeries(w, r, booking, *req.Recurrence)
		return
	}

	out, err := h.svc.Book(r.Context(), booking)
	if err != nil {
		writeServiceError(w, err, outcomeErrors(out))
		return
	}

	resp := toAppointmentResponse(*out.Appointment, p)
	writeJSON(w, http.StatusCreated, BookingResponse{
		State:       string(out.State),
		Appointment: &resp,
		Trace:       traceStrings(out.Trace),
	})
}

func (h *handlers) createSeries(w http.ResponseWriter, r *http.Request, booking appointment.BookingRequest, rec RecurrenceRequest) {
	stride, err := appointment.ParseStride(rec.Stride)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}

	out, err := h.svc.BookSeries(r.Context(), appointment.SeriesRequest{
		BookingRequest: booking,
		Stride:         stride,
		Sessions:       rec.Sessions,
	})

	var partial *appointment.PartialSeriesError
	if err != nil && !errors.As(err, &partial) {
		var messages []string
		if out != nil {
			messages = out.Errors
		}
		writeServiceError(w, err, messages)
		return
	}

	if partial != nil {
		h.logger.Warn("recurring booking partially applied",
			zap.String("therapist", booking.TherapistID),
			zap.Int("booked", partial.Booked),
			zap.Int("skipped", partial.Skipped),
			zap.String("request_id", GetRequestID(r.Context())),
		)
	}

	p := principal(r)
	resp := SeriesResponse{
		State:   string(out.State),
		Booked:  toAppointmentResponses(out.Booked, p),
		Skipped: make([]SkippedResponse, 0, len(out.Skipped)),
		Trace:   traceStrings(out.Trace),
	}
	for _, s := range out.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedResponse{
			Index:        s.Index,
			Date:         calendar.FormatLocal(s.Start),
			Reason:       s.Reason,
			ConflictName: s.ConflictName,
		})
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *handlers) previewSeries(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Recurrence == nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "recurrence is required")
		return
	}

	stride, err := appointment.ParseStride(req.Recurrence.Stride)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}

	therapist := bookingTherapist(req.TherapistID, principal(r).TherapistID)
	occ, err := h.svc.PreviewSeries(appointment.SeriesRequest{
		BookingRequest: appointment.BookingRequest{Date: req.Date, TherapistID: therapist},
		Stride:         stride,
		Sessions:       req.Recurrence.Sessions,
	})
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}

	resp := make([]OccurrenceResponse, 0, len(occ))
	for _, o := range occ {
		resp = append(resp, OccurrenceResponse{
			Index:        o.Index,
			Date:         calendar.FormatLocal(o.Start),
			HasConflict:  o.HasConflict,
			ConflictName: o.ConflictName,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadAppointment(w, r)
	if !ok {
		return
	}
	p := principal(r)
	if !p.CanBookFor(current.TherapistID) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot edit this calendar")
		return
	}

	var req RescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.svc.Reschedule(r.Context(), current.ID, req.Date)
	if err != nil {
		writeServiceError(w, err, outcomeErrors(out))
		return
	}

	resp := toAppointmentResponse(*out.Appointment, p)
	writeJSON(w, http.StatusOK, BookingResponse{
		State:       string(out.State),
		Appointment: &resp,
		Trace:       traceStrings(out.Trace),
	})
}

func (h *handlers) rescheduleOptions(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadAppointment(w, r)
	if !ok {
		return
	}

	opts, err := h.svc.RescheduleOptions(current.ID)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}

	resp := make([]string, 0, len(opts))
	for _, o := range opts {
		resp = append(resp, calendar.FormatLocal(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadAppointment(w, r)
	if !ok {
		return
	}
	p := principal(r)
	if !p.CanBookFor(current.TherapistID) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot edit this calendar")
		return
	}

	updated, err := h.svc.Cancel(r.Context(), current.ID)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*updated, p))
}

func (h *handlers) togglePaid(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadAppointment(w, r)
	if !ok {
		return
	}
	p := principal(r)
	if !p.CanManagePaymentsOf(current.TherapistID) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot manage payments on this calendar")
		return
	}

	updated, err := h.svc.TogglePaid(r.Context(), current.ID)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*updated, p))
}

func (h *handlers) toggleConfirmed(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadAppointment(w, r)
	if !ok {
		return
	}
	p := principal(r)
	if !p.CanBookFor(current.TherapistID) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot edit this calendar")
		return
	}

	updated, err := h.svc.ToggleConfirmed(r.Context(), current.ID)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*updated, p))
}

func (h *handlers) loadAppointment(w http.ResponseWriter, r *http.Request) (*appointment.Appointment, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return nil, false
	}
	a, err := h.svc.Appointment(id)
	if err != nil {
		writeServiceError(w, err, nil)
		return nil, false
	}
	return a, true
}

// bookingTherapist picks the calendar a booking goes to: the requested one,
// else the caller's own.
func bookingTherapist(requested, own string) string {
	if t := strings.TrimSpace(requested); t != "" && t != appointment.AllTherapists {
		return t
	}
	return appointment.NormalizeTherapist(own)
}

func outcomeErrors(out *appointment.BookingOutcome) []string {
	if out == nil {
		return nil
	}
	return out.Errors
}
