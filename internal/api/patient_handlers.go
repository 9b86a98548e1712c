package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/auth"
	"github.com/hackgods/therapy-scheduling/internal/calendar"
)

func (h *handlers) listPatients(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	q := r.URL.Query()

	filter := strings.TrimSpace(q.Get("therapist"))
	if !p.Can(auth.ViewAllPatients) || filter == "" {
		filter = p.CurrentTherapistFilter()
	}
	includeInactive := q.Get("include_inactive") == "true"

	resp := make([]PatientResponse, 0)
	for _, pp := range h.svc.Patients() {
		if filter != appointment.AllTherapists && appointment.NormalizeTherapist(pp.TherapistID) != appointment.NormalizeTherapist(filter) {
			continue
		}
		if !pp.IsActive && !includeInactive {
			continue
		}
		resp = append(resp, toPatientResponse(pp))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) createPatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := principal(r)
	therapist := bookingTherapist(req.TherapistID, p.TherapistID)
	if !p.CanManagePatientsOf(therapist) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot manage this roster")
		return
	}

	created, err := h.svc.CreatePatient(r.Context(), req.FirstName, req.LastName, therapist)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, toPatientResponse(*created))
}

func (h *handlers) patientSummary(w http.ResponseWriter, r *http.Request) {
	pp, ok := h.loadPatient(w, r)
	if !ok {
		return
	}
	p := principal(r)
	if !p.CanViewRecordsOf(pp.TherapistID) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot view this patient")
		return
	}

	sum, err := h.svc.PatientSummary(pp.ID)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}

	resp := PatientSummaryResponse{
		Patient:      toPatientResponse(sum.Patient),
		Appointments: toAppointmentResponses(sum.Appointments, p),
		Completed:    sum.Completed,
		Upcoming:     sum.Upcoming,
		Cancelled:    sum.Cancelled,
	}
	if p.CanViewFinancials(appointment.Appointment{TherapistID: pp.TherapistID}) {
		paid, pending := sum.TotalPaid, sum.TotalPending
		resp.TotalPaid = &paid
		resp.TotalPending = &pending
	}
	if sum.LastSession != nil {
		resp.LastSession = calendar.FormatLocal(*sum.LastSession)
	}
	if sum.Suggestion != nil {
		resp.Suggestion = toSuggestionResponse(*sum.Suggestion)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) patientSuggestion(w http.ResponseWriter, r *http.Request) {
	pp, ok := h.loadPatient(w, r)
	if !ok {
		return
	}
	p := principal(r)
	if !p.CanBookFor(pp.TherapistID) && !p.CanViewRecordsOf(pp.TherapistID) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot view this patient")
		return
	}

	sug, found, err := h.svc.SuggestFor(pp.ID)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toSuggestionResponse(sug))
}

func (h *handlers) deactivatePatient(w http.ResponseWriter, r *http.Request) {
	pp, ok := h.loadPatient(w, r)
	if !ok {
		return
	}
	if !principal(r).CanManagePatientsOf(pp.TherapistID) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot manage this roster")
		return
	}

	updated, err := h.svc.DeactivatePatient(r.Context(), pp.ID)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(*updated))
}

func (h *handlers) reactivatePatient(w http.ResponseWriter, r *http.Request) {
	pp, ok := h.loadPatient(w, r)
	if !ok {
		return
	}
	if !principal(r).CanManagePatientsOf(pp.TherapistID) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot manage this roster")
		return
	}

	updated, err := h.svc.ReactivatePatient(r.Context(), pp.ID)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(*updated))
}

func (h *handlers) deletePatient(w http.ResponseWriter, r *http.Request) {
	pp, ok := h.loadPatient(w, r)
	if !ok {
		return
	}

	removed, err := h.svc.DeletePatient(r.Context(), pp.ID)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, DeletePatientResponse{RemovedAppointments: removed})
}

func (h *handlers) loadPatient(w http.ResponseWriter, r *http.Request) (*appointment.PatientProfile, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
		return nil, false
	}
	for _, pp := range h.svc.Patients() {
		if pp.ID == id {
			return &pp, true
		}
	}
	writeServiceError(w, appointment.ErrPatientNotFound, nil)
	return nil, false
}
