package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/calendar"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// writeServiceError maps coordinator errors onto stable codes.
func writeServiceError(w http.ResponseWriter, err error, messages []string) {
	var (
		verr *appointment.ValidationError
		terr *appointment.TransportError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "validation_failed",
			Details:  err.Error(),
			Messages: verr.Messages,
		})
	case errors.Is(err, appointment.ErrWriteConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "slot_conflict", Details: err.Error(), Messages: messages})
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "the calendar is being updated, please retry shortly")
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidStride),
		errors.Is(err, appointment.ErrInvalidCount),
		errors.Is(err, appointment.ErrTherapistMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation_failed", Details: err.Error(), Messages: messages})
	case errors.Is(err, calendar.ErrInvalidTimestamp):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	case errors.Is(err, appointment.ErrAppointmentCancelled),
		errors.Is(err, appointment.ErrCostRequired):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, appointment.ErrDuplicatePatient):
		writeError(w, http.StatusConflict, "duplicate_patient", err.Error())
	case errors.As(err, &terr):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", terr.Op)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
