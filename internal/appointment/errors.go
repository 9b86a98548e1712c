package appointment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hackgods/therapy-scheduling/internal/calendar"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrWriteConflict        = errors.New("slot was taken before the booking was saved")
	ErrSlotBeingBooked      = errors.New("therapist calendar is being updated, please retry")
	ErrAppointmentCancelled = errors.New("appointment is cancelled")
	ErrCostRequired         = errors.New("a positive cost is required to confirm an appointment")
	ErrTherapistMismatch    = errors.New("patient belongs to another therapist")
	ErrDuplicatePatient     = errors.New("a patient with this name already exists for the therapist")
	ErrInvalidStride        = errors.New("recurrence must be weekly or biweekly")
	ErrInvalidCount         = errors.New("recurrence count out of range")
)

// ValidationError lists every rule a proposed appointment broke.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// WriteConflictError is returned when storage rejects a write because another
// appointment took the slot after validation read the snapshot.
type WriteConflictError struct {
	Conflict Appointment
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("%s: %s at %s", ErrWriteConflict.Error(), e.Conflict.PatientName, calendar.FormatLocal(e.Conflict.StartTime))
}

func (e *WriteConflictError) Is(target error) bool {
	return target == ErrWriteConflict
}

// PartialSeriesError reports a recurring booking where only some occurrences
// were saved. Saved occurrences are kept.
type PartialSeriesError struct {
	Booked  int
	Skipped int
}

func (e *PartialSeriesError) Error() string {
	return fmt.Sprintf("recurring booking partially applied: %d booked, %d skipped", e.Booked, e.Skipped)
}

// TransportError wraps a failure of the persistence collaborator itself.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
