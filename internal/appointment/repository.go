package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence collaborator used by the coordinator and the
// snapshot feed. Implementations must re-check the slot rule when creating or
// moving an appointment and report a *WriteConflictError when it fails.
type Repository interface {
	// Snapshot loading
	ListAppointments(ctx context.Context) ([]Appointment, error)
	ListPatients(ctx context.Context) ([]PatientProfile, error)

	// Appointment writes
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error)

	// Patient profiles
	CreatePatient(ctx context.Context, p PatientProfile) (*PatientProfile, error)
	SetPatientActive(ctx context.Context, id uuid.UUID, active bool, lastSession *time.Time) (*PatientProfile, error)
	// DeletePatient removes the profile and every appointment booked under it.
	DeletePatient(ctx context.Context, id uuid.UUID) (removed int, err error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// SnapshotReader gives the coordinator read access to the live cache.
type SnapshotReader interface {
	Appointments() []Appointment
	Patients() []PatientProfile
}

// ChangeNotifier is told after every committed write so the live cache can be
// refreshed.
type ChangeNotifier interface {
	NotifyChanged(ctx context.Context, reason string)
}
