package appointment

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/calendar"
	"github.com/hackgods/therapy-scheduling/internal/config"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
)

// memRepo is an in-memory Repository that enforces the slot rule on write
// like the Postgres implementation does. Writes fail on a done context the
// way a pgx transaction would.
type memRepo struct {
	mu       sync.Mutex
	appts    []Appointment
	patients []PatientProfile
	events   []EventLog

	// failAt makes CreateAppointment fail for a given local start.
	failAt    map[string]error
	createErr error
}

func (r *memRepo) Appointments() []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Appointment(nil), r.appts...)
}

func (r *memRepo) Patients() []PatientProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PatientProfile(nil), r.patients...)
}

func (r *memRepo) ListAppointments(ctx context.Context) ([]Appointment, error) {
	return r.Appointments(), nil
}

func (r *memRepo) ListPatients(ctx context.Context) ([]PatientProfile, error) {
	return r.Patients(), nil
}

func (r *memRepo) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return nil, r.createErr
	}
	if err := r.failAt[calendar.FormatLocal(a.StartTime)]; err != nil {
		return nil, err
	}
	if c := CheckSlotConflict(a.StartTime, r.appts, uuid.Nil, a.TherapistID); c != nil {
		return nil, &WriteConflictError{Conflict: *c}
	}

	a.ID = uuid.New()
	a.TherapistID = NormalizeTherapist(a.TherapistID)
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.appts = append(r.appts, a)
	return &a, nil
}

func (r *memRepo) UpdateAppointment(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.appts {
		a := &r.appts[i]
		if a.ID != id {
			continue
		}
		if upd.StartTime != nil && !a.IsCancelled {
			if c := CheckSlotConflict(*upd.StartTime, r.appts, id, a.TherapistID); c != nil {
				return nil, &WriteConflictError{Conflict: *c}
			}
			a.StartTime = *upd.StartTime
		}
		if upd.IsPaid != nil {
			a.IsPaid = *upd.IsPaid
		}
		if upd.IsConfirmed != nil {
			a.IsConfirmed = *upd.IsConfirmed
		}
		if upd.IsCancelled != nil {
			if *upd.IsCancelled && !a.IsCancelled {
				now := time.Now()
				a.CancelledAt = &now
			}
			a.IsCancelled = *upd.IsCancelled
		}
		out := *a
		return &out, nil
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) CreatePatient(ctx context.Context, p PatientProfile) (*PatientProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := FindPatientByName(p.Name, p.TherapistID, r.patients); ok {
		return nil, ErrDuplicatePatient
	}
	p.ID = uuid.New()
	p.IsActive = true
	p.DateAdded = time.Now()
	r.patients = append(r.patients, p)
	return &p, nil
}

func (r *memRepo) SetPatientActive(ctx context.Context, id uuid.UUID, active bool, lastSession *time.Time) (*PatientProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.patients {
		p := &r.patients[i]
		if p.ID != id {
			continue
		}
		p.IsActive = active
		if active {
			p.DateInactivated = nil
		} else {
			now := time.Now()
			p.DateInactivated = &now
		}
		if lastSession != nil {
			p.LastSessionDate = lastSession
		}
		out := *p
		return &out, nil
	}
	return nil, ErrPatientNotFound
}

func (r *memRepo) DeletePatient(ctx context.Context, id uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.patients {
		if p.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return 0, ErrPatientNotFound
	}
	p := r.patients[idx]
	r.patients = append(r.patients[:idx], r.patients[idx+1:]...)

	kept := r.appts[:0]
	removed := 0
	for _, a := range r.appts {
		if strings.EqualFold(a.PatientName, p.Name) && NormalizeTherapist(a.TherapistID) == NormalizeTherapist(p.TherapistID) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.appts = kept
	return removed, nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

// staticSnapshot is a snapshot that never refreshes, to model a stale cache.
type staticSnapshot struct {
	appts    []Appointment
	patients []PatientProfile
}

func (s staticSnapshot) Appointments() []Appointment { return s.appts }
func (s staticSnapshot) Patients() []PatientProfile { return s.patients }

type fakeLocker struct {
	err   error
	calls []string
	// busyAfter > 0 makes every call past that many fail as contended.
	busyAfter int
}

func (l *fakeLocker) WithTherapistLock(ctx context.Context, therapistID string, fn func(ctx context.Context) error) error {
	l.calls = append(l.calls, therapistID)
	if l.err != nil {
		return l.err
	}
	if l.busyAfter > 0 && len(l.calls) > l.busyAfter {
		return redisclient.ErrLockNotAcquired
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

type recordingNotifier struct {
	reasons []string
	ctxErrs []error
}

func (n *recordingNotifier) NotifyChanged(ctx context.Context, reason string) {
	n.reasons = append(n.reasons, reason)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
}

// testNow is Monday 2024-06-10 08:00 UTC.
var testNow = at(2024, 6, 10, 8, 0)

func newTestService(repo *memRepo, snap SnapshotReader) (*Service, *fakeLocker, *recordingNotifier) {
	if snap == nil {
		snap = repo
	}
	locker := &fakeLocker{}
	notifier := &recordingNotifier{}
	svc := NewService(repo, snap, locker, notifier, config.Config{Timezone: "UTC"}, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, locker, notifier
}
