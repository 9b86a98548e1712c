package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/calendar"
	"github.com/hackgods/therapy-scheduling/internal/config"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentPaid        = "APPOINTMENT_PAID_TOGGLED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED_TOGGLED"
	EventSeriesBooked           = "SERIES_BOOKED"
	EventPatientCreated         = "PATIENT_CREATED"
	EventPatientDeactivated     = "PATIENT_DEACTIVATED"
	EventPatientReactivated     = "PATIENT_REACTIVATED"
	EventPatientDeleted         = "PATIENT_DELETED"
)

type Service struct {
	repo     Repository
	snapshot SnapshotReader
	locker   redisclient.Locker
	notifier ChangeNotifier
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, snapshot SnapshotReader, locker redisclient.Locker, notifier ChangeNotifier, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := cfg.Location()
	return &Service{
		repo:     repo,
		snapshot: snapshot,
		locker:   locker,
		notifier: notifier,
		loc:      loc,
		logger:   logger,
		now:      func() time.Time { return time.Now().In(loc) },
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Now() time.Time {
	return s.now()
}

// BookingRequest is a single appointment as entered by the user.
type BookingRequest struct {
	Name        string
	Date        string
	Cost        string
	TherapistID string
}

type BookingOutcome struct {
	State       BookingState
	Appointment *Appointment
	Errors      []string
	Conflict    *Appointment
	Trace       []BookingState
}

// SeriesRequest books a base appointment plus Sessions-1 repeats.
type SeriesRequest struct {
	BookingRequest
	Stride   Stride
	Sessions int
}

type SkippedOccurrence struct {
	Index        int
	Start        time.Time
	Reason       string
	ConflictName string
}

type SeriesOutcome struct {
	State   BookingState
	Booked  []Appointment
	Skipped []SkippedOccurrence
	Errors  []string
	Trace   []BookingState
}

func (s *Service) finish(att *Attempt) (BookingState, []BookingState) {
	state := att.State()
	if state == StateCommitted || state == StatePartialCommitted {
		att.mustTo(StateIdle)
	}
	return state, att.Trace()
}

// ValidateProposal runs the validator against the current snapshot.
func (s *Service) ValidateProposal(in ValidationInput, therapistID string) ValidationResult {
	return Validate(in, s.snapshot.Appointments(), NormalizeTherapist(therapistID), s.loc)
}

// Book validates a proposed appointment against the live snapshot and
// persists it under the therapist lock.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*BookingOutcome, error) {
	att := newAttempt()
	att.mustTo(StateCollecting)

	therapist := NormalizeTherapist(req.TherapistID)
	start, cost, rejected, err := s.validateBooking(att, req, therapist)
	if err != nil {
		state, trace := s.finish(att)
		return &BookingOutcome{State: state, Errors: rejected.Errors, Conflict: rejected.Conflict, Trace: trace}, err
	}

	// The write must finish even when the caller goes away.
	ctx = context.WithoutCancel(ctx)

	att.mustTo(StatePersisting)

	var created *Appointment
	err = s.locker.WithTherapistLock(ctx, therapist, func(lockCtx context.Context) error {
		a, err := s.repo.CreateAppointment(lockCtx, Appointment{
			PatientName: strings.TrimSpace(req.Name),
			StartTime:   start,
			Cost:        cost,
			TherapistID: therapist,
		})
		if err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		att.mustTo(StateCollecting)
		out := &BookingOutcome{}
		err = s.persistError("create appointment", err)
		out.Errors, out.Conflict = conflictDetails(err, start)
		out.State, out.Trace = s.finish(att)
		s.logger.Info("booking rejected at write time",
			zap.String("therapist", therapist),
			zap.String("start", calendar.FormatLocal(start)),
			zap.Error(err),
		)
		return out, err
	}

	att.mustTo(StateCommitted)

	s.logEvent(ctx, &created.ID, EventAppointmentCreated, map[string]any{
		"patient":   created.PatientName,
		"therapist": created.TherapistID,
		"start":     calendar.FormatLocal(created.StartTime),
		"cost":      created.Cost,
	})
	s.notify(ctx, EventAppointmentCreated)

	state, trace := s.finish(att)
	return &BookingOutcome{State: state, Appointment: created, Trace: trace}, nil
}

// validateBooking moves att through Validating. On failure att is back in
// Collecting and the returned result carries the messages.
func (s *Service) validateBooking(att *Attempt, req BookingRequest, therapist string) (time.Time, float64, ValidationResult, error) {
	att.mustTo(StateValidating)

	res := Validate(ValidationInput{Name: req.Name, Date: req.Date, Cost: req.Cost}, s.snapshot.Appointments(), therapist, s.loc)
	if !res.Valid {
		att.mustTo(StateCollecting)
		return time.Time{}, 0, res, res.Err()
	}

	if err := s.checkPatientOwner(req.Name, therapist); err != nil {
		att.mustTo(StateCollecting)
		return time.Time{}, 0, ValidationResult{Errors: []string{err.Error()}}, err
	}

	return res.Start, parseCost(req.Cost), res, nil
}

// checkPatientOwner rejects a name whose profile exists only on another
// therapist's roster.
func (s *Service) checkPatientOwner(name, therapist string) error {
	patients := s.snapshot.Patients()
	if _, ok := FindPatientByName(name, therapist, patients); ok {
		return nil
	}
	if p, ok := FindPatientByName(name, "", patients); ok && NormalizeTherapist(p.TherapistID) != therapist {
		return ErrTherapistMismatch
	}
	return nil
}

// BookSeries books the base appointment and then each repeat. A repeat that
// conflicts, either with the snapshot, with an earlier repeat of this series,
// or at write time, is skipped and the rest continue.
func (s *Service) BookSeries(ctx context.Context, req SeriesRequest) (*SeriesOutcome, error) {
	att := newAttempt()
	att.mustTo(StateCollecting)

	if req.Stride.Days() == 0 {
		state, trace := s.finish(att)
		return &SeriesOutcome{State: state, Errors: []string{ErrInvalidStride.Error()}, Trace: trace}, ErrInvalidStride
	}
	repeats := req.Sessions - 1
	if repeats < 1 || repeats > MaxOccurrences {
		err := fmt.Errorf("%w: %d sessions", ErrInvalidCount, req.Sessions)
		state, trace := s.finish(att)
		return &SeriesOutcome{State: state, Errors: []string{err.Error()}, Trace: trace}, err
	}

	therapist := NormalizeTherapist(req.TherapistID)
	start, cost, rejected, err := s.validateBooking(att, req.BookingRequest, therapist)
	if err != nil {
		state, trace := s.finish(att)
		return &SeriesOutcome{State: state, Errors: rejected.Errors, Trace: trace}, err
	}

	snapshot := s.snapshot.Appointments()
	occurrences, err := GenerateOccurrences(start, therapist, req.Stride, repeats, snapshot)
	if err != nil {
		att.mustTo(StateCollecting)
		state, trace := s.finish(att)
		return &SeriesOutcome{State: state, Errors: []string{err.Error()}, Trace: trace}, err
	}

	// The write must finish even when the caller goes away.
	ctx = context.WithoutCancel(ctx)

	att.mustTo(StatePersisting)

	name := strings.TrimSpace(req.Name)
	out := &SeriesOutcome{}

	// Every write takes the therapist lock on its own so the lock TTL bounds
	// one transaction, not the whole series.
	base, err := s.createLocked(ctx, Appointment{
		PatientName: name,
		StartTime:   start,
		Cost:        cost,
		TherapistID: therapist,
	})
	if err != nil {
		// Only the base write can fail the whole series.
		att.mustTo(StateCollecting)
		err = s.persistError("create appointment", err)
		out.Errors, _ = conflictDetails(err, start)
		out.State, out.Trace = s.finish(att)
		return out, err
	}
	out.Booked = append(out.Booked, *base)

	running := append(append([]Appointment(nil), snapshot...), *base)
	for _, occ := range occurrences {
		att.mustTo(StatePersisting)

		if c := CheckSlotConflict(occ.Start, running, uuid.Nil, therapist); c != nil {
			out.Skipped = append(out.Skipped, SkippedOccurrence{
				Index:        occ.Index,
				Start:        occ.Start,
				Reason:       ConflictMessage(occ.Start, c.PatientName),
				ConflictName: c.PatientName,
			})
			continue
		}

		a, werr := s.createLocked(ctx, Appointment{
			PatientName: name,
			StartTime:   occ.Start,
			Cost:        cost,
			TherapistID: therapist,
		})
		if werr != nil {
			skipped := SkippedOccurrence{Index: occ.Index, Start: occ.Start, Reason: werr.Error()}
			var wc *WriteConflictError
			switch {
			case errors.As(werr, &wc):
				skipped.Reason = ConflictMessage(occ.Start, wc.Conflict.PatientName)
				skipped.ConflictName = wc.Conflict.PatientName
			case errors.Is(werr, redisclient.ErrLockNotAcquired):
				skipped.Reason = ErrSlotBeingBooked.Error()
			default:
				s.logger.Warn("series occurrence not saved",
					zap.Int("index", occ.Index),
					zap.String("start", calendar.FormatLocal(occ.Start)),
					zap.Error(werr),
				)
			}
			out.Skipped = append(out.Skipped, skipped)
			continue
		}

		out.Booked = append(out.Booked, *a)
		running = append(running, *a)
	}

	if len(out.Skipped) == 0 {
		att.mustTo(StateCommitted)
	} else {
		att.mustTo(StatePartialCommitted)
	}

	first := out.Booked[0]
	s.logEvent(ctx, &first.ID, EventSeriesBooked, map[string]any{
		"patient":   name,
		"therapist": therapist,
		"stride":    string(req.Stride),
		"requested": req.Sessions,
		"booked":    len(out.Booked),
		"skipped":   len(out.Skipped),
	})
	s.notify(ctx, EventSeriesBooked)

	out.State, out.Trace = s.finish(att)
	if len(out.Skipped) > 0 {
		return out, &PartialSeriesError{Booked: len(out.Booked), Skipped: len(out.Skipped)}
	}
	return out, nil
}

func (s *Service) createLocked(ctx context.Context, a Appointment) (*Appointment, error) {
	var created *Appointment
	err := s.locker.WithTherapistLock(ctx, a.TherapistID, func(lockCtx context.Context) error {
		c, err := s.repo.CreateAppointment(lockCtx, a)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	return created, err
}

// PreviewSeries lists the repeats a series request would create, flagged
// against the current snapshot. Nothing is written.
func (s *Service) PreviewSeries(req SeriesRequest) ([]Occurrence, error) {
	base, err := calendar.ParseLocal(req.Date, s.loc)
	if err != nil {
		return nil, err
	}
	return GenerateOccurrences(base, NormalizeTherapist(req.TherapistID), req.Stride, req.Sessions-1, s.snapshot.Appointments())
}

// Reschedule moves an appointment to newDate, ignoring the appointment itself
// in the slot check.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate string) (*BookingOutcome, error) {
	current, err := s.findAppointment(id)
	if err != nil {
		return nil, err
	}
	if current.IsCancelled {
		return nil, ErrAppointmentCancelled
	}

	att := newAttempt()
	att.mustTo(StateCollecting)
	att.mustTo(StateValidating)

	therapist := NormalizeTherapist(current.TherapistID)
	res := Validate(ValidationInput{Name: current.PatientName, Date: newDate, ID: id}, s.snapshot.Appointments(), therapist, s.loc)
	if !res.Valid {
		att.mustTo(StateCollecting)
		state, trace := s.finish(att)
		return &BookingOutcome{State: state, Errors: res.Errors, Conflict: res.Conflict, Trace: trace}, res.Err()
	}

	// The write must finish even when the caller goes away.
	ctx = context.WithoutCancel(ctx)

	att.mustTo(StatePersisting)

	var updated *Appointment
	err = s.locker.WithTherapistLock(ctx, therapist, func(lockCtx context.Context) error {
		a, err := s.repo.UpdateAppointment(lockCtx, id, AppointmentUpdate{StartTime: &res.Start})
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		att.mustTo(StateCollecting)
		out := &BookingOutcome{}
		err = s.persistError("reschedule appointment", err)
		out.Errors, out.Conflict = conflictDetails(err, res.Start)
		out.State, out.Trace = s.finish(att)
		return out, err
	}

	att.mustTo(StateCommitted)

	s.logEvent(ctx, &id, EventAppointmentRescheduled, map[string]any{
		"old_date": calendar.FormatLocal(current.StartTime),
		"new_date": calendar.FormatLocal(updated.StartTime),
	})
	s.notify(ctx, EventAppointmentRescheduled)

	state, trace := s.finish(att)
	return &BookingOutcome{State: state, Appointment: updated, Trace: trace}, nil
}

// Cancel marks an appointment cancelled. The record stays for history.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	current, err := s.findAppointment(id)
	if err != nil {
		return nil, err
	}
	if current.IsCancelled {
		return nil, ErrAppointmentCancelled
	}

	ctx = context.WithoutCancel(ctx)
	cancelled := true
	updated, err := s.repo.UpdateAppointment(ctx, id, AppointmentUpdate{IsCancelled: &cancelled})
	if err != nil {
		return nil, s.persistError("cancel appointment", err)
	}

	s.logEvent(ctx, &id, EventAppointmentCancelled, map[string]any{
		"date": calendar.FormatLocal(updated.StartTime),
	})
	s.notify(ctx, EventAppointmentCancelled)
	return updated, nil
}

func (s *Service) TogglePaid(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	current, err := s.findAppointment(id)
	if err != nil {
		return nil, err
	}
	if current.IsCancelled {
		return nil, ErrAppointmentCancelled
	}

	ctx = context.WithoutCancel(ctx)
	paid := !current.IsPaid
	updated, err := s.repo.UpdateAppointment(ctx, id, AppointmentUpdate{IsPaid: &paid})
	if err != nil {
		return nil, s.persistError("toggle paid", err)
	}

	s.logEvent(ctx, &id, EventAppointmentPaid, map[string]any{"is_paid": updated.IsPaid})
	s.notify(ctx, EventAppointmentPaid)
	return updated, nil
}

// ToggleConfirmed flips the confirmation flag. An appointment without a
// positive cost cannot be confirmed.
func (s *Service) ToggleConfirmed(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	current, err := s.findAppointment(id)
	if err != nil {
		return nil, err
	}
	if current.IsCancelled {
		return nil, ErrAppointmentCancelled
	}

	confirmed := !current.IsConfirmed
	if confirmed && current.Cost <= 0 {
		return nil, ErrCostRequired
	}

	ctx = context.WithoutCancel(ctx)
	updated, err := s.repo.UpdateAppointment(ctx, id, AppointmentUpdate{IsConfirmed: &confirmed})
	if err != nil {
		return nil, s.persistError("toggle confirmed", err)
	}

	s.logEvent(ctx, &id, EventAppointmentConfirmed, map[string]any{"is_confirmed": updated.IsConfirmed})
	s.notify(ctx, EventAppointmentConfirmed)
	return updated, nil
}

// PendingConfirmations lists tomorrow's appointments that are neither
// confirmed nor cancelled, oldest first.
func (s *Service) PendingConfirmations() []Appointment {
	tomorrow := calendar.AddDays(calendar.StartOfDay(s.now()), 1)

	var out []Appointment
	for _, a := range s.snapshot.Appointments() {
		if a.IsCancelled || a.IsConfirmed {
			continue
		}
		if calendar.IsSameDay(a.StartTime, tomorrow) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out
}

// Patients

func (s *Service) CreatePatient(ctx context.Context, firstName, lastName, therapistID string) (*PatientProfile, error) {
	name := ComposeName(firstName, lastName)
	if msg := ValidatePatientName(name); msg != "" {
		return nil, &ValidationError{Messages: []string{msg}}
	}

	therapist := NormalizeTherapist(therapistID)
	if _, ok := FindPatientByName(name, therapist, s.snapshot.Patients()); ok {
		return nil, ErrDuplicatePatient
	}

	ctx = context.WithoutCancel(ctx)
	created, err := s.repo.CreatePatient(ctx, PatientProfile{
		Name:        name,
		FirstName:   strings.TrimSpace(firstName),
		LastName:    strings.TrimSpace(lastName),
		TherapistID: therapist,
	})
	if err != nil {
		return nil, s.persistError("create patient", err)
	}

	s.logEvent(ctx, nil, EventPatientCreated, map[string]any{
		"patient_id": created.ID.String(),
		"name":       created.Name,
		"therapist":  created.TherapistID,
	})
	s.notify(ctx, EventPatientCreated)
	return created, nil
}

// DeactivatePatient hides a patient from active rosters and records the date
// of their last attended session.
func (s *Service) DeactivatePatient(ctx context.Context, id uuid.UUID) (*PatientProfile, error) {
	p, err := s.findPatient(id)
	if err != nil {
		return nil, err
	}

	history := PatientAppointments(p.Name, p.TherapistID, s.snapshot.Appointments())
	last := LastSessionBefore(history, s.now())

	ctx = context.WithoutCancel(ctx)
	updated, err := s.repo.SetPatientActive(ctx, id, false, last)
	if err != nil {
		return nil, s.persistError("deactivate patient", err)
	}

	s.logEvent(ctx, nil, EventPatientDeactivated, map[string]any{"patient_id": id.String()})
	s.notify(ctx, EventPatientDeactivated)
	return updated, nil
}

func (s *Service) ReactivatePatient(ctx context.Context, id uuid.UUID) (*PatientProfile, error) {
	if _, err := s.findPatient(id); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	updated, err := s.repo.SetPatientActive(ctx, id, true, nil)
	if err != nil {
		return nil, s.persistError("reactivate patient", err)
	}

	s.logEvent(ctx, nil, EventPatientReactivated, map[string]any{"patient_id": id.String()})
	s.notify(ctx, EventPatientReactivated)
	return updated, nil
}

// DeletePatient permanently removes the profile and every appointment booked
// under it. It returns how many appointments were removed.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) (int, error) {
	p, err := s.findPatient(id)
	if err != nil {
		return 0, err
	}

	ctx = context.WithoutCancel(ctx)
	removed, err := s.repo.DeletePatient(ctx, id)
	if err != nil {
		return 0, s.persistError("delete patient", err)
	}

	s.logEvent(ctx, nil, EventPatientDeleted, map[string]any{
		"patient_id":   id.String(),
		"name":         p.Name,
		"appointments": removed,
	})
	s.notify(ctx, EventPatientDeleted)
	return removed, nil
}

type PatientSummary struct {
	Patient      PatientProfile
	Appointments []Appointment
	TotalPaid    float64
	TotalPending float64
	Completed    int
	Upcoming     int
	Cancelled    int
	LastSession  *time.Time
	Suggestion   *Suggestion
}

func (s *Service) PatientSummary(id uuid.UUID) (*PatientSummary, error) {
	p, err := s.findPatient(id)
	if err != nil {
		return nil, err
	}

	appts := s.snapshot.Appointments()
	now := s.now()
	history := PatientAppointments(p.Name, p.TherapistID, appts)

	sum := &PatientSummary{Patient: *p, Appointments: history}
	for _, a := range history {
		if a.IsCancelled {
			sum.Cancelled++
			continue
		}
		if a.IsPaid {
			sum.TotalPaid += a.Cost
		} else {
			sum.TotalPending += a.Cost
		}
		if a.StartTime.Before(now) {
			sum.Completed++
		} else {
			sum.Upcoming++
		}
	}
	sum.LastSession = LastSessionBefore(history, now)

	if sug, ok := SuggestSlot(p.Name, p.TherapistID, appts, now); ok {
		sum.Suggestion = &sug
	}
	return sum, nil
}

func (s *Service) SuggestFor(id uuid.UUID) (Suggestion, bool, error) {
	p, err := s.findPatient(id)
	if err != nil {
		return Suggestion{}, false, err
	}
	sug, ok := SuggestSlot(p.Name, p.TherapistID, s.snapshot.Appointments(), s.now())
	return sug, ok, nil
}

// Read side used by the HTTP layer.

func (s *Service) WeekView(date time.Time, therapistID string) WeekView {
	return BuildWeekView(calendar.StartOfWeek(date), s.snapshot.Appointments(), therapistID)
}

func (s *Service) DaySlots(day time.Time, therapistID string) []SlotState {
	return DailySlots(day, s.snapshot.Appointments(), NormalizeTherapist(therapistID), s.now())
}

func (s *Service) FreeSlotsFrom(from time.Time, days int, therapistID string) []time.Time {
	return FreeSlots(from, days, s.snapshot.Appointments(), NormalizeTherapist(therapistID), s.now())
}

func (s *Service) CheckSlot(at time.Time, excludeID uuid.UUID, therapistID string) *Appointment {
	return CheckSlotConflict(at, s.snapshot.Appointments(), excludeID, NormalizeTherapist(therapistID))
}

// RescheduleOptions lists free starts at the appointment's clock time over the
// next seven working days.
func (s *Service) RescheduleOptions(id uuid.UUID) ([]time.Time, error) {
	a, err := s.findAppointment(id)
	if err != nil {
		return nil, err
	}
	if a.IsCancelled {
		return nil, ErrAppointmentCancelled
	}
	return RescheduleOptions(a.StartTime, s.snapshot.Appointments(), a.ID, a.TherapistID), nil
}

func (s *Service) Appointment(id uuid.UUID) (*Appointment, error) {
	return s.findAppointment(id)
}

func (s *Service) Patients() []PatientProfile {
	return s.snapshot.Patients()
}

// Helpers

func (s *Service) findAppointment(id uuid.UUID) (*Appointment, error) {
	a, ok := FindAppointment(id, s.snapshot.Appointments())
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return a, nil
}

func (s *Service) findPatient(id uuid.UUID) (*PatientProfile, error) {
	for _, p := range s.snapshot.Patients() {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, ErrPatientNotFound
}

// persistError classifies a failure returned from inside the therapist lock.
func (s *Service) persistError(op string, err error) error {
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return ErrSlotBeingBooked
	case errors.Is(err, ErrWriteConflict),
		errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrPatientNotFound),
		errors.Is(err, ErrDuplicatePatient):
		return err
	}
	s.logger.Error("persistence failed", zap.String("op", op), zap.Error(err))
	return &TransportError{Op: op, Err: err}
}

// conflictDetails renders a write-time failure the way the validator would
// have reported it for start.
func conflictDetails(err error, start time.Time) ([]string, *Appointment) {
	var wc *WriteConflictError
	if errors.As(err, &wc) {
		c := wc.Conflict
		return []string{ConflictMessage(start, c.PatientName)}, &c
	}
	return []string{err.Error()}, nil
}

func parseCost(raw string) float64 {
	v, _ := ParseCost(raw)
	return v
}

func (s *Service) notify(ctx context.Context, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyChanged(ctx, reason)
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log", zap.String("event", eventType), zap.Error(err))
	}
}
