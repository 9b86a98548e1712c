package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/therapy-scheduling/internal/calendar"
)

const uniqueViolation = "23505"

// PgRepository stores appointments with local-naive start times
// (timestamp without time zone) interpreted in loc.
type PgRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewPgRepository(pool *pgxpool.Pool, loc *time.Location) *PgRepository {
	if loc == nil {
		loc = time.Local
	}
	return &PgRepository{pool: pool, loc: loc}
}

// Helpers

const appointmentColumns = `id, patient_name, start_time, cost, COALESCE(therapist_id, ''),
		is_paid, is_confirmed, is_cancelled, created_at, updated_at, cancelled_at`

const patientColumns = `id, name, first_name, last_name, COALESCE(therapist_id, ''),
		is_active, date_added, date_inactivated, last_session_date`

func (r *PgRepository) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var cancelledAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientName,
		&a.StartTime,
		&a.Cost,
		&a.TherapistID,
		&a.IsPaid,
		&a.IsConfirmed,
		&a.IsCancelled,
		&a.CreatedAt,
		&a.UpdatedAt,
		&cancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartTime = calendar.Rewall(a.StartTime, r.loc)
	a.CancelledAt = cancelledAt
	return &a, nil
}

func (r *PgRepository) scanPatient(row pgx.Row) (*PatientProfile, error) {
	var p PatientProfile
	var inactivated, lastSession *time.Time

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.FirstName,
		&p.LastName,
		&p.TherapistID,
		&p.IsActive,
		&p.DateAdded,
		&inactivated,
		&lastSession,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.DateInactivated = inactivated
	if lastSession != nil {
		ls := calendar.Rewall(*lastSession, r.loc)
		p.LastSessionDate = &ls
	}
	return &p, nil
}

// naive renders t for a timestamp-without-time-zone parameter.
func naive(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func naivePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := naive(*t)
	return &s
}

// lockTherapist serializes writers of one calendar for the rest of tx.
func lockTherapist(ctx context.Context, tx pgx.Tx, therapistID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, therapistID)
	if err != nil {
		return fmt.Errorf("lock therapist calendar: %w", err)
	}
	return nil
}

func (r *PgRepository) findConflict(ctx context.Context, tx pgx.Tx, therapistID string, start time.Time, exclude uuid.UUID) (*Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE COALESCE(NULLIF(therapist_id, ''), $4) = $1
		  AND NOT is_cancelled
		  AND id <> $3
		  AND start_time > $2::timestamp - interval '1 hour'
		  AND start_time < $2::timestamp + interval '1 hour'
		ORDER BY start_time
		LIMIT 1
	`, therapistID, naive(start), exclude, FallbackTherapist)

	a, err := r.scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check slot conflict: %w", err)
	}
	return a, nil
}

// Interface methods

func (r *PgRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY start_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]PatientProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patient_profiles
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PatientProfile
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	therapist := NormalizeTherapist(a.TherapistID)
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockTherapist(ctx, tx, therapist); err != nil {
		return nil, err
	}

	conflict, err := r.findConflict(ctx, tx, therapist, a.StartTime, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, &WriteConflictError{Conflict: *conflict}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_name, start_time, cost, therapist_id, is_paid, is_confirmed, is_cancelled, created_at, updated_at)
		VALUES ($1, $2, $3::timestamp, $4, $5, $6, $7, false, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientName, naive(a.StartTime), a.Cost, therapist, a.IsPaid, a.IsConfirmed)

	created, err := r.scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := r.scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}

	if upd.StartTime != nil && !current.IsCancelled {
		therapist := NormalizeTherapist(current.TherapistID)
		if err := lockTherapist(ctx, tx, therapist); err != nil {
			return nil, err
		}
		conflict, err := r.findConflict(ctx, tx, therapist, *upd.StartTime, id)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			return nil, &WriteConflictError{Conflict: *conflict}
		}
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time   = COALESCE($2::timestamp, start_time),
		    is_paid      = COALESCE($3::boolean, is_paid),
		    is_confirmed = COALESCE($4::boolean, is_confirmed),
		    cancelled_at = CASE WHEN $5::boolean IS TRUE AND NOT is_cancelled THEN now() ELSE cancelled_at END,
		    is_cancelled = COALESCE($5::boolean, is_cancelled),
		    updated_at   = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, naivePtr(upd.StartTime), upd.IsPaid, upd.IsConfirmed, upd.IsCancelled)

	updated, err := r.scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return updated, nil
}

func (r *PgRepository) CreatePatient(ctx context.Context, p PatientProfile) (*PatientProfile, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patient_profiles (id, name, first_name, last_name, therapist_id, is_active, date_added)
		VALUES ($1, $2, $3, $4, $5, true, now())
		RETURNING `+patientColumns+`
	`, p.ID, p.Name, p.FirstName, p.LastName, NormalizeTherapist(p.TherapistID))

	created, err := r.scanPatient(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicatePatient
		}
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return created, nil
}

func (r *PgRepository) SetPatientActive(ctx context.Context, id uuid.UUID, active bool, lastSession *time.Time) (*PatientProfile, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patient_profiles
		SET is_active         = $2,
		    date_inactivated  = CASE WHEN $2 THEN NULL ELSE now() END,
		    last_session_date = COALESCE($3::timestamp, last_session_date)
		WHERE id = $1
		RETURNING `+patientColumns+`
	`, id, active, naivePtr(lastSession))

	return r.scanPatient(row)
}

func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var name, therapist string
	err = tx.QueryRow(ctx, `
		SELECT name, COALESCE(NULLIF(therapist_id, ''), $2)
		FROM patient_profiles
		WHERE id = $1
		FOR UPDATE
	`, id, FallbackTherapist).Scan(&name, &therapist)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrPatientNotFound
		}
		return 0, fmt.Errorf("load patient: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM appointments
		WHERE lower(trim(patient_name)) = lower(trim($1))
		  AND COALESCE(NULLIF(therapist_id, ''), $3) = $2
	`, name, therapist, FallbackTherapist)
	if err != nil {
		return 0, fmt.Errorf("delete patient appointments: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM patient_profiles WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete patient: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
