package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/auth"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/snapshot"
)

type memRepo struct {
	mu       sync.Mutex
	appts    []appointment.Appointment
	patients []appointment.PatientProfile
}

func (r *memRepo) ListAppointments(ctx context.Context) ([]appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]appointment.Appointment(nil), r.appts...), nil
}

func (r *memRepo) ListPatients(ctx context.Context) ([]appointment.PatientProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]appointment.PatientProfile(nil), r.patients...), nil
}

func (r *memRepo) CreateAppointment(ctx context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := appointment.CheckSlotConflict(a.StartTime, r.appts, uuid.Nil, a.TherapistID); c != nil {
		return nil, &appointment.WriteConflictError{Conflict: *c}
	}
	a.ID = uuid.New()
	r.appts = append(r.appts, a)
	return &a, nil
}

func (r *memRepo) UpdateAppointment(ctx context.Context, id uuid.UUID, upd appointment.AppointmentUpdate) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.appts {
		a := &r.appts[i]
		if a.ID != id {
			continue
		}
		if upd.StartTime != nil {
			a.StartTime = *upd.StartTime
		}
		if upd.IsPaid != nil {
			a.IsPaid = *upd.IsPaid
		}
		if upd.IsConfirmed != nil {
			a.IsConfirmed = *upd.IsConfirmed
		}
		if upd.IsCancelled != nil {
			a.IsCancelled = *upd.IsCancelled
		}
		out := *a
		return &out, nil
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (r *memRepo) CreatePatient(ctx context.Context, p appointment.PatientProfile) (*appointment.PatientProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.IsActive = true
	r.patients = append(r.patients, p)
	return &p, nil
}

func (r *memRepo) SetPatientActive(ctx context.Context, id uuid.UUID, active bool, lastSession *time.Time) (*appointment.PatientProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.patients {
		if r.patients[i].ID == id {
			r.patients[i].IsActive = active
			out := r.patients[i]
			return &out, nil
		}
	}
	return nil, appointment.ErrPatientNotFound
}

func (r *memRepo) DeletePatient(ctx context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.patients {
		if p.ID == id {
			r.patients = append(r.patients[:i], r.patients[i+1:]...)
			return 0, nil
		}
	}
	return 0, appointment.ErrPatientNotFound
}

func (r *memRepo) InsertEvent(ctx context.Context, ev appointment.EventLog) error {
	return nil
}

type passLocker struct{}

func (passLocker) WithTherapistLock(ctx context.Context, therapistID string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const testSecret = "api-test-secret"

type testServer struct {
	handler http.Handler
	repo    *memRepo
	authn   *auth.Authenticator
}

func newTestServer(t *testing.T, secret string, seed ...appointment.Appointment) *testServer {
	t.Helper()

	repo := &memRepo{appts: seed}
	store := snapshot.NewStore()
	feed := snapshot.NewFeed(repo, store, nil, 0, nil)
	if err := feed.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := appointment.NewService(repo, store, passLocker{}, feed, config.Config{Timezone: "UTC"}, nil)
	authn := auth.NewAuthenticator(secret, "")

	return &testServer{
		handler: NewRouter(RouterConfig{
			Service: svc,
			Auth:    authn,
			Health:  NewHealthHandler(nil, nil, store, "test", "v0"),
		}),
		repo:  repo,
		authn: authn,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, p *auth.Principal) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if p != nil {
		tok, err := s.authn.IssueToken(*p, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func seeded(name, date, therapist string, cost float64) appointment.Appointment {
	start, _ := time.Parse("2006-01-02T15:04", date)
	return appointment.Appointment{ID: uuid.New(), PatientName: name, StartTime: start, TherapistID: therapist, Cost: cost}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	if rec := s.do(t, http.MethodGet, "/health/live", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("live = %d", rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/health/ready", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready = %d", rec.Code)
	}
	resp := decode[ReadinessResponse](t, rec)
	if resp.Dependencies["snapshot"] != "ok" {
		t.Errorf("dependencies = %v", resp.Dependencies)
	}
}

func TestCreateAppointmentAndWeekView(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodPost, "/appointments", map[string]any{
		"patient_name": "Ana",
		"date":         "2030-06-11T10:00",
		"cost":         45,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	booked := decode[BookingResponse](t, rec)
	if booked.State != "committed" || booked.Appointment == nil || booked.Appointment.TherapistID != "diana" {
		t.Fatalf("unexpected booking %+v", booked)
	}
	if booked.Appointment.Cost == nil || *booked.Appointment.Cost != 45 {
		t.Errorf("admin should see the cost")
	}

	rec = s.do(t, http.MethodGet, "/calendar/week?date=2030-06-13&therapist=diana", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("week = %d", rec.Code)
	}
	week := decode[WeekResponse](t, rec)
	if week.Start != "2030-06-10" || len(week.Days) != 6 {
		t.Fatalf("unexpected week %+v", week)
	}
	if len(week.Days[1].Appointments) != 1 || week.Days[1].Appointments[0].PatientName != "Ana" {
		t.Errorf("booking not visible in week view: %+v", week.Days[1])
	}
}

func TestCreateAppointmentValidationFailure(t *testing.T) {
	s := newTestServer(t, "", seeded("Bob", "2030-06-11T10:30", "diana", 0))

	rec := s.do(t, http.MethodPost, "/appointments", map[string]any{
		"patient_name": "Ana",
		"date":         "2030-06-11T10:00",
		"cost":         "-5",
	}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	want := []string{appointment.MsgCostInvalid, "the 10:00 slot is already taken by Bob"}
	if resp.Error != "validation_failed" || strings.Join(resp.Messages, "|") != strings.Join(want, "|") {
		t.Errorf("unexpected error body %+v", resp)
	}
}

func TestCreateAppointmentRejectsNonFiniteCost(t *testing.T) {
	s := newTestServer(t, "")

	for _, cost := range []string{"NaN", "Inf", "-Infinity"} {
		rec := s.do(t, http.MethodPost, "/appointments", map[string]any{
			"patient_name": "Ana",
			"date":         "2030-06-11T10:00",
			"cost":         cost,
		}, nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("cost %s: status = %d", cost, rec.Code)
		}
	}

	rec := s.do(t, http.MethodGet, "/calendar/week?date=2030-06-13", nil, nil)
	if rec.Code != http.StatusOK || len(decode[WeekResponse](t, rec).Days[1].Appointments) != 0 {
		t.Errorf("week view after rejected bookings = %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSeriesPartial(t *testing.T) {
	s := newTestServer(t, "", seeded("Bob", "2030-06-18T10:00", "diana", 0))

	rec := s.do(t, http.MethodPost, "/appointments", map[string]any{
		"patient_name": "Ana",
		"date":         "2030-06-11T10:00",
		"recurrence":   map[string]any{"stride": "weekly", "sessions": 3},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[SeriesResponse](t, rec)
	if resp.State != "partial_committed" || len(resp.Booked) != 2 || len(resp.Skipped) != 1 {
		t.Fatalf("unexpected series %+v", resp)
	}
	if resp.Skipped[0].Date != "2030-06-18T10:00" || resp.Skipped[0].ConflictName != "Bob" {
		t.Errorf("skipped = %+v", resp.Skipped[0])
	}
}

func TestPreviewSeries(t *testing.T) {
	s := newTestServer(t, "", seeded("Bob", "2030-06-25T10:00", "diana", 0))

	rec := s.do(t, http.MethodPost, "/appointments/recurrence/preview", map[string]any{
		"date":       "2030-06-11T10:00",
		"recurrence": map[string]any{"stride": "biweekly", "sessions": 3},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	occ := decode[[]OccurrenceResponse](t, rec)
	if len(occ) != 2 || !occ[0].HasConflict || occ[1].Date != "2030-07-09T10:00" {
		t.Errorf("unexpected preview %+v", occ)
	}
}

func TestRescheduleCancelAndConfirm(t *testing.T) {
	ana := seeded("Ana", "2030-06-11T10:00", "diana", 0)
	s := newTestServer(t, "", ana)

	rec := s.do(t, http.MethodPatch, "/appointments/"+ana.ID.String(), RescheduleRequest{Date: "2030-06-12T11:00"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[BookingResponse](t, rec); got.Appointment.Date != "2030-06-12T11:00" {
		t.Errorf("date = %s", got.Appointment.Date)
	}

	rec = s.do(t, http.MethodPost, "/appointments/"+ana.ID.String()+"/confirm", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("confirm without cost = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/appointments/"+ana.ID.String()+"/cancel", nil, nil)
	if rec.Code != http.StatusOK || !decode[AppointmentResponse](t, rec).IsCancelled {
		t.Fatalf("cancel = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/appointments/"+ana.ID.String()+"/paid", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("paid after cancel = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/appointments/"+uuid.NewString()+"/cancel", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id = %d", rec.Code)
	}
}

func TestSlotsEndpoints(t *testing.T) {
	bob := seeded("Bob", "2030-06-11T10:30", "diana", 0)
	s := newTestServer(t, "", bob)

	rec := s.do(t, http.MethodGet, "/slots/check?at=2030-06-11T10:00&therapist=diana", nil, nil)
	check := decode[CheckSlotResponse](t, rec)
	if check.Free || check.ConflictWith == nil || check.ConflictWith.PatientName != "Bob" {
		t.Errorf("unexpected check %+v", check)
	}

	rec = s.do(t, http.MethodGet, "/slots/check?at=2030-06-11T10:00&exclude="+bob.ID.String(), nil, nil)
	if !decode[CheckSlotResponse](t, rec).Free {
		t.Error("excluded appointment should not block")
	}

	rec = s.do(t, http.MethodGet, "/slots/day?date=2030-06-11", nil, nil)
	slots := decode[[]SlotResponse](t, rec)
	if len(slots) != 11 || slots[1].Free || slots[1].BusyWith != "Bob" {
		t.Errorf("unexpected day slots %+v", slots)
	}

	rec = s.do(t, http.MethodGet, "/appointments/"+bob.ID.String()+"/reschedule-options", nil, nil)
	opts := decode[[]string](t, rec)
	// Wed 12 to Tue 18 without Sunday
	if len(opts) != 6 || opts[0] != "2030-06-12T10:30" {
		t.Errorf("unexpected reschedule options %v", opts)
	}

	rec = s.do(t, http.MethodGet, "/slots/check?at=tomorrow", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d", rec.Code)
	}
}

func TestAuthAndVisibility(t *testing.T) {
	s := newTestServer(t, testSecret,
		seeded("Marta's patient", "2030-06-11T10:00", "marta", 60),
	)

	if rec := s.do(t, http.MethodGet, "/calendar/week?date=2030-06-11", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d", rec.Code)
	}

	diana := &auth.Principal{Subject: "d", Role: auth.RoleTherapist, TherapistID: "diana"}
	marta := &auth.Principal{Subject: "m", Role: auth.RoleTherapist, TherapistID: "marta"}
	desk := &auth.Principal{Subject: "r", Role: auth.RoleReceptionist}

	rec := s.do(t, http.MethodGet, "/calendar/week?date=2030-06-11&therapist=marta", nil, diana)
	week := decode[WeekResponse](t, rec)
	got := week.Days[1].Appointments
	if len(got) != 1 || got[0].Cost != nil || got[0].IsPaid != nil {
		t.Errorf("diana should not see marta's payments: %+v", got)
	}

	rec = s.do(t, http.MethodGet, "/calendar/week?date=2030-06-11", nil, marta)
	week = decode[WeekResponse](t, rec)
	if week.TherapistID != "marta" || week.Days[1].Appointments[0].Cost == nil {
		t.Errorf("marta should see her own calendar with payments: %+v", week)
	}

	rec = s.do(t, http.MethodPost, "/appointments", map[string]any{
		"patient_name": "Ana", "date": "2030-06-12T10:00", "therapist_id": "marta",
	}, diana)
	if rec.Code != http.StatusForbidden {
		t.Errorf("diana booking for marta = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/appointments", map[string]any{
		"patient_name": "Ana", "date": "2030-06-12T10:00", "therapist_id": "marta",
	}, desk)
	if rec.Code != http.StatusCreated {
		t.Errorf("receptionist booking = %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(t, http.MethodGet, "/patients", nil, desk); rec.Code != http.StatusForbidden {
		t.Errorf("receptionist patient list = %d", rec.Code)
	}
}

func TestPatientEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodPost, "/patients", CreatePatientRequest{FirstName: "Ana", LastName: "Ruiz"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	created := decode[PatientResponse](t, rec)
	if created.Name != "Ana Ruiz" || created.TherapistID != "diana" {
		t.Errorf("unexpected patient %+v", created)
	}

	rec = s.do(t, http.MethodPost, "/patients", CreatePatientRequest{FirstName: "ana", LastName: "ruiz"}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/patients", CreatePatientRequest{FirstName: "A"}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("short name = %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/patients?therapist=diana", nil, nil)
	if list := decode[[]PatientResponse](t, rec); len(list) != 1 {
		t.Errorf("list = %+v", list)
	}

	rec = s.do(t, http.MethodGet, "/patients/"+created.ID.String()+"/summary", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("summary = %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/patients/"+created.ID.String()+"/suggestion", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("suggestion without history = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/patients/"+created.ID.String()+"/deactivate", nil, nil)
	if rec.Code != http.StatusOK || decode[PatientResponse](t, rec).IsActive {
		t.Errorf("deactivate = %d", rec.Code)
	}

	rec = s.do(t, http.MethodDelete, "/patients/"+created.ID.String(), nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	rec = s.do(t, http.MethodDelete, "/patients/"+created.ID.String(), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
}

func TestCostFieldAcceptsNumbersAndStrings(t *testing.T) {
	tests := []struct {
		body string
		want costField
	}{
		{`{"cost": 12.5}`, "12.5"},
		{`{"cost": "abc"}`, "abc"},
		{`{"cost": null}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		var req CreateAppointmentRequest
		if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Cost != tt.want {
			t.Errorf("%s: cost = %q, want %q", tt.body, req.Cost, tt.want)
		}
	}
}
