package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/auth"
)

type RouterConfig struct {
	Service *appointment.Service
	Auth    *auth.Authenticator
	Health  *HealthHandler
	Logger  *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	h := &handlers{svc: cfg.Service, logger: logger}
	viewers := RequireAny(auth.ViewSchedule, auth.ManageSchedule, auth.ManageOwnSchedule)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))

		// Calendar and availability
		r.With(viewers).Get("/calendar/week", h.week)
		r.With(viewers).Get("/slots/day", h.daySlots)
		r.With(viewers).Get("/slots/check", h.checkSlot)
		r.With(viewers).Get("/slots/free", h.freeSlots)

		// Appointment endpoints
		r.Route("/appointments", func(r chi.Router) {
			r.With(viewers).Post("/validate", h.validate)
			r.With(viewers).Post("/recurrence/preview", h.previewSeries)
			r.Post("/", h.createAppointment)
			r.Patch("/{id}", h.reschedule)
			r.With(viewers).Get("/{id}/reschedule-options", h.rescheduleOptions)
			r.Post("/{id}/cancel", h.cancel)
			r.Post("/{id}/paid", h.togglePaid)
			r.Post("/{id}/confirm", h.toggleConfirmed)
		})

		// Patient endpoints
		r.Route("/patients", func(r chi.Router) {
			r.With(RequireAny(auth.ViewAllPatients, auth.ViewOwnPatients)).Get("/", h.listPatients)
			r.Post("/", h.createPatient)
			r.Get("/{id}/summary", h.patientSummary)
			r.Get("/{id}/suggestion", h.patientSuggestion)
			r.Post("/{id}/deactivate", h.deactivatePatient)
			r.Post("/{id}/reactivate", h.reactivatePatient)
			r.With(RequireAny(auth.DeleteRecords)).Delete("/{id}", h.deletePatient)
		})
	})

	return r
}
