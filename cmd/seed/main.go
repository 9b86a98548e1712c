package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/calendar"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/logger"
)

var therapists = []string{appointment.FallbackTherapist, "marta", "lucas"}

type seeder struct {
	repo   *appointment.PgRepository
	faker  *gofakeit.Faker
	loc    *time.Location
	logger *zap.Logger

	// existing grows with every inserted appointment so later picks are
	// validated against earlier ones.
	existing []appointment.Appointment
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()
	log.Info("seed starting")

	patientsPerTherapist := getInt("SEED_PATIENTS", 12)
	weeks := getInt("SEED_WEEKS", 4)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := db.NewMigrator(pool, log)
	if err != nil {
		log.Fatal("migrator setup", zap.Error(err))
	}
	if err := migrator.Up(ctx); err != nil {
		log.Fatal("apply migrations", zap.Error(err))
	}
	_ = migrator.Close()

	repo := appointment.NewPgRepository(pool, cfg.Location())
	existing, err := repo.ListAppointments(ctx)
	if err != nil {
		log.Fatal("load appointments", zap.Error(err))
	}

	s := &seeder{
		repo:     repo,
		faker:    gofakeit.New(0),
		loc:      cfg.Location(),
		logger:   log,
		existing: existing,
	}

	for _, therapist := range therapists {
		if err := s.seedTherapist(ctx, therapist, patientsPerTherapist, weeks); err != nil {
			log.Fatal("seed therapist", zap.String("therapist", therapist), zap.Error(err))
		}
	}

	log.Info("seed complete", zap.Int("appointments", len(s.existing)))
}

// seedTherapist creates patients for one therapist and gives each a weekly
// slot from weeks before the current week to weeks after it.
func (s *seeder) seedTherapist(ctx context.Context, therapist string, count, weeks int) error {
	s.logger.Info("seeding therapist", zap.String("therapist", therapist), zap.Int("patients", count))

	firstWeek := calendar.AddDays(calendar.StartOfWeek(time.Now().In(s.loc)), -7*weeks)
	now := time.Now().In(s.loc)

	booked, skipped := 0, 0
	for i := 0; i < count; i++ {
		first, last := s.faker.FirstName(), s.faker.LastName()
		patient, err := s.repo.CreatePatient(ctx, appointment.PatientProfile{
			Name:        appointment.ComposeName(first, last),
			FirstName:   first,
			LastName:    last,
			TherapistID: therapist,
		})
		if errors.Is(err, appointment.ErrDuplicatePatient) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create patient: %w", err)
		}

		weekday := s.faker.Number(0, 5) // Monday..Saturday offset
		hour := s.faker.Number(appointment.OpeningHour, appointment.ClosingHour-1)
		cost := float64(s.faker.Number(8, 16) * 5)

		for w := 0; w <= 2*weeks; w++ {
			day := calendar.AddDays(firstWeek, 7*w+weekday)
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, s.loc)

			res := appointment.Validate(appointment.ValidationInput{
				Name: patient.Name,
				Date: calendar.FormatLocal(start),
				Cost: strconv.FormatFloat(cost, 'f', -1, 64),
			}, s.existing, therapist, s.loc)
			if !res.Valid {
				skipped++
				continue
			}

			past := start.Before(now)
			created, err := s.repo.CreateAppointment(ctx, appointment.Appointment{
				PatientName: patient.Name,
				StartTime:   res.Start,
				Cost:        cost,
				TherapistID: therapist,
				IsPaid:      past && s.faker.Bool(),
				IsConfirmed: past,
			})
			var conflict *appointment.WriteConflictError
			if errors.As(err, &conflict) {
				skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}
			s.existing = append(s.existing, *created)
			booked++
		}
	}

	s.logger.Info("therapist seeded",
		zap.String("therapist", therapist),
		zap.Int("booked", booked),
		zap.Int("skipped", skipped),
	)
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}
