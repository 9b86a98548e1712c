package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/calendar"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/snapshot"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "schedctl",
		Short:         "Inspect and maintain the practice schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("therapist", appointment.FallbackTherapist, "Therapist calendar to work on")

	rootCmd.AddCommand(weekCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(occurrencesCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is what every snapshot-backed command works with.
type env struct {
	cfg   config.Config
	pool  *pgxpool.Pool
	store *snapshot.Store
}

func (e *env) close() {
	e.pool.Close()
}

func (e *env) loc() *time.Location {
	return e.cfg.Location()
}

func loadEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := appointment.NewPgRepository(pool, cfg.Location())
	store := snapshot.NewStore()
	if err := snapshot.NewFeed(repo, store, nil, 0, zap.NewNop()).Reload(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &env{cfg: cfg, pool: pool, store: store}, nil
}

func therapistFlag(cmd *cobra.Command) string {
	t, _ := cmd.Flags().GetString("therapist")
	if strings.EqualFold(strings.TrimSpace(t), appointment.AllTherapists) {
		return appointment.AllTherapists
	}
	return appointment.NormalizeTherapist(t)
}

// dateFlag parses --date as YYYY-MM-DD, defaulting to today.
func dateFlag(cmd *cobra.Command, loc *time.Location) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("date")
	if raw == "" {
		return calendar.StartOfDay(time.Now().In(loc)), nil
	}
	return calendar.ParseDate(raw, loc)
}

func weekCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print the working week containing a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			date, err := dateFlag(cmd, e.loc())
			if err != nil {
				return err
			}

			view := appointment.BuildWeekView(calendar.StartOfWeek(date), e.store.Appointments(), therapistFlag(cmd))
			fmt.Printf("Week %d starting %s (%s)\n", view.ISOWeek, calendar.FormatDateLocal(view.Start), view.TherapistID)
			for _, d := range view.Days {
				fmt.Printf("\n%s %s\n", d.Day.Weekday().String()[:3], d.Date)
				if len(d.Appointments) == 0 {
					fmt.Println("  -")
					continue
				}
				for _, a := range d.Appointments {
					fmt.Printf("  %s  %-30s %-8s %s\n", a.StartTime.Format("15:04"), a.PatientName,
						appointment.NormalizeTherapist(a.TherapistID), statusFlags(a))
				}
			}
			return nil
		},
	}
	cmd.Flags().String("date", "", "Any date in the week (YYYY-MM-DD), defaults to today")
	return cmd
}

func statusFlags(a appointment.Appointment) string {
	var flags []string
	if a.IsCancelled {
		flags = append(flags, "cancelled")
	}
	if a.IsConfirmed {
		flags = append(flags, "confirmed")
	}
	if a.IsPaid {
		flags = append(flags, "paid")
	}
	return strings.Join(flags, ",")
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List the hourly slots of a day or the free slots of the next days",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			date, err := dateFlag(cmd, e.loc())
			if err != nil {
				return err
			}
			therapist := therapistFlag(cmd)
			now := time.Now().In(e.loc())

			days, _ := cmd.Flags().GetInt("days")
			if days > 0 {
				for _, s := range appointment.FreeSlots(date, days, e.store.Appointments(), therapist, now) {
					fmt.Println(calendar.FormatLocal(s))
				}
				return nil
			}

			slots := appointment.DailySlots(date, e.store.Appointments(), therapist, now)
			if len(slots) == 0 {
				fmt.Println("no bookable slots on", calendar.FormatDateLocal(date))
				return nil
			}
			for _, s := range slots {
				state := "free"
				if !s.Free {
					state = "busy: " + s.BusyWith
				}
				fmt.Printf("%s  %s\n", s.Start.Format("15:04"), state)
			}
			return nil
		},
	}
	cmd.Flags().String("date", "", "Day to inspect (YYYY-MM-DD), defaults to today")
	cmd.Flags().Int("days", 0, "List free slots over this many days instead")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a proposed appointment against the booking rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			name, _ := cmd.Flags().GetString("name")
			at, _ := cmd.Flags().GetString("at")
			cost, _ := cmd.Flags().GetString("cost")

			res := appointment.Validate(appointment.ValidationInput{Name: name, Date: at, Cost: cost},
				e.store.Appointments(), therapistFlag(cmd), e.loc())
			if res.Valid {
				fmt.Println("ok")
				return nil
			}
			for _, msg := range res.Errors {
				fmt.Println("-", msg)
			}
			return fmt.Errorf("%d rule(s) violated", len(res.Errors))
		},
	}
	cmd.Flags().String("name", "", "Patient name")
	cmd.Flags().String("at", "", "Start time (YYYY-MM-DDTHH:MM)")
	cmd.Flags().String("cost", "", "Session cost")
	return cmd
}

func occurrencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "occurrences",
		Short: "Preview the repeats of a recurring booking",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			at, _ := cmd.Flags().GetString("at")
			base, err := calendar.ParseLocal(at, e.loc())
			if err != nil {
				return err
			}
			strideRaw, _ := cmd.Flags().GetString("stride")
			stride, err := appointment.ParseStride(strideRaw)
			if err != nil {
				return err
			}
			sessions, _ := cmd.Flags().GetInt("sessions")

			occs, err := appointment.GenerateOccurrences(base, therapistFlag(cmd), stride, sessions-1, e.store.Appointments())
			if err != nil {
				return err
			}
			fmt.Printf("0  %s  base\n", calendar.FormatLocal(base))
			for _, o := range occs {
				note := "free"
				if o.HasConflict {
					note = "conflict: " + o.ConflictName
				}
				fmt.Printf("%d  %s  %s\n", o.Index, calendar.FormatLocal(o.Start), note)
			}
			return nil
		},
	}
	cmd.Flags().String("at", "", "First session (YYYY-MM-DDTHH:MM)")
	cmd.Flags().String("stride", string(appointment.StrideWeekly), "weekly or biweekly")
	cmd.Flags().Int("sessions", 4, "Total sessions including the first")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			m, err := db.NewMigrator(pool, zap.NewNop())
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(ctx, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			if err := m.Up(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			return m.Down(ctx)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			v, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		}),
	})

	return cmd
}
