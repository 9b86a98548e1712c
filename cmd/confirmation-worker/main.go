package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/calendar"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/logger"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
	"github.com/hackgods/therapy-scheduling/internal/snapshot"
)

type worker struct {
	feed   *snapshot.Feed
	svc    *appointment.Service
	rdb    *redis.Client
	logger *zap.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	log.Info("confirmation-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	repo := appointment.NewPgRepository(pgPool, cfg.Location())
	store := snapshot.NewStore()
	// The worker reloads on every run, so the feed never follows the channel.
	feed := snapshot.NewFeed(repo, store, nil, 0, log)
	locker := redisclient.NewRedisTherapistLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(repo, store, locker, feed, cfg, log)

	w := &worker{feed: feed, svc: svc, rdb: rdb, logger: log}

	// Run once at startup
	w.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping confirmation worker")
			return
		case <-ticker.C:
			w.runOnce(rootCtx)
		}
	}
}

func (w *worker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := w.feed.Reload(runCtx); err != nil {
		w.logger.Error("confirmation run error", zap.Error(err))
		return
	}

	pending := w.svc.PendingConfirmations()
	published := 0
	for _, a := range pending {
		w.logger.Info("appointment awaiting confirmation",
			zap.String("appointment_id", a.ID.String()),
			zap.String("patient", a.PatientName),
			zap.String("therapist", appointment.NormalizeTherapist(a.TherapistID)),
			zap.String("start_time", calendar.FormatLocal(a.StartTime)),
		)

		msg := redisclient.ReminderMessage{
			AppointmentID: a.ID.String(),
			PatientName:   a.PatientName,
			TherapistID:   appointment.NormalizeTherapist(a.TherapistID),
			StartTime:     calendar.FormatLocal(a.StartTime),
			At:            time.Now(),
		}
		if err := redisclient.Publish(runCtx, w.rdb, redisclient.RemindersChannel, msg); err != nil {
			w.logger.Warn("failed to publish reminder", zap.String("appointment_id", a.ID.String()), zap.Error(err))
			continue
		}
		published++
	}

	w.logger.Info("confirmation run complete",
		zap.Int("pending", len(pending)),
		zap.Int("published", published),
		zap.Duration("took", time.Since(start)),
	)
}
