package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/api"
	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/auth"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/logger"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
	"github.com/hackgods/therapy-scheduling/internal/snapshot"
)

const (
	version     = "1.0.0"
	tokenIssuer = "therapy-scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger depends on config, so fall back to stderr
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("timezone", cfg.Location().String()),
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

	if cfg.MigrationsAuto {
		migrator, err := db.NewMigrator(pgPool, log)
		if err != nil {
			log.Fatal("migrator setup error", zap.Error(err))
		}
		if err := migrator.Up(rootCtx); err != nil {
			log.Fatal("migration error", zap.Error(err))
		}
		_ = migrator.Close()
	}

	// Connect Redis
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
	feed := snapshot.NewFeed(repo, store, rdb, cfg.SnapshotRefresh, log)
	if err := feed.Start(rootCtx); err != nil {
		log.Fatal("initial snapshot load error", zap.Error(err))
	}
	snap := store.Snapshot()
	log.Info("snapshot loaded",
		zap.Int("appointments", len(snap.Appointments)),
		zap.Int("patients", len(snap.Patients)),
	)

	locker := redisclient.NewRedisTherapistLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(repo, store, locker, feed, cfg, log)

	authn := auth.NewAuthenticator(cfg.JWTSecret, tokenIssuer)
	if !authn.Enabled() {
		if cfg.IsProd() {
			log.Fatal("JWT_SECRET is required in prod")
		}
		log.Warn("JWT_SECRET not set, every request runs as the development admin")
	}

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Auth:    authn,
		Health:  api.NewHealthHandler(pgPool, rdb, store, cfg.Env, version),
		Logger:  log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	log.Info("api-server stopped")
}
