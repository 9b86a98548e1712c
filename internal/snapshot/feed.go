package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
)

// Loader reads the full data set from the persistence collaborator.
type Loader interface {
	ListAppointments(ctx context.Context) ([]appointment.Appointment, error)
	ListPatients(ctx context.Context) ([]appointment.PatientProfile, error)
}

// Feed keeps a Store in sync with storage. Every committed write on any
// instance is announced on the Redis changes channel, and each instance
// reloads when it hears about a write it did not make. A periodic reload
// covers missed messages.
type Feed struct {
	loader  Loader
	store   *Store
	rdb     *redis.Client
	origin  string
	refresh time.Duration
	logger  *zap.Logger

	reloadMu sync.Mutex
}

// NewFeed creates a feed. rdb may be nil, in which case changes are only
// applied locally. A refresh of zero disables periodic reloads.
func NewFeed(loader Loader, store *Store, rdb *redis.Client, refresh time.Duration, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		loader:  loader,
		store:   store,
		rdb:     rdb,
		origin:  uuid.NewString(),
		refresh: refresh,
		logger:  logger,
	}
}

func (f *Feed) Origin() string {
	return f.origin
}

// Reload replaces the store contents with a full read from storage. On
// failure the previous snapshot stays in place.
func (f *Feed) Reload(ctx context.Context) error {
	f.reloadMu.Lock()
	defer f.reloadMu.Unlock()

	appts, err := f.loader.ListAppointments(ctx)
	if err != nil {
		return &appointment.TransportError{Op: "load appointments", Err: err}
	}
	patients, err := f.loader.ListPatients(ctx)
	if err != nil {
		return &appointment.TransportError{Op: "load patients", Err: err}
	}

	snap := f.store.Update(appts, patients)
	f.logger.Debug("snapshot reloaded",
		zap.Uint64("version", snap.Version),
		zap.Int("appointments", len(snap.Appointments)),
		zap.Int("patients", len(snap.Patients)),
	)
	return nil
}

// Start performs the initial load and then follows changes until ctx is done.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.Reload(ctx); err != nil {
		return fmt.Errorf("initial snapshot load: %w", err)
	}

	var pubsub *redis.PubSub
	if f.rdb != nil {
		pubsub = f.rdb.Subscribe(ctx, redisclient.ChangesChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return fmt.Errorf("subscribe %s: %w", redisclient.ChangesChannel, err)
		}
	}

	go f.run(ctx, pubsub)
	return nil
}

func (f *Feed) run(ctx context.Context, pubsub *redis.PubSub) {
	var messages <-chan *redis.Message
	if pubsub != nil {
		defer pubsub.Close()
		messages = pubsub.Channel()
	}

	var tick <-chan time.Time
	if f.refresh > 0 {
		ticker := time.NewTicker(f.refresh)
		defer ticker.Stop()
		tick = ticker.C
	}

	f.logger.Info("snapshot feed started",
		zap.String("origin", f.origin),
		zap.Duration("refresh", f.refresh),
		zap.Bool("redis", pubsub != nil),
	)

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("snapshot feed stopped")
			return
		case <-tick:
			f.reloadAndLog(ctx, "periodic")
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			change, err := redisclient.DecodeChange(msg.Payload)
			if err != nil {
				f.logger.Warn("ignoring change message", zap.Error(err))
				continue
			}
			if change.Origin == f.origin {
				continue
			}
			f.reloadAndLog(ctx, change.Reason)
		}
	}
}

func (f *Feed) reloadAndLog(ctx context.Context, reason string) {
	if err := f.Reload(ctx); err != nil {
		f.logger.Error("snapshot reload failed", zap.String("reason", reason), zap.Error(err))
	}
}

// NotifyChanged reloads the local snapshot and tells other instances to do
// the same.
func (f *Feed) NotifyChanged(ctx context.Context, reason string) {
	f.reloadAndLog(ctx, reason)

	if f.rdb == nil {
		return
	}
	msg := redisclient.ChangeMessage{Origin: f.origin, Reason: reason, At: time.Now()}
	if err := redisclient.Publish(ctx, f.rdb, redisclient.ChangesChannel, msg); err != nil {
		f.logger.Warn("failed to publish change", zap.String("reason", reason), zap.Error(err))
	}
}
