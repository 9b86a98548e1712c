package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("therapist lock not acquired")
)

// Locker is used by the scheduling coordinator to guard writes to one
// therapist's calendar.
type Locker interface {
	WithTherapistLock(ctx context.Context, therapistID string, fn func(ctx context.Context) error) error
}

type redisTherapistLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTherapistLocker creates a locker that uses a per therapist Redis key
func NewRedisTherapistLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisTherapistLocker{
		client: client,
		ttl:    ttl,
	}
}

func LockKey(therapistID string) string {
	return fmt.Sprintf("lock:therapist:%s", therapistID)
}

func (l *redisTherapistLocker) WithTherapistLock(ctx context.Context, therapistID string, fn func(ctx context.Context) error) error {
	key := LockKey(therapistID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire therapist lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release even when ctx was cancelled by the caller
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisTherapistLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release therapist lock: %w", err)
	}
	return nil
}
