package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bookwell/booking/internal/booking"
)

var (
	ErrLockNotAcquired = errors.New("appointment lock not acquired")
)

// appointmentLocker guards the reservation-create critical section
// with a per-appointment Redis key. It implements booking.Locker.
type appointmentLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAppointmentLocker creates a locker that uses a per appointment
// Redis key.
func NewAppointmentLocker(client *redis.Client, ttl time.Duration) booking.Locker {
	return &appointmentLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *appointmentLocker) WithAppointmentLock(ctx context.Context, appointmentID string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:appointment:%s", appointmentID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire appointment lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
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

func (l *appointmentLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release appointment lock: %w", err)
	}
	return nil
}
