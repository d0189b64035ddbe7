package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "lock is held by another replica")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock is not held by this owner")
)

const lockPrefix = "matsel:lock:"

// releaseIfOwner deletes the key only while it still carries our token.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Mutex is a lease on a Redis key shared by every replica. The lease expires
// after its TTL even if the holder dies without unlocking.
type Mutex struct {
	client   *Client
	logger   logging.Logger
	key      string
	token    string
	ttl      time.Duration
	attempts int
	backoff  time.Duration
}

type LockOption func(*Mutex)

func WithLockTTL(ttl time.Duration) LockOption { return func(m *Mutex) { m.ttl = ttl } }

// WithRetryCount bounds how many times Lock tries before giving up.
func WithRetryCount(n int) LockOption { return func(m *Mutex) { m.attempts = n } }

func WithRetryDelay(d time.Duration) LockOption { return func(m *Mutex) { m.backoff = d } }

// NewMutex returns a mutex on name with a fresh owner token. Two Mutex values
// on the same name exclude each other even inside one process.
func NewMutex(client *Client, log logging.Logger, name string, opts ...LockOption) *Mutex {
	m := &Mutex{
		client:   client,
		logger:   log,
		key:      lockPrefix + name,
		token:    uuid.NewString(),
		ttl:      30 * time.Second,
		attempts: 30,
		backoff:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.attempts < 1 {
		m.attempts = 1
	}
	return m
}

// Lock polls TryLock until it succeeds, ctx ends or the attempts run out.
func (m *Mutex) Lock(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		ok, err := m.TryLock(ctx)
		switch {
		case err != nil:
			return err
		case ok:
			return nil
		case attempt >= m.attempts:
			return ErrLockNotAcquired
		}
		t := time.NewTimer(m.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	rdb, err := m.client.conn()
	if err != nil {
		return false, err
	}
	ok, err := rdb.SetNX(ctx, m.key, m.token, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "cannot acquire lock").WithDetail(m.key)
	}
	return ok, nil
}

// Unlock releases the lease. ErrLockNotHeld means it had already expired or
// belongs to someone else; nothing is deleted in that case.
func (m *Mutex) Unlock(ctx context.Context) error {
	rdb, err := m.client.conn()
	if err != nil {
		return err
	}
	n, err := releaseIfOwner.Run(ctx, rdb, []string{m.key}, m.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cannot release lock").WithDetail(m.key)
	}
	if n == 0 {
		m.logger.Warn("lock lease lost before release", logging.String("key", m.key))
		return ErrLockNotHeld
	}
	return nil
}
