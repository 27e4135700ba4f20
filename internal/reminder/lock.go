package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when another reminder run holds the lock.
var ErrRunInProgress = errors.New("reminder run already in progress")

// Lock serialises reminder runs. Acquire returns ErrRunInProgress when busy.
type Lock interface {
	Acquire(ctx context.Context) (unlock func(), err error)
}

// LocalLock serialises runs inside one process.
type LocalLock struct {
	mu sync.Mutex
}

// NewLocalLock returns a lock for single-process deployments.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	return l.mu.Unlock, nil
}

const redisLockKey = "taskhub:reminders:run"

// Deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLock serialises runs across processes with SET NX PX. The TTL bounds how
// long a crashed holder blocks later runs.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLock creates a RedisLock. ttl <= 0 defaults to ten minutes.
func NewRedisLock(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLock{client: client, key: redisLockKey, ttl: ttl, logger: logger}
}

func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire reminder lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release reminder lock", "error", err)
		}
	}, nil
}
