package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// ErrLockHeld is returned when another holder owns the key after all retries.
var ErrLockHeld = errors.New("lock held by another process")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the key still carries our token.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lock is a single-key mutex with expiry, shared by every process that
// refreshes views against the same database. While held, the expiry is
// renewed every ttl/3, so ttl bounds how long a crashed holder blocks
// others rather than how long a refresh may take.
type Lock struct {
	rdb   *goredis.Client
	log   *logger.Logger
	retry time.Duration
	wait  time.Duration
}

func NewLock(rdb *goredis.Client, log *logger.Logger) *Lock {
	return &Lock{
		rdb:   rdb,
		log:   log.With("service", "RedisLock"),
		retry: 250 * time.Millisecond,
		wait:  30 * time.Second,
	}
}

// Lock blocks until key is acquired, the wait budget runs out, or ctx ends.
func (l *Lock) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis lock not initialized")
	}
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx %s: %w", key, err)
		}
		if ok {
			l.log.Debug("Lock acquired", "key", key, "ttl", ttl.String())
			stop := l.keepAlive(key, token, ttl)
			return func(ctx context.Context) error {
				stop()
				return l.release(ctx, key, token)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// keepAlive renews the key until the returned stop func is called or the
// key is lost. stop waits for the renewal goroutine to exit.
func (l *Lock) keepAlive(key, token string, ttl time.Duration) (stop func()) {
	interval := ttl / 3
	if interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := extendScript.Run(ctx, l.rdb, []string{key}, token, ttl.Milliseconds()).Int()
				if err != nil {
					if ctx.Err() == nil {
						l.log.Warn("Lock renewal failed", "key", key, "error", err)
					}
					continue
				}
				if n == 0 {
					l.log.Warn("Lock lost before release", "key", key)
					return
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (l *Lock) release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	if n == 0 {
		l.log.Warn("Lock expired before release", "key", key)
	}
	return nil
}
