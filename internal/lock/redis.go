package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultKey = "tadasupo:mutation-lock"
	// lease bounds how long a crashed holder can block others.
	defaultLease = time.Minute
	pollInterval = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a guard shared by every instance pointing at the same Redis.
type Redis struct {
	rdb     *redis.Client
	key     string
	lease   time.Duration
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRedis(rdb *redis.Client, timeout time.Duration, logger zerolog.Logger) *Redis {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Redis{rdb: rdb, key: defaultKey, lease: defaultLease, timeout: timeout, logger: logger}
}

func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	token := uuid.NewString()
	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(waitCtx, r.key, token, r.lease).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("lock SETNX: %w", err)
		}
		if ok {
			observeWait(start)
			return r.releaser(token), nil
		}
		select {
		case <-waitCtx.Done():
			return nil, busy(waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) releaser(token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.rdb, []string{r.key}, token).Err(); err != nil {
				r.logger.Warn().Err(err).Msg("lock release failed; lease will expire")
			}
		})
	}
}
