// Package locking serializes taxonomy writes across processes with Redis
// leases.
package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/referralintake/internal/domain/providers"
	redisclient "github.com/zatekoja/referralintake/internal/infrastructure/clients/redis"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
)

const (
	// DefaultLeaseTTL bounds how long a crashed holder can block a key
	DefaultLeaseTTL = 30 * time.Second

	leaseKeyPrefix  = "lease:"
	minPollInterval = 25 * time.Millisecond
	maxPollInterval = 500 * time.Millisecond
)

// releaseScript deletes the lease only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements NameLocker with SET NX PX leases
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisLocker creates a locker whose leases expire after ttl
func NewRedisLocker(client *redisclient.Client, ttl time.Duration) providers.NameLocker {
	return newRedisLocker(client.Client(), ttl)
}

func newRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire polls until the lease on key is held or ctx ends
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	leaseKey := leaseKeyPrefix + key
	token := uuid.New().String()
	interval := minPollInterval

	for {
		ok, err := l.client.SetNX(ctx, leaseKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
		}
		if ok {
			return l.releaser(leaseKey, token), nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("waiting for lease %s: %w", key, ctx.Err())
		case <-timer.C:
		}
		if interval *= 2; interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}

func (l *RedisLocker) releaser(leaseKey, token string) func() {
	return func() {
		// the caller's context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{leaseKey}, token).Err(); err != nil {
			observability.GetLogger().Warn().Err(err).Str("lease", leaseKey).Msg("Failed to release lease")
		}
	}
}
