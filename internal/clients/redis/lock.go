package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Lease locks back the two mutual-exclusion points in the engine: the
// per-user preference update lock and the per-cache-key computation lock.
// They are SET NX PX leases, so a crashed holder frees the key when the
// lease runs out instead of wedging it forever. Release checks the token
// before deleting so an expired holder cannot free a successor's lease.

var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Acquire attempts to take the lease once. Returns the release token and
// whether the lease was obtained.
func (c *Client) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// AcquireWait retries Acquire until the lease is obtained, maxWait elapses,
// or ctx is cancelled. Waiters are effectively queued in arrival order by
// the retry loop, which is what serializes concurrent feedback for a user.
func (c *Client) AcquireWait(ctx context.Context, key string, ttl, maxWait time.Duration) (string, bool, error) {
	deadline := time.Now().Add(maxWait)
	for {
		token, ok, err := c.Acquire(ctx, key, ttl)
		if err != nil {
			return "", false, err
		}
		if ok {
			return token, true, nil
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (c *Client) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	return nil
}
