// Package lock provides a Redis-backed mutual exclusion for scoring runs
// that span several service instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when releasing a lock that expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release gives a lock back.
type Release func(ctx context.Context) error

// Locker acquires short-lived named locks with SET NX PX.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// NewLocker returns a Locker namespacing keys under prefix.
func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Acquire tries once to take key for ttl. ok is false when another holder
// owns it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	full := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{full}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", full, err)
		}
		if n == 0 {
			return fmt.Errorf("release %s: %w", full, ErrNotHeld)
		}
		return nil
	}
	return release, true, nil
}
