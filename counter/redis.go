package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every error returned by a durable store.
var ErrUnavailable = errors.New("counter store unavailable")

// Durable is the shared counter capability. Implementations must make
// IncrWithTTL atomic at the storage layer.
type Durable interface {
	// IncrWithTTL increments key and returns the running count. The first
	// increment of a window arms a TTL equal to window.
	IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, error)
	// TTL reports the remaining lifetime of key. Missing keys and keys
	// without a TTL report zero.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// A key that lost its TTL (PERSIST, or a crash between INCR and EXPIRE on an
// older writer) is re-armed so it cannot lock an identity out forever.
const incrWithTTLScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var incrWithTTLLua = redis.NewScript(incrWithTTLScript)

// Redis is a [Durable] backed by any go-redis client.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis returns a [Redis] counter. client must not be nil.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// IncrWithTTL implements [Durable].
//
//	Performance: 1 Redis EVALSHA.
func (r *Redis) IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, error) {
	if window < time.Millisecond {
		return 0, fmt.Errorf("counter window must be at least 1ms, got %s", window)
	}
	count, err := incrWithTTLLua.Run(ctx, r.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

// TTL implements [Durable].
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// go-redis reports -1 (no TTL) and -2 (missing) as raw negative durations.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
