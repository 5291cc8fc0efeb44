// Package store is the key-value client shared by the code registry, the
// session lock manager and the zone-input storage.  Every operation touches a
// single key and is atomic on the server side.  Transport and authentication
// failures are reported as ErrUnavailable so callers can tell them apart from
// a key that simply does not exist.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned (wrapped) when the remote store cannot be reached,
// rejects the credentials or answers with an error payload.
var ErrUnavailable = errors.New("store unavailable")

// SetOptions controls a Set call.  A zero TTL writes a key without expiry.
// OnlyIfAbsent turns the write into a server-side conditional create
// (SET ... NX); it is never emulated with a read followed by a write.
type SetOptions struct {
	TTL          time.Duration
	OnlyIfAbsent bool
}

// Store is the contract of the remote key-value store.
//
//   - Get reports ok=false for a missing key.
//   - Set reports ok=false only when OnlyIfAbsent is set and the key exists.
//   - Swap replaces the value only while it still equals old, in one
//     server-side step, and reports whether it did.
//   - TTL reports known=false for a missing key or a key without expiry.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, opts SetOptions) (ok bool, err error)
	Swap(ctx context.Context, key, old, value string, ttl time.Duration) (ok bool, err error)
	Del(ctx context.Context, key string) error
	TTL(ctx context.Context, key string) (remaining time.Duration, known bool, err error)
	Ping(ctx context.Context) error
}

// swapScript is the compare-and-set behind Swap on the Redis-speaking
// backends.  ARGV[3] is the TTL in milliseconds; 0 writes without expiry.
const swapScript = `
local cur = redis.call('GET', KEYS[1])
if cur ~= ARGV[1] then
    return 0
end
if tonumber(ARGV[3]) > 0 then
    redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
    redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %v", ErrUnavailable, op, key, err)
}

// ttlSeconds rounds a positive duration up to whole seconds, the resolution
// of the EX argument.
func ttlSeconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	if s < 1 {
		s = 1
	}
	return s
}
