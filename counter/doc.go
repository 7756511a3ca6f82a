// Package counter provides the keyed increment-with-expiry primitive used by
// rate limiting.
//
// Two variants exist. [Redis] is the shared durable store: one Lua round trip
// increments a key and arms its TTL on the first hit of a window. [Memory] is
// the process-local fallback holding {count, resetAt} buckets behind a single
// mutex. The limiter tries the durable store first and degrades to the
// fallback for a single check whenever the durable call errors.
//
// # Window semantics
//
// Fixed window. The first writer defines the window boundary; the bucket
// resets once now >= resetAt (Memory) or the TTL elapses (Redis).
//
// # What this package must NOT do
//
//   - Decide allow/deny for multiple rules (that lives in internal/rate).
//   - Hide durable-store errors. Every failure is returned wrapped in [ErrUnavailable].
//   - Hold a lock across I/O.
package counter
