// Package rate applies (limit, window) rules per IP and per identity on top
// of the counter package, choosing the durable store first and the in-process
// fallback when the durable store errors.
//
// # Window semantics
//
// Fixed window: INCR, arm the TTL on the first hit, deny once the count
// exceeds the limit. Up to 2x limit requests can land across a window
// boundary. Keys:
//   - auth:<action>:ip:<ip>:<window>s
//   - auth:<action>:id:<keyed hash>:<window>s
//
// Every rule of every applicable rule set is incremented on each call, so
// counters reflect true attempt volume even after one rule has denied.
//
// # What this package must NOT do
//
//   - Propagate counter-store errors to callers.
//   - Write raw identities to the store or to logs.
//   - Be imported outside the authgate module.
package rate
