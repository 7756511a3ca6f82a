// Package authgate provides the authentication token lifecycle and the abuse
// rate-limiting engine that protects it.
//
// Credentials become signed access/refresh token pairs; refresh tokens rotate
// on every use and are single-use; logout blacklists the presented token and
// logout-all bumps a per-account version that every token carries. Each
// auth-sensitive action first passes a fixed-window rate limiter keyed by
// client IP and, when present, by a hash of the normalized identity.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface: [Engine], [Builder], [Config], and value
// types. Token encoding lives in jwt, counters in counter, revocation state
// in revocation, and the rule engine in internal/rate.
//
// # Failure policy
//
//   - Rate limiting never fails on its store: durable errors degrade to the
//     in-process fallback for that check.
//   - Refresh rotation fails closed with [ErrStoreUnavailable].
//   - Logout swallows store errors once the access token decoded.
//
// # What this package must NOT do
//
//   - Expose Redis clients or internal stores in its public API.
//   - Log raw identities or tokens. Logs and audit events carry fingerprints.
//   - Import any sub-package that re-imports authgate (no import cycles).
package authgate
