// Package jwt is the token codec: it turns account claims into signed, expiring
// bearer strings and back.
//
// # Guarantees
//
//   - Issue is deterministic for identical claims and clock.
//   - Decode pins the configured algorithm; "none" and algorithm confusion are rejected.
//   - Every failure is a returned error wrapping ErrInvalidToken or ErrWrongTokenType.
//
// # What this package must NOT do
//
//   - Consult revocation state (blacklist, account version). That lives in the root package.
//   - Hold mutable state after NewManager returns.
package jwt
