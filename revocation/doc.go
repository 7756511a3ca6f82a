// Package revocation provides Redis-backed token revocation state: the
// blacklist of tokens revoked before their natural expiry, the per-account
// token version bumped by logout-all, and a short-lived account cache read by
// refresh.
//
// # Key layout
//
//   - bl:<kind>:<blake3 hex of token>  blacklist entry, TTL = token's remaining lifetime
//   - ver:<account id>                 account token version, no TTL
//   - acct:<account id>                CBOR account snapshot, TTL = cache TTL
//
// Raw tokens never appear in keys.
//
// # What this package must NOT do
//
//   - Import authgate or jwt (no upward imports).
//   - Decide whether a store failure fails open or closed. Every failure is
//     returned wrapped in [ErrUnavailable] and the caller decides.
package revocation
