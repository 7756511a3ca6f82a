// Package middleware adapts authgate access-token verification to net/http.
//
// # Guards
//
//   - [Guard] with [authgate.ModeInherit] uses the engine's configured mode.
//   - [RequireJWTOnly] checks signature, expiry, and type only.
//   - [RequireStrict] also checks blacklist and version, failing closed.
//
// Each guard reads the Authorization header, calls Engine.Validate, and
// stores the verified claims with [authgate.WithClaims].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis.
//   - Make decisions beyond pass/reject from Engine.Validate.
package middleware
