// Package accountstore is the gorm-backed [authgate.AccountStore].
//
// Identities are stored already normalized; the unique index on identity is
// what makes concurrent registrations of the same address collide.
//
// # What this package must NOT do
//
//   - Hash or verify passwords.
//   - Touch Redis or token state.
package accountstore
