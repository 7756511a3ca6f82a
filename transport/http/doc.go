// Package http exposes the authgate guard over a gin router.
//
// Routes, all under /auth:
//
//	POST /register    {"email","password"}          201 account
//	POST /login       {"email","password"}          200 tokens + account
//	POST /refresh     {"refresh_token"}             200 tokens
//	POST /logout      bearer, optional {"refresh_token"}  200 {"message"}
//	POST /logout-all  bearer                        200 {"message"}
//	GET  /me          bearer                        200 account
//
// Errors are JSON {"detail": "..."}. A rate-limit denial is 429 with a
// Retry-After header in whole seconds.
//
// # What this package must NOT do
//
//   - Make authentication decisions. Every decision is the engine's; this
//     package only maps results to status codes.
//   - Read the client IP from headers itself. Proxy trust is gin's
//     SetTrustedProxies.
package http
