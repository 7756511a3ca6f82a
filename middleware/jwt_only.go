package middleware

import (
	"net/http"

	"github.com/MrEthical07/authgate"
)

// RequireJWTOnly overrides the validation mode to [authgate.ModeJWTOnly]
// for the wrapped handler. Blacklist and version are not consulted, so a
// logged-out token stays usable until it expires.
func RequireJWTOnly(v Verifier) func(http.Handler) http.Handler {
	return Guard(v, authgate.ModeJWTOnly)
}
