package middleware

import (
	"net/http"

	"github.com/MrEthical07/authgate"
)

// RequireStrict fails closed when the revocation store is unreachable.
func RequireStrict(v Verifier) func(http.Handler) http.Handler {
	return Guard(v, authgate.ModeStrict)
}
