package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/authgate"
)

// Verifier is the subset of *authgate.Engine the guards need.
type Verifier interface {
	Validate(ctx context.Context, token string, mode authgate.RouteMode) (*authgate.Claims, error)
}

// Guard verifies the bearer access token with routeMode and stores the
// claims on the request context, where [authgate.ClaimsFromContext] finds
// them. Rejections are 401 with a JSON {"detail"} body; a strict-mode store
// outage is 503.
func Guard(v Verifier, routeMode authgate.RouteMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				reject(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			claims, err := v.Validate(r.Context(), token, routeMode)
			if err != nil {
				if errors.Is(err, authgate.ErrStoreUnavailable) {
					reject(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
					return
				}
				reject(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(authgate.WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}

func reject(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
