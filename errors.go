package authgate

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidCredentials covers both an unknown identity and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount is returned when the account exists but is disabled.
	ErrInactiveAccount = errors.New("account inactive")
	// ErrRateLimited is matched by every *RateLimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidToken is returned for bad signatures, malformed payloads, and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongTokenType is returned when an access token is presented where a refresh token is expected, or the reverse.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrRevoked is returned for blacklisted tokens and tokens older than the account version.
	ErrRevoked = errors.New("token revoked")
	// ErrStoreUnavailable is returned only where failing open is unsafe.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrAccountExists is returned by Register for a taken identity.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is returned by an AccountStore lookup that matched nothing.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidRequest is returned for empty or malformed inputs.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEngineNotReady is returned when a nil or unbuilt Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError is returned when a rate-limit rule denied the request.
type RateLimitError struct {
	Action     Action
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited: retry after %ds", e.Action, e.RetryAfterSeconds())
}

// Unwrap makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
