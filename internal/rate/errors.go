package rate

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is matched by every denial returned from Enforce.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError carries the action that was denied and how long the
// caller should wait before retrying.
type RateLimitError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited: retry after %s", e.Action, e.RetryAfter)
}

// Unwrap makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
