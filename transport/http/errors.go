package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MrEthical07/authgate"
	"github.com/gin-gonic/gin"
)

// abortWithError maps an engine error onto a status and a {"detail"} body.
func abortWithError(c *gin.Context, err error) {
	var limited *authgate.RateLimitError
	if errors.As(err, &limited) {
		secs := limited.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"detail": fmt.Sprintf("Too many attempts. Try again in %d seconds.", secs),
		})
		return
	}

	status, detail := errorStatus(err)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, authgate.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Incorrect email or password"
	case errors.Is(err, authgate.ErrRevoked):
		return http.StatusUnauthorized, "Token has been revoked"
	case errors.Is(err, authgate.ErrInvalidToken), errors.Is(err, authgate.ErrWrongTokenType):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, authgate.ErrInactiveAccount):
		return http.StatusForbidden, "Account disabled"
	case errors.Is(err, authgate.ErrAccountExists):
		return http.StatusBadRequest, "Email already registered"
	case errors.Is(err, authgate.ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, authgate.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, authgate.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
