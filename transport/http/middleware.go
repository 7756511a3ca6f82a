package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/middleware"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	claimsKey      = "authgate.claims"
	accessTokenKey = "authgate.access_token"
)

// RequireAuth verifies the bearer access token with mode. The claims are
// stored on both the gin context and the request context.
func RequireAuth(v middleware.Verifier, mode authgate.RouteMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}

		claims, err := v.Validate(c.Request.Context(), token, mode)
		if err != nil {
			if errors.Is(err, authgate.ErrStoreUnavailable) {
				abortWithError(c, err)
				return
			}
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(accessTokenKey, token)
		c.Request = c.Request.WithContext(authgate.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// bearerToken stores the bearer token, if any, without checking it. The
// logout routes use it so the engine's limiter runs before any token work.
func bearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
			c.Set(accessTokenKey, token)
		}
		c.Next()
	}
}

// clientIP hands gin's proxy-aware client address to the engine.
func clientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(authgate.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		h.Set("Pragma", "no-cache")
		c.Next()
	}
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request failed")
		case status == http.StatusTooManyRequests:
			entry.Warn("request rate limited")
		default:
			entry.Debug("request served")
		}
	}
}

func claimsFrom(c *gin.Context) *authgate.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*authgate.Claims)
	return claims
}
