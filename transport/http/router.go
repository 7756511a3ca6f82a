package http

import (
	"context"
	"io"

	"github.com/MrEthical07/authgate"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Authenticator is the subset of *authgate.Engine the handlers drive.
type Authenticator interface {
	Login(ctx context.Context, req authgate.LoginRequest) (*authgate.LoginResult, error)
	Register(ctx context.Context, req authgate.RegisterRequest) (*authgate.Account, error)
	Refresh(ctx context.Context, req authgate.RefreshRequest) (*authgate.TokenPair, error)
	Logout(ctx context.Context, req authgate.LogoutRequest) error
	LogoutAll(ctx context.Context, req authgate.LogoutRequest) error
	Validate(ctx context.Context, token string, mode authgate.RouteMode) (*authgate.Claims, error)
}

// AccountReader backs GET /auth/me.
type AccountReader interface {
	FindAccountByID(ctx context.Context, id string) (*authgate.Account, error)
}

// Options configures the router.
type Options struct {
	// TrustedProxies are the addresses allowed to set X-Forwarded-For.
	// Empty means the socket address is always the client IP.
	TrustedProxies []string
	// MeMode is the validation mode for GET /auth/me.
	MeMode authgate.RouteMode
	Logger logrus.FieldLogger
}

// NewRouter builds the gin engine serving the auth routes.
func NewRouter(auth Authenticator, accounts AccountReader, opts Options) (*gin.Engine, error) {
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}
	router.Use(gin.Recovery(), requestLogger(log), clientIP())

	h := &Handlers{auth: auth, accounts: accounts, log: log}

	group := router.Group("/auth")
	group.Use(securityHeaders())
	{
		group.POST("/register", h.Register)
		group.POST("/login", h.Login)
		group.POST("/refresh", h.Refresh)
		group.POST("/logout", bearerToken(), h.Logout)
		group.POST("/logout-all", bearerToken(), h.LogoutAll)
		group.GET("/me", RequireAuth(auth, opts.MeMode), h.Me)
	}

	return router, nil
}
