package http

import (
	"net/http"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handlers serves the /auth routes.
type Handlers struct {
	auth     Authenticator
	accounts AccountReader
	log      logrus.FieldLogger
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type loginResponse struct {
	authgate.TokenPair
	User accountResponse `json:"user"`
}

func toAccountResponse(a *authgate.Account) accountResponse {
	return accountResponse{ID: a.ID, Email: a.Identity, IsActive: a.Active, CreatedAt: a.CreatedAt}
}

// Register handles POST /auth/register.
func (h *Handlers) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
		return
	}

	account, err := h.auth.Register(c.Request.Context(), authgate.RegisterRequest{
		Identity: req.Email,
		Password: req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAccountResponse(account))
}

// Login handles POST /auth/login.
func (h *Handlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
		return
	}

	res, err := h.auth.Login(c.Request.Context(), authgate.LoginRequest{
		Identity: req.Email,
		Password: req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{TokenPair: res.TokenPair, User: toAccountResponse(&res.Account)})
}

// Refresh handles POST /auth/refresh.
func (h *Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), authgate.RefreshRequest{RefreshToken: req.RefreshToken})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Logout handles POST /auth/logout. The body is optional.
func (h *Handlers) Logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
			return
		}
	}

	err := h.auth.Logout(c.Request.Context(), authgate.LogoutRequest{
		AccessToken:  c.GetString(accessTokenKey),
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// LogoutAll handles POST /auth/logout-all.
func (h *Handlers) LogoutAll(c *gin.Context) {
	err := h.auth.LogoutAll(c.Request.Context(), authgate.LogoutRequest{
		AccessToken: c.GetString(accessTokenKey),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out from all devices"})
}

// Me handles GET /auth/me.
func (h *Handlers) Me(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil || h.accounts == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}

	account, err := h.accounts.FindAccountByID(c.Request.Context(), claims.AccountID)
	if err != nil {
		if status, _ := errorStatus(err); status == http.StatusInternalServerError {
			h.log.WithError(err).WithField("account_id", claims.AccountID).Error("me: account lookup failed")
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAccountResponse(account))
}
