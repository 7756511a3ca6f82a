package authgate

import (
	"context"
	"time"

	"github.com/MrEthical07/authgate/jwt"
)

// Account is the credential record consumed from an [AccountStore].
type Account struct {
	ID         string
	Identity   string
	SecretHash string
	Active     bool
	CreatedAt  time.Time
}

// AccountStore is implemented by the caller's credential database.
//
// Lookups return [ErrAccountNotFound] when nothing matches. CreateAccount
// returns [ErrAccountExists] for a taken identity. Identities are passed
// already normalized (trimmed, lower-cased).
type AccountStore interface {
	FindAccountByIdentity(ctx context.Context, identity string) (*Account, error)
	FindAccountByID(ctx context.Context, id string) (*Account, error)
	CreateAccount(ctx context.Context, account Account) (*Account, error)
}

// SecretUpdater is an optional AccountStore extension. When the store
// implements it, Login rehashes passwords whose stored hash was made with
// weaker argon2 parameters than the engine's.
type SecretUpdater interface {
	UpdateSecretHash(ctx context.Context, accountID, secretHash string) error
}

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind = jwt.Kind

const (
	TokenAccess  = jwt.KindAccess
	TokenRefresh = jwt.KindRefresh
)

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Claims is the verified content of a token.
type Claims struct {
	AccountID string
	Email     string
	Kind      TokenKind
	Version   int64
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Action names an auth-sensitive operation for rate limiting and metrics.
type Action string

const (
	ActionLogin     Action = "login"
	ActionRegister  Action = "register"
	ActionRefresh   Action = "refresh"
	ActionLogout    Action = "logout"
	ActionLogoutAll Action = "logout_all"
)

// LoginRequest carries credentials plus the caller's address. An empty IP
// falls back to the address attached with [WithClientIP].
type LoginRequest struct {
	IP       string
	Identity string
	Password string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	TokenPair
	Account Account
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	IP       string
	Identity string
	Password string
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	IP           string
	RefreshToken string
}

// LogoutRequest revokes the presented access token and, optionally, a
// refresh token from the same account.
type LogoutRequest struct {
	IP           string
	AccessToken  string
	RefreshToken string
}

// EventType names a lifecycle notification.
type EventType string

const (
	EventRegistered EventType = "account.registered"
	EventLogout     EventType = "auth.logout"
	EventLogoutAll  EventType = "auth.logout_all"
)

// Event is published after state-changing lifecycle operations.
type Event struct {
	Type      EventType `json:"type"`
	AccountID string    `json:"account_id"`
	Version   int64     `json:"version,omitempty"`
	At        time.Time `json:"at"`
}

// EventPublisher delivers lifecycle events. Publish failures are logged and
// never fail the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
