package authgate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authgate/internal/rate"
)

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT            JWTConfig
	RateLimit      RateLimitConfig
	Revocation     RevocationConfig
	Password       PasswordConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by authgate APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SigningMethod is one of HS256 (default), HS384, HS512, EdDSA.
	SigningMethod string
	// Secret is the HMAC key for the HS* methods.
	Secret []byte
	// PrivateKey and PublicKey are the ed25519 pair for EdDSA (raw or PEM).
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Leeway     time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateRule allows Limit attempts per Window.
type RateRule struct {
	Limit  int64         `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// ActionRules are the rule sets for one action. Identity rules apply only
// when the request carries an identity and must be strictly tighter than
// the IP rule sharing their window.
type ActionRules struct {
	IP       []RateRule `yaml:"ip"`
	Identity []RateRule `yaml:"identity"`
}

// RateLimitConfig defines a public type used by authgate APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	// Enabled=false turns every limiter check into a no-op that never
	// touches a store.
	Enabled bool                   `yaml:"enabled"`
	Actions map[Action]ActionRules `yaml:"actions"`
	// StoreTimeout bounds each durable counter call; slower calls take the
	// in-process fallback.
	StoreTimeout time.Duration `yaml:"store_timeout"`
	// FingerprintKey keys identity hashes. Derived from the JWT secret or
	// public key when empty.
	FingerprintKey []byte `yaml:"-"`
}

// DefaultRateRules returns the stock rule table: 5/min and 20/h per
// identity, 60/min and 300/h per IP for login and register; IP rules only
// for the token endpoints.
func DefaultRateRules() map[Action]ActionRules {
	ip := []RateRule{{Limit: 60, Window: time.Minute}, {Limit: 300, Window: time.Hour}}
	identity := []RateRule{{Limit: 5, Window: time.Minute}, {Limit: 20, Window: time.Hour}}

	withIdentity := func() ActionRules {
		return ActionRules{
			IP:       append([]RateRule(nil), ip...),
			Identity: append([]RateRule(nil), identity...),
		}
	}
	ipOnly := func() ActionRules {
		return ActionRules{IP: append([]RateRule(nil), ip...)}
	}

	return map[Action]ActionRules{
		ActionLogin:     withIdentity(),
		ActionRegister:  withIdentity(),
		ActionRefresh:   ipOnly(),
		ActionLogout:    ipOnly(),
		ActionLogoutAll: ipOnly(),
	}
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig defines a public type used by authgate APIs.
//
// RevocationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RevocationConfig struct {
	// AccountCacheTTL is how long the refresh path trusts a cached account.
	AccountCacheTTL time.Duration
	// StoreTimeout bounds every blacklist/version call.
	StoreTimeout time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authgate APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig defines a public type used by authgate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authgate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode selects how much store state Verify consults.
type ValidationMode int

// ModeInherit is only valid as a per-route override and means "use Config.ValidationMode".
const ModeInherit ValidationMode = -1

const (
	// ModeJWTOnly checks signature, expiry, and type. No store round trip.
	ModeJWTOnly ValidationMode = iota
	// ModeHybrid also checks blacklist and account version, tolerating store errors.
	ModeHybrid
	// ModeStrict checks blacklist and account version and fails closed on store errors.
	ModeStrict
)

// RouteMode is the per-route override accepted by Engine.Validate.
type RouteMode = ValidationMode

func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeJWTOnly:
		return "jwt_only"
	case ModeHybrid:
		return "hybrid"
	case ModeStrict:
		return "strict"
	}
	return fmt.Sprintf("ValidationMode(%d)", int(m))
}

// ParseValidationMode accepts the names produced by String.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jwt_only", "jwt-only", "jwtonly":
		return ModeJWTOnly, nil
	case "", "hybrid":
		return ModeHybrid, nil
	case "strict":
		return ModeStrict, nil
	}
	return 0, fmt.Errorf("unknown validation mode %q", s)
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "HS256",
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			Actions:      DefaultRateRules(),
			StoreTimeout: 500 * time.Millisecond,
		},
		Revocation: RevocationConfig{
			AccountCacheTTL: 5 * time.Minute,
			StoreTimeout:    500 * time.Millisecond,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		ValidationMode: ModeHybrid,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.RateLimit.FingerprintKey = cloneBytes(cfg.RateLimit.FingerprintKey)
	if cfg.RateLimit.Actions != nil {
		out.RateLimit.Actions = make(map[Action]ActionRules, len(cfg.RateLimit.Actions))
		for action, rules := range cfg.RateLimit.Actions {
			out.RateLimit.Actions[action] = ActionRules{
				IP:       append([]RateRule(nil), rules.IP...),
				Identity: append([]RateRule(nil), rules.Identity...),
			}
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency. Signing keys
// are checked again, more precisely, when the engine is built.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be longer than AccessTTL")
	}
	switch strings.ToUpper(c.JWT.SigningMethod) {
	case "HS256", "HS384", "HS512":
		if len(c.JWT.Secret) == 0 {
			return errors.New("HMAC signing requires JWT Secret")
		}
	case "EDDSA":
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("EdDSA signing requires JWT PublicKey")
		}
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("EdDSA signing requires JWT PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Rate limit
	if err := c.rateConfig().Validate(); err != nil {
		return fmt.Errorf("RateLimit: %w", err)
	}

	// Revocation
	if c.Revocation.AccountCacheTTL < 0 {
		return errors.New("Revocation AccountCacheTTL must be >= 0")
	}
	if c.Revocation.StoreTimeout <= 0 {
		return errors.New("Revocation StoreTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeHybrid, ModeStrict:
		// valid
	default:
		return errors.New("invalid ValidationMode")
	}

	return nil
}

func (c *Config) rateConfig() rate.Config {
	out := rate.Config{
		Enabled:        c.RateLimit.Enabled,
		Actions:        make(map[string]rate.ActionLimits, len(c.RateLimit.Actions)),
		StoreTimeout:   c.RateLimit.StoreTimeout,
		FingerprintKey: c.RateLimit.FingerprintKey,
	}
	for action, rules := range c.RateLimit.Actions {
		out.Actions[string(action)] = rate.ActionLimits{
			IP:       toRateRules(rules.IP),
			Identity: toRateRules(rules.Identity),
		}
	}
	return out
}

func toRateRules(in []RateRule) []rate.Rule {
	if len(in) == 0 {
		return nil
	}
	out := make([]rate.Rule, len(in))
	for i, r := range in {
		out[i] = rate.Rule{Limit: r.Limit, Window: r.Window}
	}
	return out
}
