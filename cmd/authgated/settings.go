package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// settings is everything the daemon reads from flags and the environment.
// Flags win over environment variables.
type settings struct {
	Listen         string
	LogLevel       string
	RedisURL       string
	DBDriver       string
	DatabaseDSN    string
	RulesFile      string
	JWTSecret      string
	SigningMethod  string
	Issuer         string
	ValidationMode string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RateLimit      bool
	Audit          bool
	EventsPrefix   string
	CORSOrigins    []string
	TrustedProxies []string
	OTelInterval   time.Duration
}

func parseSettings(args []string, getenv func(string) string) (*settings, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}
	envDuration := func(key string, fallback time.Duration) time.Duration {
		if d, err := time.ParseDuration(env(key, "")); err == nil {
			return d
		}
		return fallback
	}
	envBool := func(key string, fallback bool) bool {
		if b, err := strconv.ParseBool(env(key, "")); err == nil {
			return b
		}
		return fallback
	}
	envList := func(key string) []string {
		var out []string
		for _, part := range strings.Split(env(key, ""), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	defaults := authgate.DefaultConfig()
	s := &settings{}

	fs := pflag.NewFlagSet("authgated", pflag.ContinueOnError)
	fs.StringVar(&s.Listen, "listen", env("AUTHGATE_LISTEN", ":8080"), "HTTP listen address")
	fs.StringVar(&s.LogLevel, "log-level", env("LOG_LEVEL", "info"), "logrus level")
	fs.StringVar(&s.RedisURL, "redis-url", env("REDIS_URL", ""), "redis URL for counters, revocation state, and events; empty runs degraded")
	fs.StringVar(&s.DBDriver, "db-driver", env("DB_DRIVER", "sqlite"), "account store driver: sqlite or postgres")
	fs.StringVar(&s.DatabaseDSN, "database-dsn", env("DATABASE_DSN", "authgate.db"), "account store DSN")
	fs.StringVar(&s.RulesFile, "rules", env("AUTHGATE_RULES", ""), "YAML rate-limit rule file")
	fs.StringVar(&s.JWTSecret, "jwt-secret", env("JWT_SECRET", ""), "HMAC signing secret, at least 32 bytes")
	fs.StringVar(&s.SigningMethod, "jwt-algorithm", env("JWT_ALGORITHM", defaults.JWT.SigningMethod), "HS256, HS384 or HS512")
	fs.StringVar(&s.Issuer, "jwt-issuer", env("JWT_ISSUER", ""), "token issuer")
	fs.StringVar(&s.ValidationMode, "validation-mode", env("AUTHGATE_VALIDATION_MODE", "hybrid"), "jwt_only, hybrid or strict")
	fs.DurationVar(&s.AccessTTL, "access-ttl", envDuration("ACCESS_TOKEN_TTL", defaults.JWT.AccessTTL), "access token lifetime")
	fs.DurationVar(&s.RefreshTTL, "refresh-ttl", envDuration("REFRESH_TOKEN_TTL", defaults.JWT.RefreshTTL), "refresh token lifetime")
	fs.BoolVar(&s.RateLimit, "rate-limit", envBool("RATE_LIMIT_ENABLED", defaults.RateLimit.Enabled), "enable rate limiting")
	fs.BoolVar(&s.Audit, "audit", envBool("AUDIT_ENABLED", false), "write audit events to stdout as JSON")
	fs.StringVar(&s.EventsPrefix, "events-prefix", env("EVENTS_PREFIX", "authgate"), "redis stream topic prefix for lifecycle events")
	fs.StringSliceVar(&s.CORSOrigins, "cors-origins", envList("CORS_ORIGINS"), "allowed CORS origins")
	fs.StringSliceVar(&s.TrustedProxies, "trusted-proxies", envList("TRUSTED_PROXIES"), "proxies allowed to set X-Forwarded-For")
	fs.DurationVar(&s.OTelInterval, "otel-interval", envDuration("OTEL_COLLECT_INTERVAL", 0), "log an OpenTelemetry collection at this interval; 0 disables")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return s, nil
}

// engineConfig turns settings into an authgate.Config. The rule file, when
// set, replaces the rules of every action it names.
func (s *settings) engineConfig() (authgate.Config, error) {
	cfg := authgate.DefaultConfig()
	cfg.JWT.Secret = []byte(s.JWTSecret)
	cfg.JWT.SigningMethod = s.SigningMethod
	cfg.JWT.Issuer = s.Issuer
	cfg.JWT.AccessTTL = s.AccessTTL
	cfg.JWT.RefreshTTL = s.RefreshTTL
	cfg.Audit.Enabled = s.Audit

	mode, err := authgate.ParseValidationMode(s.ValidationMode)
	if err != nil {
		return cfg, err
	}
	cfg.ValidationMode = mode

	if s.RulesFile != "" {
		raw, err := os.ReadFile(s.RulesFile)
		if err != nil {
			return cfg, fmt.Errorf("read rules: %w", err)
		}
		if err := applyRules(&cfg.RateLimit, raw); err != nil {
			return cfg, err
		}
	}
	if !s.RateLimit {
		cfg.RateLimit.Enabled = false
	}

	return cfg, cfg.Validate()
}

func applyRules(dst *authgate.RateLimitConfig, raw []byte) error {
	if err := yaml.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("parse rules: %w", err)
	}
	return nil
}
