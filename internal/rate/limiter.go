package rate

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authgate/counter"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

const (
	defaultStoreTimeout = 500 * time.Millisecond
	fingerprintHexLen   = 12
	identityKeyHexLen   = 32
	unknownIP           = "unknown"
)

// Rule is one (limit, window) pair. Limit attempts are allowed per window.
type Rule struct {
	Limit  int64
	Window time.Duration
}

// ActionLimits holds the rule sets for one action. Identity rules only apply
// when the request carries an identity.
type ActionLimits struct {
	IP       []Rule
	Identity []Rule
}

// Config holds rate limiter tuning parameters.
type Config struct {
	Enabled bool
	Actions map[string]ActionLimits
	// StoreTimeout bounds every durable-store call. Slower calls count as
	// failures and take the fallback path.
	StoreTimeout time.Duration
	// FingerprintKey keys the identity hash. Exactly 32 bytes.
	FingerprintKey []byte
}

// Validate checks rule sanity. Identity rules must be strictly tighter than
// any IP rule sharing their window.
func (c Config) Validate() error {
	if c.StoreTimeout < 0 {
		return errors.New("rate limit store timeout must be >= 0")
	}
	if len(c.FingerprintKey) != 0 && len(c.FingerprintKey) != 32 {
		return errors.New("fingerprint key must be 32 bytes")
	}
	for action, limits := range c.Actions {
		if strings.TrimSpace(action) == "" {
			return errors.New("rate limit action name must not be empty")
		}
		for _, set := range [][]Rule{limits.IP, limits.Identity} {
			for _, r := range set {
				if r.Limit <= 0 {
					return fmt.Errorf("%s: rule limit must be > 0", action)
				}
				if r.Window < time.Second || r.Window%time.Second != 0 {
					return fmt.Errorf("%s: rule window must be a whole number of seconds", action)
				}
			}
		}
		for _, id := range limits.Identity {
			for _, ip := range limits.IP {
				if ip.Window == id.Window && id.Limit >= ip.Limit {
					return fmt.Errorf("%s: identity limit %d/%s must be tighter than ip limit %d/%s",
						action, id.Limit, id.Window, ip.Limit, ip.Window)
				}
			}
		}
	}
	return nil
}

// Observer is notified of every denial and of every check that had to
// degrade to the in-process fallback. fingerprint is empty when the request
// carried no identity.
type Observer interface {
	RateLimited(action, fingerprint string, retryAfter time.Duration)
	FallbackUsed()
}

// Limiter enforces per-IP and per-identity rule sets. It is safe for
// concurrent use.
type Limiter struct {
	durable  counter.Durable
	fallback *counter.Memory
	config   Config
	key      [32]byte
	log      logrus.FieldLogger
	observer Observer
}

// New creates a [Limiter]. durable may be nil, in which case every check
// runs against fallback. fallback must not be nil.
func New(durable counter.Durable, fallback *counter.Memory, cfg Config, log logrus.FieldLogger, observer Observer) *Limiter {
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	l := &Limiter{
		durable:  durable,
		fallback: fallback,
		config:   cfg,
		log:      log,
		observer: observer,
	}
	copy(l.key[:], cfg.FingerprintKey)
	return l
}

// Enabled reports whether Enforce does any work.
func (l *Limiter) Enabled() bool {
	return l.config.Enabled
}

// Check counts one attempt against scopeKey under rule. retryAfter is zero
// when allowed. Store errors never surface: the call degrades to the
// in-process fallback.
func (l *Limiter) Check(ctx context.Context, scopeKey string, rule Rule) (allowed bool, retryAfter time.Duration) {
	key := scopeKey + ":" + strconv.FormatInt(int64(rule.Window/time.Second), 10) + "s"

	if l.durable != nil {
		callCtx, cancel := context.WithTimeout(ctx, l.config.StoreTimeout)
		allowed, retryAfter, err := l.checkDurable(callCtx, key, rule)
		cancel()
		if err == nil {
			return allowed, retryAfter
		}
		l.log.WithError(err).Debug("durable counter failed, using in-process fallback")
		if l.observer != nil {
			l.observer.FallbackUsed()
		}
	}

	return l.fallback.CheckAndIncrement(key, rule.Limit, rule.Window)
}

func (l *Limiter) checkDurable(ctx context.Context, key string, rule Rule) (bool, time.Duration, error) {
	count, err := l.durable.IncrWithTTL(ctx, key, rule.Window)
	if err != nil {
		return false, 0, err
	}
	if count <= rule.Limit {
		return true, 0, nil
	}

	// The attempt is already counted; a failing TTL read only costs precision.
	ttl, err := l.durable.TTL(ctx, key)
	if err != nil || ttl <= 0 || ttl > rule.Window {
		ttl = rule.Window
	}
	return false, ttl, nil
}

// Enforce evaluates every IP rule and, when identity is non-empty, every
// identity rule configured for action. All rules are incremented. The
// result is a *RateLimitError carrying the largest retry-after among the
// denying rules, or nil.
func (l *Limiter) Enforce(ctx context.Context, action, ip, identity string) error {
	if !l.config.Enabled {
		return nil
	}
	limits, ok := l.config.Actions[action]
	if !ok {
		return nil
	}

	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = unknownIP
	}
	identity = NormalizeIdentity(identity)

	var (
		denied     bool
		retryAfter time.Duration
	)
	apply := func(scope string, rules []Rule) {
		for _, rule := range rules {
			allowed, retry := l.Check(ctx, scope, rule)
			if allowed {
				continue
			}
			denied = true
			if retry > retryAfter {
				retryAfter = retry
			}
		}
	}

	apply("auth:"+action+":ip:"+ip, limits.IP)

	var fingerprint string
	if identity != "" && len(limits.Identity) > 0 {
		sum := l.identityHash(identity)
		fingerprint = sum[:fingerprintHexLen]
		apply("auth:"+action+":id:"+sum, limits.Identity)
	}

	if !denied {
		return nil
	}

	if fingerprint == "" && identity != "" {
		fingerprint = l.Fingerprint(identity)
	}
	l.log.WithFields(logrus.Fields{
		"action":      action,
		"fingerprint": fingerprint,
		"retry_after": retryAfter.String(),
	}).Warn("rate limit exceeded")
	if l.observer != nil {
		l.observer.RateLimited(action, fingerprint, retryAfter)
	}

	return &RateLimitError{Action: action, RetryAfter: retryAfter}
}

// Fingerprint returns a short keyed hash of the normalized identity, safe to
// log. Empty identities yield an empty fingerprint.
func (l *Limiter) Fingerprint(identity string) string {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return ""
	}
	return l.identityHash(identity)[:fingerprintHexLen]
}

func (l *Limiter) identityHash(normalized string) string {
	h, err := blake3.NewKeyed(l.key[:])
	if err != nil {
		panic("rate: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = h.Write([]byte(normalized))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:identityKeyHexLen/2])
}

// NormalizeIdentity lower-cases and trims an account identifier.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// DeriveFingerprintKey stretches secret into a 32-byte fingerprint key.
func DeriveFingerprintKey(secret []byte) []byte {
	out := make([]byte, 32)
	blake3.DeriveKey("authgate identity fingerprint v1", secret, out)
	return out
}
