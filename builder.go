package authgate

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/MrEthical07/authgate/counter"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/revocation"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder defines a public type used by authgate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  AccountStore
	auditSink AuditSink
	events    EventPublisher
	log       logrus.FieldLogger

	durable  counter.Durable
	fallback *counter.Memory
	now      func() time.Time

	built bool
}

// New returns a [Builder] seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared store for counters and revocation state. A nil
// client is allowed: the limiter runs on the in-process fallback and
// refresh fails closed.
//
// The client must honor context deadlines (ContextTimeoutEnabled on
// go-redis options). Otherwise a hung server blocks each store call for
// the client's ReadTimeout instead of StoreTimeout.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the credential database. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithEventPublisher sets the lifecycle event publisher.
func (b *Builder) WithEventPublisher(p EventPublisher) *Builder {
	b.events = p
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.log = log
	return b
}

// WithDurableCounter overrides the durable counter store, which otherwise
// wraps the Redis client. Mostly useful to inject failures in tests.
func (b *Builder) WithDurableCounter(d counter.Durable) *Builder {
	b.durable = d
	return b
}

// WithFallbackCounter supplies the in-process fallback so the caller can
// Reset it between tests. One is created when unset.
func (b *Builder) WithFallbackCounter(m *counter.Memory) *Builder {
	b.fallback = m
	return b
}

// WithNow overrides the clock used for token issuance and verification.
func (b *Builder) WithNow(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verify latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the [Engine]. A Builder can
// only be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil && cfg.ValidationMode == ModeStrict {
		return nil, errors.New("Strict mode requires redis client")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	log := b.log
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewManager(jwt.Config{
		SigningMethod: signingMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	dummy, err := ph.DummyHash()
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		log:       log,
		codec:     codec,
		accounts:  b.accounts,
		hasher:    ph,
		dummyHash: dummy,
		events:    b.events,
		metrics:   NewMetrics(cfg.Metrics),
		now:       now,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, log)

	// -------- STORES --------
	durable := b.durable
	if b.redis != nil {
		engine.revocation = revocation.NewStore(b.redis)
		if durable == nil {
			durable = counter.NewRedis(b.redis)
		}
	}
	engine.fallback = b.fallback
	if engine.fallback == nil {
		engine.fallback = counter.NewMemory(nil)
	}

	// -------- RATE LIMITER --------
	rateCfg := cfg.rateConfig()
	if len(rateCfg.FingerprintKey) == 0 {
		material := cfg.JWT.Secret
		if len(material) == 0 {
			material = cfg.JWT.PublicKey
		}
		rateCfg.FingerprintKey = rate.DeriveFingerprintKey(material)
	}
	engine.limiter = rate.New(durable, engine.fallback, rateCfg, log.WithField("component", "ratelimit"), limiterObserver{engine})

	b.built = true

	return engine, nil
}

func signingMethod(name string) jwt.SigningMethod {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "HS384":
		return jwt.MethodHS384
	case "HS512":
		return jwt.MethodHS512
	case "EDDSA":
		return jwt.MethodEdDSA
	default:
		return jwt.MethodHS256
	}
}
