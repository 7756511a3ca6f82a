package authgate

import (
	"context"
	"time"

	"github.com/MrEthical07/authgate/counter"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/revocation"
	"github.com/sirupsen/logrus"
)

// Engine defines a public type used by authgate APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	log        logrus.FieldLogger
	codec      *jwt.Manager
	limiter    *rate.Limiter
	fallback   *counter.Memory
	revocation *revocation.Store
	accounts   AccountStore
	hasher     *password.Argon2
	dummyHash  string
	audit      *auditDispatcher
	metrics    *Metrics
	events     EventPublisher
	now        func() time.Time
}

// Close drains the audit queue. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Fingerprint returns the log-safe identity hash used in audit events.
func (e *Engine) Fingerprint(identity string) string {
	if e == nil || e.limiter == nil {
		return ""
	}
	return e.limiter.Fingerprint(identity)
}

// ResetFallback clears the in-process rate-limit buckets. Tests only.
func (e *Engine) ResetFallback() {
	if e == nil || e.fallback == nil {
		return
	}
	e.fallback.Reset()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, accountID, fingerprint, ip string, err error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		AccountID:   accountID,
		Fingerprint: fingerprint,
		IP:          ip,
		Success:     success,
		Metadata:    metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) publish(ctx context.Context, eventType EventType, accountID string, version int64) {
	if e.events == nil {
		return
	}
	event := Event{Type: eventType, AccountID: accountID, Version: version, At: e.now().UTC()}
	if err := e.events.Publish(ctx, event); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"event":      string(eventType),
			"account_id": accountID,
		}).Warn("event publish failed")
	}
}

// storeContext bounds a single revocation-store call.
func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Revocation.StoreTimeout)
}

// limiterObserver feeds limiter outcomes into metrics and audit.
type limiterObserver struct {
	e *Engine
}

func (o limiterObserver) RateLimited(action, fingerprint string, retryAfter time.Duration) {
	o.e.metricInc(MetricRateLimitHit)
	if id, ok := rateLimitedMetric(Action(action)); ok {
		o.e.metricInc(id)
	}
	o.e.emitAudit(context.Background(), auditRateLimited, false, "", fingerprint, "", ErrRateLimited, map[string]string{
		"action":      action,
		"retry_after": retryAfter.Round(time.Second).String(),
	})
}

func (o limiterObserver) FallbackUsed() {
	o.e.metricInc(MetricCounterFallback)
}
