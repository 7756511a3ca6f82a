package counter

import (
	"sync"
	"time"
)

// sweepThreshold is the bucket count above which expired buckets are
// dropped on the next write.
const sweepThreshold = 4096

type bucket struct {
	count   int64
	resetAt time.Time
}

// Memory is the process-local fallback store. It is never persisted and
// is shared by every request in the process.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewMemory returns an empty fallback store. now may be nil.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// CheckAndIncrement counts one attempt against key. When the count exceeds
// limit the attempt is denied and retryAfter is the time left until the
// bucket resets.
func (m *Memory) CheckAndIncrement(key string, limit int64, window time.Duration) (allowed bool, retryAfter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.buckets) > sweepThreshold {
		m.sweepLocked(now)
	}

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		m.buckets[key] = b
	}
	b.count++

	if b.count > limit {
		return false, b.resetAt.Sub(now)
	}
	return true, 0
}

// Reset clears every bucket. Intended for test isolation.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.buckets = make(map[string]*bucket)
	m.mu.Unlock()
}

// Len reports the number of tracked buckets, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *Memory) sweepLocked(now time.Time) {
	for key, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, key)
		}
	}
}
