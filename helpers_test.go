package authgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authgate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testPassword = "correct-password-123"
	testIP       = "203.0.113.7"
)

var testPasswordConfig = PasswordConfig{
	Memory:      8 * 1024,
	Time:        1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type memAccounts struct {
	mu         sync.Mutex
	byID       map[string]*Account
	byIdentity map[string]string
	err        error
	idLookups  int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		byID:       map[string]*Account{},
		byIdentity: map[string]string{},
	}
}

func (m *memAccounts) FindAccountByIdentity(_ context.Context, identity string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	id, ok := m.byIdentity[identity]
	if !ok {
		return nil, ErrAccountNotFound
	}
	a := *m.byID[id]
	return &a, nil
}

func (m *memAccounts) FindAccountByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idLookups++
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	out := *a
	return &out, nil
}

func (m *memAccounts) CreateAccount(_ context.Context, account Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.byIdentity[account.Identity]; ok {
		return nil, ErrAccountExists
	}
	a := account
	m.byID[a.ID] = &a
	m.byIdentity[a.Identity] = a.ID
	out := a
	return &out, nil
}

func (m *memAccounts) UpdateSecretHash(_ context.Context, id, secretHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.SecretHash = secretHash
	return nil
}

func (m *memAccounts) secretHash(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].SecretHash
}

func (m *memAccounts) lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idLookups
}

func (m *memAccounts) setActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Active = active
}

func (m *memAccounts) seed(t *testing.T, id, identity string, active bool) {
	t.Helper()
	hasher, err := password.NewArgon2(password.Config{
		Memory:      testPasswordConfig.Memory,
		Time:        testPasswordConfig.Time,
		Parallelism: testPasswordConfig.Parallelism,
		SaltLength:  testPasswordConfig.SaltLength,
		KeyLength:   testPasswordConfig.KeyLength,
	})
	if err != nil {
		t.Fatalf("argon2: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := m.CreateAccount(context.Background(), Account{
		ID:         id,
		Identity:   identity,
		SecretHash: hash,
		Active:     active,
		CreatedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type failingCounter struct{}

func (failingCounter) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingCounter) TTL(context.Context, string) (time.Duration, error) {
	return 0, errors.New("connection refused")
}

func accountTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "authgate-test"
	cfg.Password = testPasswordConfig
	return cfg
}

type testEnv struct {
	engine   *Engine
	redis    *miniredis.Miniredis
	accounts *memAccounts
	events   *recordingPublisher
}

// newTestEngine builds an engine over miniredis with one active account
// "alice@example.com" (id acct-alice) and one inactive account
// "bob@example.com" (id acct-bob).
func newTestEngine(t *testing.T, cfg Config, opts ...func(*Builder)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})

	accounts := newMemAccounts()
	accounts.seed(t, "acct-alice", "alice@example.com", true)
	accounts.seed(t, "acct-bob", "bob@example.com", false)
	events := &recordingPublisher{}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(accounts).
		WithEventPublisher(events)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		rdb.Close()
		mr.Close()
		t.Fatalf("build engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	})

	return &testEnv{engine: engine, redis: mr, accounts: accounts, events: events}
}

func (env *testEnv) login(t *testing.T) *LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), LoginRequest{
		IP:       testIP,
		Identity: "alice@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return res
}
