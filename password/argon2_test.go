package password

import (
	"errors"
	"strings"
	"testing"
)

// cheapConfig keeps argon2 fast enough for unit tests.
func cheapConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func mustHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestHashRoundTrip(t *testing.T) {
	h := mustHasher(t, cheapConfig())

	hash, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	again, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if again == hash {
		t.Fatal("two hashes of the same password share a salt")
	}

	for pw, want := range map[string]bool{
		"correct-password-123": true,
		"correct-password-124": false,
		"":                     false,
	} {
		ok, err := h.Verify(pw, hash)
		if err != nil {
			t.Fatalf("Verify(%q): %v", pw, err)
		}
		if ok != want {
			t.Fatalf("Verify(%q) = %v, want %v", pw, ok, want)
		}
	}
}

func TestVerifyUsesParametersFromHash(t *testing.T) {
	weak := mustHasher(t, cheapConfig())
	hash, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	stronger := cheapConfig()
	stronger.Time = 2
	strong := mustHasher(t, stronger)

	ok, err := strong.Verify("upgrade-me-please", hash)
	if err != nil || !ok {
		t.Fatalf("verify across parameter change: ok=%v err=%v", ok, err)
	}

	upgrade, err := strong.NeedsUpgrade(hash)
	if err != nil || !upgrade {
		t.Fatalf("expected NeedsUpgrade for weaker hash: %v %v", upgrade, err)
	}
	upgrade, err = weak.NeedsUpgrade(hash)
	if err != nil || upgrade {
		t.Fatalf("expected no upgrade at same parameters: %v %v", upgrade, err)
	}
}

func TestPasswordLengthBounds(t *testing.T) {
	cfg := cheapConfig()
	cfg.MaxPasswordBytes = 64
	h := mustHasher(t, cfg)

	cases := []struct {
		name string
		pw   string
		want error
	}{
		{"empty", "", ErrPasswordTooShort},
		{"short", "123456789", ErrPasswordTooShort},
		{"minimum", "1234567890", nil},
		{"maximum", strings.Repeat("b", 64), nil},
		{"over", strings.Repeat("a", 65), ErrPasswordTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Hash(tc.pw)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Hash error = %v, want %v", err, tc.want)
			}
		})
	}

	hash, err := h.Hash("1234567890")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if _, err := h.Verify(strings.Repeat("a", 65), hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Verify over cap = %v, want ErrPasswordTooLong", err)
	}
}

func TestDefaultMaxPasswordBytes(t *testing.T) {
	h := mustHasher(t, cheapConfig())
	if _, err := h.Hash(strings.Repeat("x", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected default cap at %d bytes, got %v", DefaultMaxPasswordBytes, err)
	}
}

func TestMalformedHashes(t *testing.T) {
	h := mustHasher(t, cheapConfig())
	good, err := h.Hash("malformed-tests")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	cases := map[string]string{
		"not phc":       "not-a-phc-hash",
		"bcrypt":        "$2a$10$abcdefghijklmnopqrstuv",
		"wrong version": strings.Replace(good, "$v=19$", "$v=18$", 1),
		"wrong algo":    strings.Replace(good, "$argon2id$", "$argon2i$", 1),
		"bad params":    strings.Replace(good, "m=8192", "m=abc", 1),
		"truncated":     good[:strings.LastIndex(good, "$")],
	}
	for name, hash := range cases {
		if _, err := h.Verify("malformed-tests", hash); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: expected ErrMalformedHash, got %v", name, err)
		}
		if _, err := h.NeedsUpgrade(hash); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: NeedsUpgrade expected ErrMalformedHash, got %v", name, err)
		}
	}
}

func TestDummyHashNeverMatches(t *testing.T) {
	h := mustHasher(t, cheapConfig())
	dummy, err := h.DummyHash()
	if err != nil {
		t.Fatalf("DummyHash: %v", err)
	}

	for _, pw := range []string{"", "password", "correct-password-123"} {
		ok, err := h.Verify(pw, dummy)
		if err != nil {
			t.Fatalf("Verify(%q): %v", pw, err)
		}
		if ok {
			t.Fatalf("dummy hash matched %q", pw)
		}
	}
}

func TestRejectsWeakConfig(t *testing.T) {
	mutations := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
	}
	for name, mutate := range mutations {
		cfg := cheapConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected weak config to be rejected", name)
		}
	}
}
