package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("unit-test-secret-0123456789")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func subject(id string) gjwt.RegisteredClaims {
	return gjwt.RegisteredClaims{Subject: id, ID: "jti-" + id}
}

func newHSManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{SigningMethod: MethodHS256, Secret: testSecret, Now: clock.Now})
	require.NoError(t, err)
	return m
}

func TestIssueDecodeRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	in := Claims{Email: "alice@example.com", Version: 3, RegisteredClaims: subject("acct-1")}
	token, err := m.Issue(in, KindAccess, 15*time.Minute)
	require.NoError(t, err)

	out, err := m.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", out.Subject)
	require.Equal(t, "jti-acct-1", out.ID)
	require.Equal(t, "alice@example.com", out.Email)
	require.Equal(t, int64(3), out.Version)
	require.Equal(t, KindAccess, out.Type)
	require.Equal(t, clock.t.Add(15*time.Minute).Unix(), out.ExpiresAt.Unix())
}

func TestIssueIsDeterministicForSameClock(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	claims := Claims{RegisteredClaims: subject("acct-1")}
	a, err := m.Issue(claims, KindRefresh, time.Hour)
	require.NoError(t, err)
	b, err := m.Issue(claims, KindRefresh, time.Hour)
	require.NoError(t, err)
	require.Equal(t, a, b)

	clock.Advance(time.Second)
	c, err := m.Issue(claims, KindRefresh, time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestDecodeRejectsAtExpiryInstant(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	token, err := m.Issue(Claims{RegisteredClaims: subject("acct-1")}, KindAccess, time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = m.Decode(token)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = m.Decode(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeTypedRejectsOtherKind(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newHSManager(t, clock)

	refresh, err := m.Issue(Claims{RegisteredClaims: subject("acct-1")}, KindRefresh, time.Hour)
	require.NoError(t, err)

	_, err = m.DecodeTyped(refresh, KindAccess)
	require.ErrorIs(t, err, ErrWrongTokenType)

	claims, err := m.DecodeTyped(refresh, KindRefresh)
	require.NoError(t, err)
	require.Equal(t, KindRefresh, claims.Type)

	// Decode itself ignores the kind.
	_, err = m.Decode(refresh)
	require.NoError(t, err)
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newHSManager(t, clock)

	token, err := m.Issue(Claims{RegisteredClaims: subject("acct-1")}, KindAccess, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{
		Type:             KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{Subject: "acct-2", ExpiresAt: gjwt.NewNumericDate(clock.t.Add(time.Hour))},
	}).SigningString()
	require.NoError(t, err)
	forgedParts := strings.Split(forged, ".")

	_, err = m.Decode(parts[0] + "." + forgedParts[1] + "." + parts[2])
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRejectsOtherSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newHSManager(t, clock)
	other, err := NewManager(Config{SigningMethod: MethodHS256, Secret: []byte("a-different-secret-value"), Now: clock.Now})
	require.NoError(t, err)

	token, err := other.Issue(Claims{RegisteredClaims: subject("acct-1")}, KindAccess, time.Hour)
	require.NoError(t, err)

	_, err = m.Decode(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRejectsAlgorithmConfusion(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newHSManager(t, clock)

	claims := Claims{Type: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		ExpiresAt: gjwt.NewNumericDate(clock.t.Add(time.Hour)),
	}}
	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = m.Decode(hs512)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Decode(none)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRequiresSubjectAndExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newHSManager(t, clock)

	noExp, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{Type: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{Subject: "acct-1"}}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = m.Decode(noExp)
	require.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{Type: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(clock.t.Add(time.Hour)),
	}}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = m.Decode(noSub)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestEdDSAIssueAndVerifyOnlyManager(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := NewManager(Config{SigningMethod: MethodEdDSA, PrivateKey: priv, PublicKey: pub, Issuer: "authgate"})
	require.NoError(t, err)
	verifier, err := NewManager(Config{SigningMethod: MethodEdDSA, PublicKey: pub, Issuer: "authgate"})
	require.NoError(t, err)

	token, err := signer.Issue(Claims{RegisteredClaims: subject("acct-1")}, KindAccess, time.Minute)
	require.NoError(t, err)

	claims, err := verifier.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "authgate", claims.Issuer)

	_, err = verifier.Issue(Claims{RegisteredClaims: subject("acct-1")}, KindAccess, time.Minute)
	require.Error(t, err)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{SigningMethod: MethodHS256, Secret: []byte("short")})
	require.Error(t, err)

	_, err = NewManager(Config{SigningMethod: "RS256", Secret: testSecret})
	require.Error(t, err)

	_, err = NewManager(Config{SigningMethod: MethodHS256, Secret: testSecret, Leeway: 5 * time.Minute})
	require.Error(t, err)

	_, err = NewManager(Config{SigningMethod: MethodEdDSA})
	require.Error(t, err)

	m, err := NewManager(Config{Secret: testSecret})
	require.NoError(t, err)
	require.Equal(t, "HS256", m.method.Alg())
}

func TestRemaining(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	token, err := m.Issue(Claims{RegisteredClaims: subject("acct-1")}, KindRefresh, time.Hour)
	require.NoError(t, err)
	claims, err := m.Decode(token)
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	require.Equal(t, 40*time.Minute, m.Remaining(claims))
	require.Equal(t, time.Duration(0), m.Remaining(nil))
}
