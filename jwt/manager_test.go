package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	signer, err := NewHMACSigner(testSecret, "")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	m, err := NewManager(Config{DefaultTTL: time.Hour, Issuer: "authgate"}, signer, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	p := Payload{UserID: "u1", Email: "u1@example.com", Role: "USER", Plan: "pro"}
	token, err := m.Issue(p, 3600*time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	v, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Payload != p {
		t.Fatalf("payload mismatch: got %+v want %+v", v.Payload, p)
	}
	if !v.ExpiresAt.Equal(clock.t.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", v.ExpiresAt)
	}
	if v.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestZeroTTLValidAtIssuanceThenExpired(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 500_000_000)}
	m := newTestManager(t, clock)

	token, err := m.Issue(Payload{UserID: "u1", Role: "USER"}, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected credential valid at issuance instant: %v", err)
	}

	clock.Advance(time.Nanosecond)
	if _, err := m.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired a moment after issuance, got %v", err)
	}
}

func TestExpiryIsSubSecond(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 500_000_000)}
	m := newTestManager(t, clock)

	token, err := m.Issue(Payload{UserID: "u1", Role: "USER"}, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(300 * time.Millisecond)
	v, err := m.Verify(token)
	if err != nil {
		t.Fatalf("expected valid at the expiry instant: %v", err)
	}
	if got := v.Remaining(clock.Now()); got != 0 {
		t.Fatalf("expected no remaining lifetime at expiry, got %v", got)
	}
	clock.Advance(time.Millisecond)
	if _, err := m.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired 1ms past expiry, got %v", err)
	}
}

func TestNegativeTTLIsExpired(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	token, err := m.Issue(Payload{UserID: "u1", Role: "USER"}, -time.Millisecond)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)

	token, err := m.IssueDefault(Payload{UserID: "u1", Role: "USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape %q", token)
	}
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := map[string]string{
		"garbage":   "not-a-token",
		"forged":    forged,
		"truncated": parts[0] + "." + parts[1],
		"empty":     "",
	}
	for name, tok := range cases {
		if _, err := m.Verify(tok); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)

	other, err := NewHMACSigner([]byte("ffffffffffffffffffffffffffffffff"), "")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	m2, err := NewManager(Config{DefaultTTL: time.Hour, Issuer: "authgate"}, other, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m2.IssueDefault(Payload{UserID: "u1", Role: "ADMIN"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	edSigner, err := NewEd25519Signer(priv, nil, "")
	if err != nil {
		t.Fatalf("ed signer: %v", err)
	}
	m, err := NewManager(Config{DefaultTTL: time.Minute}, edSigner)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := &Claims{UserID: "u1", Role: "USER", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestVerifyRequiresClaims(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)

	signer, _ := NewHMACSigner(testSecret, "")
	noExpiry, err := signer.Sign(&Claims{UserID: "u1", RegisteredClaims: gjwt.RegisteredClaims{Issuer: "authgate"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(noExpiry); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing exp, got %v", err)
	}

	wrongIssuer, err := signer.Sign(&Claims{UserID: "u1", ExpiresAtNano: time.Now().Add(time.Minute).UnixNano(), RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(wrongIssuer); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for issuer mismatch, got %v", err)
	}
}

func TestEd25519RoundTripAndKeyID(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewEd25519Signer(priv, pub, "k1")
	if err != nil {
		t.Fatalf("ed signer: %v", err)
	}
	m, err := NewManager(Config{DefaultTTL: time.Minute, Audience: "api"}, signer)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.IssueDefault(Payload{UserID: "u2", Role: "ADMIN"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("verify: %v", err)
	}

	verifyOnly, err := NewEd25519Signer(nil, pub, "k2")
	if err != nil {
		t.Fatalf("verify-only signer: %v", err)
	}
	m2, _ := NewManager(Config{DefaultTTL: time.Minute, Audience: "api"}, verifyOnly)
	if _, err := m2.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected kid mismatch to be malformed, got %v", err)
	}
	if _, err := m2.IssueDefault(Payload{UserID: "u2"}); err == nil {
		t.Fatal("expected verify-only signer to refuse signing")
	}
}

func TestInspectAcceptsExpired(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	token, err := m.Issue(Payload{UserID: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(time.Hour)

	v, err := m.Inspect(token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if v.Payload.UserID != "u1" {
		t.Fatalf("unexpected payload %+v", v.Payload)
	}
	if got := v.Remaining(clock.Now()); got != 0 {
		t.Fatalf("expected zero remaining lifetime, got %v", got)
	}
}

func TestRemainingIsExact(t *testing.T) {
	now := time.Unix(1_700_000_000, 250_000_000)
	v := &Verified{ExpiresAt: now.Add(10*time.Second + 5*time.Millisecond)}
	if got := v.Remaining(now); got != 10*time.Second+5*time.Millisecond {
		t.Fatalf("expected 10.005s, got %v", got)
	}
	if got := v.Remaining(now.Add(time.Minute)); got != 0 {
		t.Fatalf("expected 0 after expiry, got %v", got)
	}
}

// flipTrailingBit changes the unused low bit of the last base64url
// character, producing another spelling of the same signature bytes.
func flipTrailingBit(t *testing.T, token string) string {
	t.Helper()
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	last := token[len(token)-1]
	i := strings.IndexByte(alphabet, last)
	if i < 0 {
		t.Fatalf("unexpected trailing character %q", last)
	}
	return token[:len(token)-1] + string(alphabet[i^1])
}

func TestVerifyRejectsNonCanonicalEncoding(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)

	token, err := m.IssueDefault(Payload{UserID: "u1", Role: "USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	v, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(v.RevocationKey()) != 32 {
		t.Fatalf("expected the 32-byte HS256 signature as key, got %d bytes", len(v.RevocationKey()))
	}

	variant := flipTrailingBit(t, token)
	if _, err := m.Verify(variant); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for re-encoded signature, got %v", err)
	}
	if _, err := m.Inspect(variant); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected Inspect to reject re-encoded signature, got %v", err)
	}
}

func TestConstructorValidation(t *testing.T) {
	if _, err := NewHMACSigner([]byte("short"), ""); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if _, err := NewEd25519Signer(nil, nil, ""); err == nil {
		t.Fatal("expected missing ed25519 keys to be rejected")
	}
	if _, err := NewSigner("rs512", testSecret, nil, nil, ""); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}
	signer, _ := NewHMACSigner(testSecret, "")
	if _, err := NewManager(Config{}, signer); err == nil {
		t.Fatal("expected zero default TTL to be rejected")
	}
	if _, err := NewManager(Config{DefaultTTL: time.Minute}, nil); err == nil {
		t.Fatal("expected nil signer to be rejected")
	}
}
