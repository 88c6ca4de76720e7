package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newHSManager(t *testing.T, ttl time.Duration, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{AccessTTL: ttl, SigningMethod: MethodHS256, PrivateKey: testSecret, Issuer: "selfauth", Now: now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestMintAndParse(t *testing.T) {
	m := newHSManager(t, 30*time.Minute, nil)

	token, exp, err := m.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if time.Until(exp) <= 29*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatal("expected iat and exp claims")
	}
}

func TestZeroTTLTokenIsRejected(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 500_000_000, time.UTC)
	m := newHSManager(t, 0, fixedClock(issued))

	token, _, err := m.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := m.Parse(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for zero TTL, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	now := time.Now()
	minter := newHSManager(t, time.Minute, fixedClock(now))
	token, _, err := minter.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	later := newHSManager(t, time.Minute, fixedClock(now.Add(2*time.Minute)))
	if _, err := later.Parse(token); err != ErrInvalidToken {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestParseRejectsTamperedAndForeignTokens(t *testing.T) {
	m := newHSManager(t, time.Minute, nil)
	token, _, err := m.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := m.Parse(token + "x"); err != ErrInvalidToken {
		t.Fatalf("expected tampered signature rejection, got %v", err)
	}

	other, err := NewManager(Config{AccessTTL: time.Minute, PrivateKey: []byte("ffffffffffffffffffffffffffffffff"), Issuer: "selfauth"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	foreign, _, err := other.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := m.Parse(foreign); err != ErrInvalidToken {
		t.Fatalf("expected foreign key rejection, got %v", err)
	}

	for _, junk := range []string{"", "a.b.c", "not-a-token"} {
		if _, err := m.Parse(junk); err != ErrInvalidToken {
			t.Fatalf("expected rejection of %q, got %v", junk, err)
		}
	}
}

func TestParseRejectsWrongAlgorithmAndMissingExp(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	hsClaims := gjwt.RegisteredClaims{Subject: "u", ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}
	hsToken, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, hsClaims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(hsToken); err != ErrInvalidToken {
		t.Fatalf("expected wrong algorithm rejection, got %v", err)
	}

	noExp, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, gjwt.RegisteredClaims{Subject: "u"}).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(noExp); err != ErrInvalidToken {
		t.Fatalf("expected missing exp rejection, got %v", err)
	}

	good, _, err := m.Mint("u")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := m.Parse(good); err != nil {
		t.Fatalf("expected ed25519 token to parse: %v", err)
	}
}

func TestParseIssuerAndAudience(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, PrivateKey: testSecret, Issuer: "selfauth", Audience: "api"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	wrongAudience := gjwt.RegisteredClaims{
		Subject:   "u",
		Issuer:    "selfauth",
		Audience:  gjwt.ClaimStrings{"other"},
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	tok, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, wrongAudience).SignedString(testSecret)
	if _, err := m.Parse(tok); err != ErrInvalidToken {
		t.Fatalf("expected wrong audience rejection, got %v", err)
	}

	wrongIssuer := wrongAudience
	wrongIssuer.Issuer = "other"
	wrongIssuer.Audience = gjwt.ClaimStrings{"api"}
	tok, _ = gjwt.NewWithClaims(gjwt.SigningMethodHS256, wrongIssuer).SignedString(testSecret)
	if _, err := m.Parse(tok); err != ErrInvalidToken {
		t.Fatalf("expected wrong issuer rejection, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: -time.Second, PrivateKey: testSecret}); err == nil {
		t.Fatal("expected negative TTL to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: "rs512", PrivateKey: testSecret}); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}
}

func FuzzParseNeverPanics(f *testing.F) {
	m, err := NewManager(Config{AccessTTL: time.Minute, PrivateKey: testSecret})
	if err != nil {
		f.Fatalf("new manager: %v", err)
	}
	f.Add("eyJhbGciOiJIUzI1NiJ9.e30.sig")
	f.Add("")
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = m.Parse(token)
	})
}
