package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Argon2 {
	t.Helper()
	h, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	digest, err := h.Hash("GoodPass123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", digest)
	}
	if !h.Verify("GoodPass123!", digest) {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	h := newTestHasher(t)

	digest, err := h.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if h.Verify("wrong-password", digest) {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected two digests of the same password to differ")
	}
	if !h.Verify("same-password", a) || !h.Verify("same-password", b) {
		t.Fatal("expected both digests to verify")
	}
}

func TestVerifyMalformedDigestReturnsFalse(t *testing.T) {
	h := newTestHasher(t)

	cases := []string{
		"",
		"plain",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
		"$2b$10$short",
		// Out-of-range costs must be rejected before any key derivation.
		"$argon2id$v=19$m=8192,t=4294967295,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=200$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
	}
	for _, digest := range cases {
		if h.Verify("whatever-password", digest) {
			t.Fatalf("expected malformed digest %q to fail verification", digest)
		}
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	h := newTestHasher(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	if !h.Verify("legacy-password", string(legacy)) {
		t.Fatal("expected legacy bcrypt digest to verify")
	}
	if h.Verify("other-password", string(legacy)) {
		t.Fatal("expected wrong password against bcrypt digest to fail")
	}
	if !h.NeedsUpgrade(string(legacy)) {
		t.Fatal("expected bcrypt digest to need upgrade")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := newTestHasher(t)
	digest, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if weak.NeedsUpgrade(digest) {
		t.Fatal("digest under current parameters must not need upgrade")
	}

	strongCfg := testConfig()
	strongCfg.Time = 2
	strong, err := NewArgon2(strongCfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if !strong.NeedsUpgrade(digest) {
		t.Fatal("expected weaker digest to need upgrade")
	}
	if strong.NeedsUpgrade("garbage") {
		t.Fatal("unreadable digest must not report upgrade")
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}

	cfg = testConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt config to be rejected")
	}

	cfg = testConfig()
	cfg.Time = 1000
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected excessive time cost to be rejected")
	}
}

func FuzzVerifyNeverPanics(f *testing.F) {
	h, err := NewArgon2(testConfig())
	if err != nil {
		f.Fatalf("NewArgon2 error: %v", err)
	}
	f.Add("pw", "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA")
	f.Add("pw", "$2a$04$")
	f.Fuzz(func(t *testing.T, password, digest string) {
		_ = h.Verify(password, digest)
		_ = h.NeedsUpgrade(digest)
	})
}
