package selfauth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/selfauth"
)

func TestTOTPEnrollmentGatesLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "otp@example.com")

	secret := env.enableTOTP(t, id)

	_, err := env.engine.Login(ctx, selfauth.LoginRequest{Email: "otp@example.com", Password: testPassword})
	expectErr(t, err, selfauth.ErrSecondFactorRequired)
	if selfauth.PublicMessage(err) != "Two-factor authentication code required" {
		t.Fatalf("unexpected message %q", selfauth.PublicMessage(err))
	}

	_, err = env.engine.Login(ctx, selfauth.LoginRequest{Email: "otp@example.com", Password: testPassword, TOTPCode: wrongCode(t, secret, env.clock.Now())})
	expectErr(t, err, selfauth.ErrInvalidSecondFactor)

	res := env.login(t, "otp@example.com", totpCode(t, secret, env.clock.Now()))
	if !res.User.TOTPEnabled {
		t.Fatal("expected identity to report 2FA enabled")
	}
}

func TestTOTPLoginWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "window@example.com")
	secret := env.enableTOTP(t, id)
	now := env.clock.Now()

	for _, offset := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		code := totpCode(t, secret, now.Add(offset))
		if _, err := env.engine.Login(ctx, selfauth.LoginRequest{Email: "window@example.com", Password: testPassword, TOTPCode: code}); err != nil {
			t.Fatalf("code at offset %v rejected: %v", offset, err)
		}
	}

	for _, offset := range []time.Duration{-60 * time.Second, 60 * time.Second} {
		code := totpCode(t, secret, now.Add(offset))
		if inWindow(t, secret, now, code) {
			continue
		}
		_, err := env.engine.Login(ctx, selfauth.LoginRequest{Email: "window@example.com", Password: testPassword, TOTPCode: code})
		expectErr(t, err, selfauth.ErrInvalidSecondFactor)
	}
}

func TestSetupTOTPReturnsProvisioningURI(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "uri@example.com")

	setup, err := env.engine.SetupTOTP(context.Background(), id)
	if err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	if len(setup.Secret) != 32 {
		t.Fatalf("expected 160-bit base32 secret, got %q", setup.Secret)
	}
	for _, want := range []string{"otpauth://totp/", "issuer=selfauth", "secret=" + setup.Secret, "period=30", "digits=6"} {
		if !strings.Contains(setup.URI, want) {
			t.Fatalf("URI %q missing %q", setup.URI, want)
		}
	}

	rec, _ := env.store.FindByID(context.Background(), id.ID)
	if rec.TOTPSecret != setup.Secret || rec.TOTPEnabled {
		t.Fatalf("expected pending secret stored disabled, got %+v", rec)
	}
	// Pending enrollment does not gate login.
	env.login(t, "uri@example.com", "")
}

func TestTOTPEnrollmentErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "errs@example.com")

	expectErr(t, env.engine.VerifyTOTP(ctx, id, "123456"), selfauth.ErrTOTPNotSetUp)
	expectErr(t, env.engine.DisableTOTP(ctx, id, "123456"), selfauth.ErrTOTPNotSetUp)

	setup, err := env.engine.SetupTOTP(ctx, id)
	if err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	expectErr(t, env.engine.VerifyTOTP(ctx, id, "abc"), selfauth.ErrTOTPInvalidCode)
	expectErr(t, env.engine.DisableTOTP(ctx, id, totpCode(t, setup.Secret, env.clock.Now())), selfauth.ErrTOTPNotSetUp)

	if err := env.engine.VerifyTOTP(ctx, id, totpCode(t, setup.Secret, env.clock.Now())); err != nil {
		t.Fatalf("VerifyTOTP failed: %v", err)
	}
	_, err = env.engine.SetupTOTP(ctx, id)
	expectErr(t, err, selfauth.ErrTOTPAlreadyEnabled)
}

func TestResetupReplacesPendingSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "again@example.com")

	first, _ := env.engine.SetupTOTP(ctx, id)
	second, err := env.engine.SetupTOTP(ctx, id)
	if err != nil {
		t.Fatalf("second SetupTOTP failed: %v", err)
	}
	if first.Secret == second.Secret {
		t.Fatal("expected a fresh secret")
	}

	oldCode := totpCode(t, first.Secret, env.clock.Now())
	if !inWindow(t, second.Secret, env.clock.Now(), oldCode) {
		expectErr(t, env.engine.VerifyTOTP(ctx, id, oldCode), selfauth.ErrTOTPInvalidCode)
	}
	if err := env.engine.VerifyTOTP(ctx, id, totpCode(t, second.Secret, env.clock.Now())); err != nil {
		t.Fatalf("VerifyTOTP with latest secret failed: %v", err)
	}
}

func TestDisableTOTPClearsSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "off@example.com")
	secret := env.enableTOTP(t, id)

	expectErr(t, env.engine.DisableTOTP(ctx, id, wrongCode(t, secret, env.clock.Now())), selfauth.ErrTOTPInvalidCode)

	if err := env.engine.DisableTOTP(ctx, id, totpCode(t, secret, env.clock.Now())); err != nil {
		t.Fatalf("DisableTOTP failed: %v", err)
	}
	rec, _ := env.store.FindByID(ctx, id.ID)
	if rec.TOTPEnabled || rec.TOTPSecret != "" {
		t.Fatalf("expected 2FA fully cleared, got enabled=%v secret=%q", rec.TOTPEnabled, rec.TOTPSecret)
	}
	env.login(t, "off@example.com", "")
}

func inWindow(t *testing.T, secret string, now time.Time, code string) bool {
	t.Helper()
	for _, step := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		if totpCode(t, secret, now.Add(step)) == code {
			return true
		}
	}
	return false
}

// wrongCode returns a well-formed code that no step of the window accepts.
func wrongCode(t *testing.T, secret string, now time.Time) string {
	t.Helper()
	code := []byte(totpCode(t, secret, now))
	for range 10 {
		code[5] = '0' + (code[5]-'0'+1)%10
		if !inWindow(t, secret, now, string(code)) {
			return string(code)
		}
	}
	t.Fatal("could not derive a wrong code")
	return ""
}
