package selfauth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOfAndPublicMessage(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
		msg  string
	}{
		{ErrDuplicateIdentity, KindDuplicateIdentity, "Email already registered"},
		{ErrInvalidCredentials, KindInvalidCredentials, "Incorrect email or password"},
		{ErrAccountInactive, KindAccountInactive, "Inactive user"},
		{ErrSecondFactorRequired, KindSecondFactorRequired, "Two-factor authentication code required"},
		{ErrInvalidSecondFactor, KindInvalidSecondFactor, "Invalid two-factor authentication code"},
		{ErrTOTPAlreadyEnabled, KindAlreadyEnabled, "Two-factor authentication is already enabled"},
		{ErrTOTPNotSetUp, KindNotSetUp, "Two-factor authentication not set up"},
		{ErrTOTPInvalidCode, KindInvalidCode, "Invalid verification code"},
		{ErrInvalidOrExpiredToken, KindInvalidOrExpiredToken, "Invalid or expired token"},
		{ErrSelfProtectionViolation, KindSelfProtectionViolation, "Cannot remove own admin privileges or delete own account"},
		{ErrNotFound, KindNotFound, "User not found"},
		{ErrPasswordPolicy, KindInvalidInput, "Password does not meet requirements"},
		{fmt.Errorf("wrapped: %w", ErrForbidden), KindForbidden, "Not enough permissions"},
		{errors.Join(ErrSessionInvalidationFailed, errors.New("redis: timeout")), KindUnavailable, "Service temporarily unavailable"},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Errorf("KindOf(%v) = %q, want %q", tc.err, got, tc.kind)
		}
		if got := PublicMessage(tc.err); got != tc.msg {
			t.Errorf("PublicMessage(%v) = %q, want %q", tc.err, got, tc.msg)
		}
	}
}

func TestUnknownErrorsStayOpaque(t *testing.T) {
	err := errors.New("pq: relation users does not exist")
	if KindOf(err) != KindUnknown {
		t.Fatalf("expected unknown kind, got %q", KindOf(err))
	}
	if PublicMessage(err) != "Internal server error" {
		t.Fatalf("store detail leaked: %q", PublicMessage(err))
	}
	if KindOf(nil) != KindUnknown || PublicMessage(nil) != "" {
		t.Fatal("nil error must map to empty values")
	}
}

// nilStore satisfies both store interfaces and finds nothing.
type nilStore struct{}

func (nilStore) FindByEmail(context.Context, string) (CredentialRecord, error) {
	return CredentialRecord{}, ErrNotFound
}
func (nilStore) FindByID(context.Context, string) (CredentialRecord, error) {
	return CredentialRecord{}, ErrNotFound
}
func (nilStore) FindByMagicLinkToken(context.Context, string, time.Time) (CredentialRecord, error) {
	return CredentialRecord{}, ErrNotFound
}
func (nilStore) Create(context.Context, CreateCredentialInput) (CredentialRecord, error) {
	return CredentialRecord{}, ErrUnavailable
}
func (nilStore) Update(context.Context, string, CredentialUpdate) (CredentialRecord, error) {
	return CredentialRecord{}, ErrNotFound
}
func (nilStore) Delete(context.Context, string) error { return ErrNotFound }
func (nilStore) ConsumeResetToken(context.Context, string, time.Time, string) (CredentialRecord, error) {
	return CredentialRecord{}, ErrNotFound
}
func (nilStore) ConsumeMagicLinkToken(context.Context, string, time.Time) (CredentialRecord, error) {
	return CredentialRecord{}, ErrNotFound
}
func (nilStore) CreateSession(context.Context, Session) error { return nil }
func (nilStore) FindSession(context.Context, string, time.Time) (Session, error) {
	return Session{}, ErrNotFound
}
func (nilStore) DeleteUserSessions(context.Context, string) (int, error) { return 0, nil }
