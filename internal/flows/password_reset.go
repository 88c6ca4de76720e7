package flows

import (
	"context"
	"errors"
	"time"
)

// ResetRequestedMessage is returned for every well-formed reset request,
// whether or not the email belongs to an account.
const ResetRequestedMessage = "If the email exists, a password reset link has been sent"

type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	SessionInvalidated          int
	NotificationFailure         int
}

type PasswordResetEvents struct {
	Request string
	Confirm string
}

type PasswordResetErrors struct {
	EngineNotReady            error
	InvalidInput              error
	PasswordPolicy            error
	InvalidOrExpiredToken     error
	Unavailable               error
	SessionInvalidationFailed error
}

// PasswordResetDeps captures password reset dependencies.
type PasswordResetDeps struct {
	TokenTTL          time.Duration
	MinPasswordLength int
	MaxPasswordLength int

	FindByEmail    func(ctx context.Context, email string) (Account, error)
	IsNotFound     func(error) bool
	NewOpaqueToken func() (string, error)
	HashToken      func(token string) string
	ValidToken     func(token string) bool
	// StoreResetToken overwrites any outstanding reset token of userID.
	StoreResetToken func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken matches digest and expiry, sets the new hash and
	// clears the token in one atomic step.
	ConsumeResetToken  func(ctx context.Context, tokenHash string, now time.Time, newHash string) (Account, error)
	HashPassword       func(password string) (string, error)
	DeleteUserSessions func(ctx context.Context, userID string) (int, error)
	SendPasswordReset  func(ctx context.Context, email, token, name string) error
	Now                func() time.Time

	Observer
	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunRequestPasswordReset mints and delivers a reset token for a known
// email. Unknown emails and backend failures return the same message as
// success.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) (string, error) {
	deps.Observer.normalize()
	if deps.FindByEmail == nil || deps.NewOpaqueToken == nil || deps.HashToken == nil || deps.StoreResetToken == nil || deps.Now == nil {
		return "", deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return "", deps.Errors.InvalidInput
	}
	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	acct, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.IsNotFound == nil || !deps.IsNotFound(err) {
			deps.Warn(ctx, "password reset lookup failed", "error", err)
		}
		return ResetRequestedMessage, nil
	}

	token, err := deps.NewOpaqueToken()
	if err != nil {
		deps.Warn(ctx, "password reset token generation failed", "user_id", acct.ID, "error", err)
		return ResetRequestedMessage, nil
	}
	expires := deps.Now().Add(deps.TokenTTL)
	if err := deps.StoreResetToken(ctx, acct.ID, deps.HashToken(token), expires); err != nil {
		deps.Warn(ctx, "password reset token store failed", "user_id", acct.ID, "error", err)
		return ResetRequestedMessage, nil
	}
	deps.EmitAudit(ctx, deps.Events.Request, true, acct.ID, "", nil, nil)

	if deps.SendPasswordReset != nil {
		if err := deps.SendPasswordReset(ctx, acct.Email, token, acct.DisplayName); err != nil {
			deps.MetricInc(deps.Metrics.NotificationFailure)
			deps.Warn(ctx, "password reset notification failed", "user_id", acct.ID, "error", err)
		}
	}
	return ResetRequestedMessage, nil
}

// RunConfirmPasswordReset consumes a reset token, sets the new password and
// deletes every session of the account.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	deps.Observer.normalize()
	if deps.ConsumeResetToken == nil || deps.HashPassword == nil || deps.HashToken == nil || deps.DeleteUserSessions == nil || deps.Now == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(userID string, err error) error {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.Confirm, false, userID, "", err, nil)
		return err
	}

	if !PasswordWithinPolicy(newPassword, deps.MinPasswordLength, deps.MaxPasswordLength) {
		return fail("", deps.Errors.PasswordPolicy)
	}
	if deps.ValidToken != nil && !deps.ValidToken(token) {
		return fail("", deps.Errors.InvalidOrExpiredToken)
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return errors.Join(deps.Errors.Unavailable, err)
	}

	acct, err := deps.ConsumeResetToken(ctx, deps.HashToken(token), deps.Now(), hash)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if deps.IsNotFound != nil && !deps.IsNotFound(err) {
			return errors.Join(deps.Errors.Unavailable, err)
		}
		return fail("", deps.Errors.InvalidOrExpiredToken)
	}

	n, err := deps.DeleteUserSessions(ctx, acct.ID)
	if err != nil {
		fail(acct.ID, deps.Errors.SessionInvalidationFailed)
		return errors.Join(deps.Errors.SessionInvalidationFailed, err)
	}
	for range n {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.Confirm, true, acct.ID, "", nil, nil)
	return nil
}
