package selfauth

import (
	"context"
	"time"

	"github.com/MrEthical07/selfauth/internal"
	internalflows "github.com/MrEthical07/selfauth/internal/flows"
)

// PasswordResetRequestedMessage is the only successful answer to a reset
// request, whether or not the email belongs to an account.
const PasswordResetRequestedMessage = internalflows.ResetRequestedMessage

// RequestPasswordReset mails a single-use reset token valid for
// [ResetTokenTTL] to a known email. A newer request replaces any earlier
// token. The result never reveals whether the account exists; only a
// malformed email is rejected with [ErrInvalidInput].
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return internalflows.RunRequestPasswordReset(ctx, email, e.flows.PasswordReset)
}

// ConfirmPasswordReset sets a new password using a reset token and deletes
// every session of the account. A token works once.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunConfirmPasswordReset(ctx, token, newPassword, e.flows.PasswordReset)
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	deps := internalflows.PasswordResetDeps{
		TokenTTL:          ResetTokenTTL,
		MinPasswordLength: e.config.Password.MinLength,
		MaxPasswordLength: e.config.Password.MaxLength,

		FindByEmail:    e.findByEmail,
		IsNotFound:     isNotFound,
		NewOpaqueToken: internal.NewOpaqueToken,
		HashToken:      internal.HashToken,
		ValidToken:     internal.ValidOpaqueToken,
		StoreResetToken: func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
			_, err := e.update(ctx, userID, CredentialUpdate{
				ResetToken: &InlineToken{Hash: tokenHash, ExpiresAt: expiresAt},
			})
			return err
		},
		ConsumeResetToken: func(ctx context.Context, tokenHash string, now time.Time, newHash string) (internalflows.Account, error) {
			rec, err := e.credentials.ConsumeResetToken(ctx, tokenHash, now, newHash)
			if err != nil {
				return internalflows.Account{}, err
			}
			return accountOf(rec), nil
		},
		HashPassword:       e.hasher.Hash,
		DeleteUserSessions: e.sessions.DeleteUserSessions,
		Now:                e.now,

		Observer: e.observer(),
		Metrics: internalflows.PasswordResetMetrics{
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			SessionInvalidated:          int(MetricSessionInvalidated),
			NotificationFailure:         int(MetricNotificationFailure),
		},
		Events: internalflows.PasswordResetEvents{
			Request: auditEventPasswordResetRequest,
			Confirm: auditEventPasswordResetConfirm,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:            ErrEngineNotReady,
			InvalidInput:              ErrInvalidInput,
			PasswordPolicy:            ErrPasswordPolicy,
			InvalidOrExpiredToken:     ErrInvalidOrExpiredToken,
			Unavailable:               ErrUnavailable,
			SessionInvalidationFailed: ErrSessionInvalidationFailed,
		},
	}
	if e.notifier != nil {
		deps.SendPasswordReset = e.notifier.SendPasswordReset
	}
	return deps
}
