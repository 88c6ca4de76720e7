package selfauth

import (
	"context"
	"time"

	"github.com/MrEthical07/selfauth/internal"
	internalflows "github.com/MrEthical07/selfauth/internal/flows"
)

// MagicLinkRequestedMessage is the only successful answer to a magic-link
// request.
const MagicLinkRequestedMessage = internalflows.MagicLinkRequestedMessage

// RequestMagicLink mails a single-use sign-in token to an active account.
// Like password reset it never reveals whether the email is registered.
func (e *Engine) RequestMagicLink(ctx context.Context, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return internalflows.RunRequestMagicLink(ctx, email, e.flows.MagicLink)
}

// LoginWithMagicLink signs in with a magic-link token. Accounts with 2FA
// must also supply a code; the token is not spent when the code is missing.
func (e *Engine) LoginWithMagicLink(ctx context.Context, req MagicLinkLoginRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ip, ua := requestMeta(ctx, req.ClientIP, req.UserAgent)
	res, err := internalflows.RunMagicLinkLogin(ctx, internalflows.MagicLinkLoginInput{
		Token:     req.Token,
		TOTPCode:  req.TOTPCode,
		ClientIP:  ip,
		UserAgent: ua,
	}, e.flows.MagicLink)
	if err != nil {
		return nil, err
	}
	return loginResultOf(res), nil
}

func (e *Engine) magicLinkFlowDeps() internalflows.MagicLinkDeps {
	deps := internalflows.MagicLinkDeps{
		Enabled:  e.config.MagicLink.Enabled,
		TokenTTL: e.config.MagicLink.TokenTTL,

		FindByEmail: e.findByEmail,
		IsNotFound:  isNotFound,
		ValidToken:  internal.ValidOpaqueToken,
		StoreMagicLink: func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
			_, err := e.update(ctx, userID, CredentialUpdate{
				MagicLink: &InlineToken{Hash: tokenHash, ExpiresAt: expiresAt},
			})
			return err
		},
		FindByMagicLink: func(ctx context.Context, tokenHash string, now time.Time) (internalflows.Account, error) {
			rec, err := e.credentials.FindByMagicLinkToken(ctx, tokenHash, now)
			if err != nil {
				return internalflows.Account{}, err
			}
			return accountOf(rec), nil
		},
		ConsumeMagicLink: func(ctx context.Context, tokenHash string, now time.Time) (internalflows.Account, error) {
			rec, err := e.credentials.ConsumeMagicLinkToken(ctx, tokenHash, now)
			if err != nil {
				return internalflows.Account{}, err
			}
			return accountOf(rec), nil
		},
		VerifyTOTP: e.verifyTOTP,

		SessionIssuer: e.sessionIssuer(),
		Observer:      e.observer(),
		Metrics: internalflows.MagicLinkMetrics{
			MagicLinkRequest:      int(MetricMagicLinkRequest),
			MagicLinkLoginSuccess: int(MetricMagicLinkLoginSuccess),
			MagicLinkLoginFailure: int(MetricMagicLinkLoginFailure),
			LoginInactive:         int(MetricLoginInactive),
			TOTPFailure:           int(MetricTOTPFailure),
			NotificationFailure:   int(MetricNotificationFailure),
		},
		Events: internalflows.MagicLinkEvents{
			Request: auditEventMagicLinkRequest,
			Login:   auditEventMagicLinkLogin,
		},
		Errors: internalflows.MagicLinkErrors{
			EngineNotReady:        ErrEngineNotReady,
			Disabled:              ErrMagicLinkDisabled,
			InvalidInput:          ErrInvalidInput,
			InvalidOrExpiredToken: ErrInvalidOrExpiredToken,
			AccountInactive:       ErrAccountInactive,
			SecondFactorRequired:  ErrSecondFactorRequired,
			InvalidSecondFactor:   ErrInvalidSecondFactor,
			SessionCreationFailed: ErrSessionCreationFailed,
			Unavailable:           ErrUnavailable,
		},
	}
	if e.notifier != nil {
		deps.SendMagicLink = e.notifier.SendMagicLink
	}
	return deps
}
