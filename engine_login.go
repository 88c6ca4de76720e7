package selfauth

import (
	"context"

	internalflows "github.com/MrEthical07/selfauth/internal/flows"
)

// Login checks email and password, then the account gates in this order:
// inactive, 2FA required, 2FA code wrong. On success it returns a bearer
// token and a fresh session token.
//
// Unknown emails and wrong passwords both return [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ip, ua := requestMeta(ctx, req.ClientIP, req.UserAgent)
	res, err := internalflows.RunLogin(ctx, internalflows.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		TOTPCode:  req.TOTPCode,
		ClientIP:  ip,
		UserAgent: ua,
	}, e.flows.Login)
	if err != nil {
		return nil, err
	}
	return loginResultOf(res), nil
}

func loginResultOf(res internalflows.LoginResult) *LoginResult {
	return &LoginResult{
		AccessToken:      res.Session.AccessToken,
		TokenType:        TokenTypeBearer,
		AccessExpiresAt:  res.Session.AccessExpiresAt,
		SessionToken:     res.Session.SessionToken,
		SessionExpiresAt: res.Session.SessionExpiresAt,
		User:             identityOfAccount(res.Account),
	}
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	return internalflows.LoginDeps{
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		DummyHash:      e.dummyHash,

		FindByEmail:        e.findByEmail,
		IsNotFound:         isNotFound,
		VerifyPassword:     e.hasher.Verify,
		NeedsUpgrade:       e.hasher.NeedsUpgrade,
		HashPassword:       e.hasher.Hash,
		UpdatePasswordHash: e.updatePasswordHash,
		VerifyTOTP:         e.verifyTOTP,

		SessionIssuer: e.sessionIssuer(),
		Observer:      e.observer(),
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:              int(MetricLoginSuccess),
			LoginFailure:              int(MetricLoginFailure),
			LoginSecondFactorRequired: int(MetricLoginSecondFactorRequired),
			LoginInactive:             int(MetricLoginInactive),
			TOTPFailure:               int(MetricTOTPFailure),
			PasswordRehash:            int(MetricPasswordRehash),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess: auditEventLoginSuccess,
			LoginFailure: auditEventLoginFailure,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:        ErrEngineNotReady,
			InvalidCredentials:    ErrInvalidCredentials,
			AccountInactive:       ErrAccountInactive,
			SecondFactorRequired:  ErrSecondFactorRequired,
			InvalidSecondFactor:   ErrInvalidSecondFactor,
			SessionCreationFailed: ErrSessionCreationFailed,
			Unavailable:           ErrUnavailable,
		},
	}
}

