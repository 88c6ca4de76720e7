package flows

import (
	"context"
	"errors"
	"time"
)

// MagicLinkRequestedMessage mirrors the reset message for the same reason.
const MagicLinkRequestedMessage = "If the email exists, a sign-in link has been sent"

type MagicLinkMetrics struct {
	MagicLinkRequest      int
	MagicLinkLoginSuccess int
	MagicLinkLoginFailure int
	LoginInactive         int
	TOTPFailure           int
	NotificationFailure   int
}

type MagicLinkEvents struct {
	Request string
	Login   string
}

type MagicLinkErrors struct {
	EngineNotReady        error
	Disabled              error
	InvalidInput          error
	InvalidOrExpiredToken error
	AccountInactive       error
	SecondFactorRequired  error
	InvalidSecondFactor   error
	SessionCreationFailed error
	Unavailable           error
}

type MagicLinkLoginInput struct {
	Token     string
	TOTPCode  string
	ClientIP  string
	UserAgent string
}

// MagicLinkDeps captures passwordless sign-in dependencies.
type MagicLinkDeps struct {
	Enabled  bool
	TokenTTL time.Duration

	FindByEmail      func(ctx context.Context, email string) (Account, error)
	IsNotFound       func(error) bool
	ValidToken       func(token string) bool
	StoreMagicLink   func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	FindByMagicLink  func(ctx context.Context, tokenHash string, now time.Time) (Account, error)
	ConsumeMagicLink func(ctx context.Context, tokenHash string, now time.Time) (Account, error)
	VerifyTOTP       func(secret, code string, now time.Time) (bool, error)
	SendMagicLink    func(ctx context.Context, email, token, name string) error

	SessionIssuer
	Observer
	Metrics MagicLinkMetrics
	Events  MagicLinkEvents
	Errors  MagicLinkErrors
}

// RunRequestMagicLink sends a single-use sign-in link to an active account.
func RunRequestMagicLink(ctx context.Context, email string, deps MagicLinkDeps) (string, error) {
	deps.Observer.normalize()
	if !deps.Enabled {
		return "", deps.Errors.Disabled
	}
	if deps.FindByEmail == nil || deps.StoreMagicLink == nil || !deps.SessionIssuer.ready() || deps.Now == nil {
		return "", deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return "", deps.Errors.InvalidInput
	}
	deps.MetricInc(deps.Metrics.MagicLinkRequest)

	acct, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.IsNotFound == nil || !deps.IsNotFound(err) {
			deps.Warn(ctx, "magic link lookup failed", "error", err)
		}
		return MagicLinkRequestedMessage, nil
	}
	if !acct.Active {
		return MagicLinkRequestedMessage, nil
	}

	token, err := deps.NewOpaqueToken()
	if err != nil {
		deps.Warn(ctx, "magic link token generation failed", "user_id", acct.ID, "error", err)
		return MagicLinkRequestedMessage, nil
	}
	if err := deps.StoreMagicLink(ctx, acct.ID, deps.HashToken(token), deps.Now().Add(deps.TokenTTL)); err != nil {
		deps.Warn(ctx, "magic link store failed", "user_id", acct.ID, "error", err)
		return MagicLinkRequestedMessage, nil
	}
	deps.EmitAudit(ctx, deps.Events.Request, true, acct.ID, "", nil, nil)

	if deps.SendMagicLink != nil {
		if err := deps.SendMagicLink(ctx, acct.Email, token, acct.DisplayName); err != nil {
			deps.MetricInc(deps.Metrics.NotificationFailure)
			deps.Warn(ctx, "magic link notification failed", "user_id", acct.ID, "error", err)
		}
	}
	return MagicLinkRequestedMessage, nil
}

// RunMagicLinkLogin signs in with a magic-link token. The token is only
// consumed once every gate has passed, so a missing 2FA code does not burn
// it; the consume itself is atomic and a race loser gets the
// invalid-token error.
func RunMagicLinkLogin(ctx context.Context, in MagicLinkLoginInput, deps MagicLinkDeps) (LoginResult, error) {
	deps.Observer.normalize()
	if !deps.Enabled {
		return LoginResult{}, deps.Errors.Disabled
	}
	if deps.FindByMagicLink == nil || deps.ConsumeMagicLink == nil || deps.VerifyTOTP == nil || !deps.SessionIssuer.ready() || deps.Now == nil {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	fail := func(userID string, err error) (LoginResult, error) {
		deps.MetricInc(deps.Metrics.MagicLinkLoginFailure)
		deps.EmitAudit(ctx, deps.Events.Login, false, userID, "", err, map[string]string{"ip": in.ClientIP})
		return LoginResult{}, err
	}

	if deps.ValidToken != nil && !deps.ValidToken(in.Token) {
		return fail("", deps.Errors.InvalidOrExpiredToken)
	}
	digest := deps.HashToken(in.Token)
	now := deps.Now()

	acct, err := deps.FindByMagicLink(ctx, digest, now)
	if err != nil {
		if deps.IsNotFound != nil && !deps.IsNotFound(err) {
			return LoginResult{}, errors.Join(deps.Errors.Unavailable, err)
		}
		return fail("", deps.Errors.InvalidOrExpiredToken)
	}
	if !acct.Active {
		deps.MetricInc(deps.Metrics.LoginInactive)
		return fail(acct.ID, deps.Errors.AccountInactive)
	}
	if err := checkSecondFactor(acct, in.TOTPCode, now, deps.VerifyTOTP, SecondFactorErrors{
		Required: deps.Errors.SecondFactorRequired,
		Invalid:  deps.Errors.InvalidSecondFactor,
	}); err != nil {
		if errors.Is(err, deps.Errors.InvalidSecondFactor) {
			deps.MetricInc(deps.Metrics.TOTPFailure)
		}
		return fail(acct.ID, err)
	}

	acct, err = deps.ConsumeMagicLink(ctx, digest, now)
	if err != nil {
		if deps.IsNotFound != nil && !deps.IsNotFound(err) {
			return LoginResult{}, errors.Join(deps.Errors.Unavailable, err)
		}
		return fail("", deps.Errors.InvalidOrExpiredToken)
	}

	issued, err := deps.issue(ctx, acct.ID, in.ClientIP, in.UserAgent, deps.MetricInc)
	if err != nil {
		return fail(acct.ID, errors.Join(deps.Errors.SessionCreationFailed, err))
	}

	deps.MetricInc(deps.Metrics.MagicLinkLoginSuccess)
	deps.EmitAudit(ctx, deps.Events.Login, true, acct.ID, "", nil, map[string]string{"method": "magic_link", "ip": in.ClientIP})
	return LoginResult{Account: acct, Session: issued}, nil
}
