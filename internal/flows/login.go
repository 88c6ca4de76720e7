package flows

import (
	"context"
	"errors"
	"time"
)

type LoginInput struct {
	Email     string
	Password  string
	TOTPCode  string
	ClientIP  string
	UserAgent string
}

type LoginResult struct {
	Account Account
	Session IssuedSession
}

type LoginMetrics struct {
	LoginSuccess              int
	LoginFailure              int
	LoginSecondFactorRequired int
	LoginInactive             int
	TOTPFailure               int
	PasswordRehash            int
}

type LoginEvents struct {
	LoginSuccess string
	LoginFailure string
}

type LoginErrors struct {
	EngineNotReady        error
	InvalidCredentials    error
	AccountInactive       error
	SecondFactorRequired  error
	InvalidSecondFactor   error
	SessionCreationFailed error
	Unavailable           error
}

// LoginDeps captures password login dependencies.
type LoginDeps struct {
	UpgradeOnLogin bool
	// DummyHash is verified when the email is unknown so both failure paths
	// cost one hash computation.
	DummyHash string

	FindByEmail        func(ctx context.Context, email string) (Account, error)
	IsNotFound         func(error) bool
	VerifyPassword     func(password, hash string) bool
	NeedsUpgrade       func(hash string) bool
	HashPassword       func(password string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error
	VerifyTOTP         func(secret, code string, now time.Time) (bool, error)

	SessionIssuer
	Observer
	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin authenticates email and password, applies the account and 2FA
// gates in order, then issues a bearer token and a session.
//
// Unknown email and wrong password return the same error so callers cannot
// tell which accounts exist.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (LoginResult, error) {
	deps.Observer.normalize()
	if deps.FindByEmail == nil || deps.VerifyPassword == nil || deps.VerifyTOTP == nil || !deps.SessionIssuer.ready() {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	fail := func(userID string, err error, reason string) (LoginResult, error) {
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, "", err, map[string]string{"reason": reason, "ip": in.ClientIP})
		return LoginResult{}, err
	}

	email := NormalizeEmail(in.Email)
	acct, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if ctx.Err() != nil {
			return LoginResult{}, ctx.Err()
		}
		if !deps.IsNotFound(err) {
			return fail("", errors.Join(deps.Errors.Unavailable, err), "store_error")
		}
		_ = deps.VerifyPassword(in.Password, deps.DummyHash)
		deps.MetricInc(deps.Metrics.LoginFailure)
		return fail("", deps.Errors.InvalidCredentials, "unknown_email")
	}

	if !deps.VerifyPassword(in.Password, acct.PasswordHash) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return fail(acct.ID, deps.Errors.InvalidCredentials, "password")
	}
	if !acct.Active {
		deps.MetricInc(deps.Metrics.LoginInactive)
		return fail(acct.ID, deps.Errors.AccountInactive, "inactive")
	}

	now := deps.Now()
	if err := checkSecondFactor(acct, in.TOTPCode, now, deps.VerifyTOTP, SecondFactorErrors{
		Required: deps.Errors.SecondFactorRequired,
		Invalid:  deps.Errors.InvalidSecondFactor,
	}); err != nil {
		if errors.Is(err, deps.Errors.SecondFactorRequired) {
			deps.MetricInc(deps.Metrics.LoginSecondFactorRequired)
			return fail(acct.ID, err, "totp_required")
		}
		deps.MetricInc(deps.Metrics.TOTPFailure)
		deps.MetricInc(deps.Metrics.LoginFailure)
		return fail(acct.ID, err, "totp_invalid")
	}

	issued, err := deps.issue(ctx, acct.ID, in.ClientIP, in.UserAgent, deps.MetricInc)
	if err != nil {
		return fail(acct.ID, errors.Join(deps.Errors.SessionCreationFailed, err), "session_create")
	}

	if deps.UpgradeOnLogin {
		upgradePasswordHash(ctx, acct, in.Password, deps)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acct.ID, "", nil, map[string]string{"method": "password", "ip": in.ClientIP})
	return LoginResult{Account: acct, Session: issued}, nil
}

// upgradePasswordHash replaces a legacy or weaker digest. Failure leaves the
// old digest in place and is only logged.
func upgradePasswordHash(ctx context.Context, acct Account, password string, deps LoginDeps) {
	if deps.NeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	if !deps.NeedsUpgrade(acct.PasswordHash) {
		return
	}
	hash, err := deps.HashPassword(password)
	if err == nil {
		err = deps.UpdatePasswordHash(ctx, acct.ID, hash)
	}
	if err != nil {
		deps.Warn(ctx, "password rehash failed", "user_id", acct.ID, "error", err)
		return
	}
	deps.MetricInc(deps.Metrics.PasswordRehash)
}
