package flows

import (
	"context"
	"errors"
	"time"
)

type TOTPMetrics struct {
	TOTPSetup    int
	TOTPEnabled  int
	TOTPDisabled int
	TOTPFailure  int
}

type TOTPEvents struct {
	Setup   string
	Enable  string
	Disable string
}

type TOTPErrors struct {
	EngineNotReady error
	AlreadyEnabled error
	NotSetUp       error
	InvalidCode    error
	NotFound       error
	Unavailable    error
}

// TOTPSetupResult is returned once to the enrolling user.
type TOTPSetupResult struct {
	Secret string
	URI    string
}

// TOTPDeps captures enrollment and removal dependencies.
type TOTPDeps struct {
	FindByID       func(ctx context.Context, userID string) (Account, error)
	GenerateSecret func() (string, error)
	ProvisionURI   func(secret, account string) (string, error)
	VerifyCode     func(secret, code string, now time.Time) (bool, error)
	// SaveTOTP replaces secret and enabled flag together. When ifSecret is
	// non-nil the write only applies if the stored secret still equals it;
	// otherwise IsStale must report the returned error.
	SaveTOTP   func(ctx context.Context, userID, secret string, enabled bool, ifSecret *string) error
	IsStale    func(error) bool
	IsNotFound func(error) bool
	Now        func() time.Time

	Observer
	Metrics TOTPMetrics
	Events  TOTPEvents
	Errors  TOTPErrors
}

func (d TOTPDeps) ready() bool {
	return d.FindByID != nil && d.GenerateSecret != nil && d.ProvisionURI != nil && d.VerifyCode != nil && d.SaveTOTP != nil && d.Now != nil
}

func (d TOTPDeps) storeError(err error) error {
	if d.IsNotFound != nil && d.IsNotFound(err) {
		return d.Errors.NotFound
	}
	return errors.Join(d.Errors.Unavailable, err)
}

// RunSetupTOTP starts enrollment: a fresh secret is stored disabled,
// replacing any earlier pending one.
func RunSetupTOTP(ctx context.Context, userID string, deps TOTPDeps) (TOTPSetupResult, error) {
	deps.Observer.normalize()
	if !deps.ready() {
		return TOTPSetupResult{}, deps.Errors.EngineNotReady
	}

	acct, err := deps.FindByID(ctx, userID)
	if err != nil {
		return TOTPSetupResult{}, deps.storeError(err)
	}
	if acct.TOTPEnabled {
		return TOTPSetupResult{}, deps.Errors.AlreadyEnabled
	}

	secret, err := deps.GenerateSecret()
	if err != nil {
		return TOTPSetupResult{}, errors.Join(deps.Errors.Unavailable, err)
	}
	uri, err := deps.ProvisionURI(secret, acct.Email)
	if err != nil {
		return TOTPSetupResult{}, errors.Join(deps.Errors.Unavailable, err)
	}
	if err := deps.SaveTOTP(ctx, userID, secret, false, nil); err != nil {
		return TOTPSetupResult{}, deps.storeError(err)
	}

	deps.MetricInc(deps.Metrics.TOTPSetup)
	deps.EmitAudit(ctx, deps.Events.Setup, true, userID, userID, nil, nil)
	return TOTPSetupResult{Secret: secret, URI: uri}, nil
}

// RunVerifyTOTP confirms enrollment with a code from the authenticator.
// The enable write is conditional on the secret that was verified, so a
// concurrent re-setup makes this call fail instead of enabling a secret the
// user never saw.
func RunVerifyTOTP(ctx context.Context, userID, code string, deps TOTPDeps) error {
	deps.Observer.normalize()
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	acct, err := deps.FindByID(ctx, userID)
	if err != nil {
		return deps.storeError(err)
	}
	if acct.TOTPSecret == "" {
		return deps.Errors.NotSetUp
	}
	if acct.TOTPEnabled {
		return deps.Errors.AlreadyEnabled
	}

	ok, err := deps.VerifyCode(acct.TOTPSecret, code, deps.Now())
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.TOTPFailure)
		deps.EmitAudit(ctx, deps.Events.Enable, false, userID, userID, deps.Errors.InvalidCode, nil)
		return deps.Errors.InvalidCode
	}

	verified := acct.TOTPSecret
	if err := deps.SaveTOTP(ctx, userID, verified, true, &verified); err != nil {
		if deps.IsStale != nil && deps.IsStale(err) {
			deps.MetricInc(deps.Metrics.TOTPFailure)
			deps.EmitAudit(ctx, deps.Events.Enable, false, userID, userID, deps.Errors.InvalidCode, map[string]string{"reason": "stale_secret"})
			return deps.Errors.InvalidCode
		}
		return deps.storeError(err)
	}

	deps.MetricInc(deps.Metrics.TOTPEnabled)
	deps.EmitAudit(ctx, deps.Events.Enable, true, userID, userID, nil, nil)
	return nil
}

// RunDisableTOTP turns 2FA off after checking a current code. Both the flag
// and the secret are cleared.
func RunDisableTOTP(ctx context.Context, userID, code string, deps TOTPDeps) error {
	deps.Observer.normalize()
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	acct, err := deps.FindByID(ctx, userID)
	if err != nil {
		return deps.storeError(err)
	}
	if !acct.TOTPEnabled {
		return deps.Errors.NotSetUp
	}

	ok, err := deps.VerifyCode(acct.TOTPSecret, code, deps.Now())
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.TOTPFailure)
		deps.EmitAudit(ctx, deps.Events.Disable, false, userID, userID, deps.Errors.InvalidCode, nil)
		return deps.Errors.InvalidCode
	}

	current := acct.TOTPSecret
	if err := deps.SaveTOTP(ctx, userID, "", false, &current); err != nil {
		if deps.IsStale != nil && deps.IsStale(err) {
			return deps.Errors.InvalidCode
		}
		return deps.storeError(err)
	}

	deps.MetricInc(deps.Metrics.TOTPDisabled)
	deps.EmitAudit(ctx, deps.Events.Disable, true, userID, userID, nil, nil)
	return nil
}
