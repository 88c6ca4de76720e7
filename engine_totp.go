package selfauth

import (
	"context"

	internalflows "github.com/MrEthical07/selfauth/internal/flows"
)

// SetupTOTP starts 2FA enrollment. The returned secret is stored but not
// active until VerifyTOTP confirms a code from it. Calling it again before
// verification replaces the pending secret.
func (e *Engine) SetupTOTP(ctx context.Context, id Identity) (*TOTPSetup, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if id.ID == "" {
		return nil, ErrInvalidCredentials
	}
	res, err := internalflows.RunSetupTOTP(ctx, id.ID, e.flows.TOTP)
	if err != nil {
		return nil, err
	}
	return &TOTPSetup{Secret: res.Secret, URI: res.URI}, nil
}

// VerifyTOTP enables 2FA once code matches the pending secret.
func (e *Engine) VerifyTOTP(ctx context.Context, id Identity, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if id.ID == "" {
		return ErrInvalidCredentials
	}
	return internalflows.RunVerifyTOTP(ctx, id.ID, code, e.flows.TOTP)
}

// DisableTOTP turns 2FA off; a valid current code is required.
func (e *Engine) DisableTOTP(ctx context.Context, id Identity, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if id.ID == "" {
		return ErrInvalidCredentials
	}
	return internalflows.RunDisableTOTP(ctx, id.ID, code, e.flows.TOTP)
}

func (e *Engine) totpFlowDeps() internalflows.TOTPDeps {
	return internalflows.TOTPDeps{
		FindByID:       e.findByID,
		GenerateSecret: e.totp.GenerateSecret,
		ProvisionURI:   e.totp.ProvisionURI,
		VerifyCode:     e.verifyTOTP,
		SaveTOTP: func(ctx context.Context, userID, secret string, enabled bool, ifSecret *string) error {
			_, err := e.update(ctx, userID, CredentialUpdate{
				TOTP:         &TOTPState{Secret: secret, Enabled: enabled},
				IfTOTPSecret: ifSecret,
			})
			return err
		},
		IsStale:    isStale,
		IsNotFound: isNotFound,
		Now:        e.now,

		Observer: e.observer(),
		Metrics: internalflows.TOTPMetrics{
			TOTPSetup:    int(MetricTOTPSetup),
			TOTPEnabled:  int(MetricTOTPEnabled),
			TOTPDisabled: int(MetricTOTPDisabled),
			TOTPFailure:  int(MetricTOTPFailure),
		},
		Events: internalflows.TOTPEvents{
			Setup:   auditEventTOTPSetup,
			Enable:  auditEventTOTPEnable,
			Disable: auditEventTOTPDisable,
		},
		Errors: internalflows.TOTPErrors{
			EngineNotReady: ErrEngineNotReady,
			AlreadyEnabled: ErrTOTPAlreadyEnabled,
			NotSetUp:       ErrTOTPNotSetUp,
			InvalidCode:    ErrTOTPInvalidCode,
			NotFound:       ErrNotFound,
			Unavailable:    ErrUnavailable,
		},
	}
}
