package selfauth

import (
	"context"

	internalflows "github.com/MrEthical07/selfauth/internal/flows"
)

// Register creates an active, non-admin account and sends a welcome email.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Identity, error) {
	if e == nil {
		return Identity{}, ErrEngineNotReady
	}
	acct, err := internalflows.RunRegister(ctx, internalflows.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	}, e.flows.Account)
	if err != nil {
		return Identity{}, err
	}
	return identityOfAccount(acct), nil
}

// EnsureAdmin makes sure an administrator with email exists. An existing
// account is promoted and keeps its password; a missing one is created.
// Servers call it at startup with their bootstrap credentials.
func (e *Engine) EnsureAdmin(ctx context.Context, email, password, name string) (Identity, error) {
	if e == nil {
		return Identity{}, ErrEngineNotReady
	}
	acct, err := internalflows.RunEnsureAdmin(ctx, internalflows.RegisterInput{
		Email:       email,
		Password:    password,
		DisplayName: name,
	}, e.flows.Account)
	if err != nil {
		return Identity{}, err
	}
	return identityOfAccount(acct), nil
}

// UpdateProfile applies self-service profile changes and returns the
// refreshed identity.
func (e *Engine) UpdateProfile(ctx context.Context, id Identity, update ProfileUpdate) (Identity, error) {
	if e == nil {
		return Identity{}, ErrEngineNotReady
	}
	if id.ID == "" {
		return Identity{}, ErrInvalidCredentials
	}
	acct, err := internalflows.RunUpdateProfile(ctx, id.ID, update.DisplayName, e.flows.Account)
	if err != nil {
		return Identity{}, err
	}
	return identityOfAccount(acct), nil
}

// ChangePassword replaces the password after checking the current one.
// Every session of the account is deleted.
func (e *Engine) ChangePassword(ctx context.Context, id Identity, current, next string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if id.ID == "" {
		return ErrInvalidCredentials
	}
	return internalflows.RunChangePassword(ctx, id.ID, current, next, e.flows.Account)
}

func (e *Engine) accountFlowDeps() internalflows.AccountDeps {
	return internalflows.AccountDeps{
		MinPasswordLength: e.config.Password.MinLength,
		MaxPasswordLength: e.config.Password.MaxLength,

		FindByEmail: e.findByEmail,
		FindByID:    e.findByID,
		CreateAccount: func(ctx context.Context, in internalflows.NewAccount) (internalflows.Account, error) {
			rec, err := e.credentials.Create(ctx, CreateCredentialInput{
				ID:           in.ID,
				Email:        in.Email,
				DisplayName:  in.DisplayName,
				PasswordHash: in.PasswordHash,
				Active:       true,
				Admin:        in.Admin,
				CreatedAt:    in.CreatedAt,
			})
			if err != nil {
				return internalflows.Account{}, err
			}
			return accountOf(rec), nil
		},
		UpdatePasswordHash: e.updatePasswordHash,
		UpdateDisplayName: func(ctx context.Context, userID, name string) error {
			_, err := e.update(ctx, userID, CredentialUpdate{DisplayName: &name})
			return err
		},
		SetAdmin: func(ctx context.Context, userID string, admin bool) error {
			_, err := e.update(ctx, userID, CredentialUpdate{Admin: &admin})
			return err
		},
		HashPassword:       e.hasher.Hash,
		VerifyPassword:     e.hasher.Verify,
		DeleteUserSessions: e.sessions.DeleteUserSessions,
		SendWelcome:        e.sendWelcome(),
		NewID:              newID,
		Now:                e.now,
		IsNotFound:         isNotFound,
		IsDuplicate:        isDuplicate,

		Observer: e.observer(),
		Metrics: internalflows.AccountMetrics{
			Registration:          int(MetricRegistration),
			RegistrationDuplicate: int(MetricRegistrationDuplicate),
			PasswordChange:        int(MetricPasswordChange),
			SessionInvalidated:    int(MetricSessionInvalidated),
			NotificationFailure:   int(MetricNotificationFailure),
		},
		Events: internalflows.AccountEvents{
			Register:       auditEventRegister,
			PasswordChange: auditEventPasswordChange,
			ProfileUpdate:  auditEventProfileUpdate,
		},
		Errors: internalflows.AccountErrors{
			EngineNotReady:            ErrEngineNotReady,
			InvalidInput:              ErrInvalidInput,
			PasswordPolicy:            ErrPasswordPolicy,
			DuplicateIdentity:         ErrDuplicateIdentity,
			InvalidCredentials:        ErrInvalidCredentials,
			NotFound:                  ErrNotFound,
			Unavailable:               ErrUnavailable,
			SessionInvalidationFailed: ErrSessionInvalidationFailed,
		},
	}
}

func (e *Engine) sendWelcome() func(ctx context.Context, email, name string) error {
	if e.notifier == nil {
		return nil
	}
	return e.notifier.SendWelcome
}
