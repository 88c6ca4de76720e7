package flows

import (
	"context"
	"errors"
	"strings"
	"time"
)

type AccountMetrics struct {
	Registration          int
	RegistrationDuplicate int
	PasswordChange        int
	SessionInvalidated    int
	NotificationFailure   int
}

type AccountEvents struct {
	Register       string
	PasswordChange string
	ProfileUpdate  string
}

type AccountErrors struct {
	EngineNotReady            error
	InvalidInput              error
	PasswordPolicy            error
	DuplicateIdentity         error
	InvalidCredentials        error
	NotFound                  error
	Unavailable               error
	SessionInvalidationFailed error
}

// NewAccount is what the store receives on registration.
type NewAccount struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Admin        bool
	CreatedAt    time.Time
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	// Admin is honored only when set by a trusted caller.
	Admin bool
}

// AccountDeps captures registration and self-service profile dependencies.
type AccountDeps struct {
	MinPasswordLength int
	MaxPasswordLength int

	FindByEmail        func(ctx context.Context, email string) (Account, error)
	FindByID           func(ctx context.Context, userID string) (Account, error)
	CreateAccount      func(ctx context.Context, in NewAccount) (Account, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error
	UpdateDisplayName  func(ctx context.Context, userID, name string) error
	SetAdmin           func(ctx context.Context, userID string, admin bool) error
	HashPassword       func(password string) (string, error)
	VerifyPassword     func(password, hash string) bool
	DeleteUserSessions func(ctx context.Context, userID string) (int, error)
	SendWelcome        func(ctx context.Context, email, name string) error
	NewID              func() string
	Now                func() time.Time
	IsNotFound         func(error) bool
	IsDuplicate        func(error) bool

	Observer
	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

func (d AccountDeps) storeError(err error) error {
	if d.IsNotFound != nil && d.IsNotFound(err) {
		return d.Errors.NotFound
	}
	return errors.Join(d.Errors.Unavailable, err)
}

// RunRegister validates input, hashes the password and creates an active
// account. The welcome notification is best-effort.
func RunRegister(ctx context.Context, in RegisterInput, deps AccountDeps) (Account, error) {
	deps.Observer.normalize()
	if deps.CreateAccount == nil || deps.HashPassword == nil || deps.NewID == nil || deps.Now == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.DisplayName)
	if !ValidEmail(email) || name == "" {
		return Account{}, deps.Errors.InvalidInput
	}
	if !PasswordWithinPolicy(in.Password, deps.MinPasswordLength, deps.MaxPasswordLength) {
		return Account{}, deps.Errors.PasswordPolicy
	}

	if deps.FindByEmail != nil {
		_, err := deps.FindByEmail(ctx, email)
		switch {
		case err == nil:
			deps.MetricInc(deps.Metrics.RegistrationDuplicate)
			deps.EmitAudit(ctx, deps.Events.Register, false, "", "", deps.Errors.DuplicateIdentity, nil)
			return Account{}, deps.Errors.DuplicateIdentity
		case deps.IsNotFound == nil || !deps.IsNotFound(err):
			return Account{}, errors.Join(deps.Errors.Unavailable, err)
		}
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return Account{}, errors.Join(deps.Errors.Unavailable, err)
	}

	// The store enforces uniqueness too; a concurrent registration that
	// slips past the lookup lands here.
	acct, err := deps.CreateAccount(ctx, NewAccount{
		ID:           deps.NewID(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Admin:        in.Admin,
		CreatedAt:    deps.Now(),
	})
	if err != nil {
		if deps.IsDuplicate != nil && deps.IsDuplicate(err) {
			deps.MetricInc(deps.Metrics.RegistrationDuplicate)
			deps.EmitAudit(ctx, deps.Events.Register, false, "", "", deps.Errors.DuplicateIdentity, nil)
			return Account{}, deps.Errors.DuplicateIdentity
		}
		return Account{}, errors.Join(deps.Errors.Unavailable, err)
	}

	deps.MetricInc(deps.Metrics.Registration)
	deps.EmitAudit(ctx, deps.Events.Register, true, acct.ID, "", nil, nil)

	if deps.SendWelcome != nil {
		if err := deps.SendWelcome(ctx, acct.Email, acct.DisplayName); err != nil {
			deps.MetricInc(deps.Metrics.NotificationFailure)
			deps.Warn(ctx, "welcome notification failed", "user_id", acct.ID, "error", err)
		}
	}
	return acct, nil
}

// RunChangePassword replaces the password after checking the current one
// and revokes every session of the account.
func RunChangePassword(ctx context.Context, userID, current, next string, deps AccountDeps) error {
	deps.Observer.normalize()
	if deps.FindByID == nil || deps.UpdatePasswordHash == nil || deps.HashPassword == nil || deps.VerifyPassword == nil || deps.DeleteUserSessions == nil {
		return deps.Errors.EngineNotReady
	}

	acct, err := deps.FindByID(ctx, userID)
	if err != nil {
		return deps.storeError(err)
	}
	if !deps.VerifyPassword(current, acct.PasswordHash) {
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, userID, userID, deps.Errors.InvalidCredentials, nil)
		return deps.Errors.InvalidCredentials
	}
	if !PasswordWithinPolicy(next, deps.MinPasswordLength, deps.MaxPasswordLength) {
		return deps.Errors.PasswordPolicy
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return errors.Join(deps.Errors.Unavailable, err)
	}
	if err := deps.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return deps.storeError(err)
	}
	deps.MetricInc(deps.Metrics.PasswordChange)

	n, err := deps.DeleteUserSessions(ctx, userID)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, userID, userID, deps.Errors.SessionInvalidationFailed, nil)
		return errors.Join(deps.Errors.SessionInvalidationFailed, err)
	}
	for range n {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
	}
	deps.EmitAudit(ctx, deps.Events.PasswordChange, true, userID, userID, nil, nil)
	return nil
}

// RunUpdateProfile changes the display name and returns the fresh account.
func RunUpdateProfile(ctx context.Context, userID string, displayName *string, deps AccountDeps) (Account, error) {
	deps.Observer.normalize()
	if deps.FindByID == nil || deps.UpdateDisplayName == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	if displayName != nil {
		name := strings.TrimSpace(*displayName)
		if name == "" {
			return Account{}, deps.Errors.InvalidInput
		}
		if err := deps.UpdateDisplayName(ctx, userID, name); err != nil {
			return Account{}, deps.storeError(err)
		}
		deps.EmitAudit(ctx, deps.Events.ProfileUpdate, true, userID, userID, nil, nil)
	}

	acct, err := deps.FindByID(ctx, userID)
	if err != nil {
		return Account{}, deps.storeError(err)
	}
	return acct, nil
}

// RunEnsureAdmin bootstraps an administrator. An existing account is
// promoted; otherwise one is registered with the admin flag set.
// Promotion does not touch the existing password.
func RunEnsureAdmin(ctx context.Context, in RegisterInput, deps AccountDeps) (Account, error) {
	deps.Observer.normalize()
	if deps.FindByEmail == nil || deps.SetAdmin == nil || deps.FindByID == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(in.Email)
	acct, err := deps.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if acct.Admin {
			return acct, nil
		}
		if err := deps.SetAdmin(ctx, acct.ID, true); err != nil {
			return Account{}, deps.storeError(err)
		}
		acct.Admin = true
		return acct, nil
	case deps.IsNotFound != nil && deps.IsNotFound(err):
		in.Admin = true
		return RunRegister(ctx, in, deps)
	default:
		return Account{}, errors.Join(deps.Errors.Unavailable, err)
	}
}
