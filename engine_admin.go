package selfauth

import (
	"context"

	internalflows "github.com/MrEthical07/selfauth/internal/flows"
)

// AdminGetUser returns another account. actor must be an active admin.
func (e *Engine) AdminGetUser(ctx context.Context, actor Identity, targetID string) (Identity, error) {
	if e == nil {
		return Identity{}, ErrEngineNotReady
	}
	acct, err := internalflows.RunAdminGet(ctx, actor.ID, targetID, e.flows.Admin)
	if err != nil {
		return Identity{}, err
	}
	return identityOfAccount(acct), nil
}

// AdminUpdateUser changes the active and admin flags of targetID.
//
// The actor's admin status is re-read from the store rather than trusted
// from the passed identity. An admin cannot clear their own admin flag
// ([ErrSelfProtectionViolation], record unchanged). Deactivating an account
// deletes its sessions.
func (e *Engine) AdminUpdateUser(ctx context.Context, actor Identity, targetID string, update AdminUpdate) (Identity, error) {
	if e == nil {
		return Identity{}, ErrEngineNotReady
	}
	acct, err := internalflows.RunAdminUpdate(ctx, actor.ID, targetID, internalflows.AdminChange{
		Active: update.Active,
		Admin:  update.Admin,
	}, e.flows.Admin)
	if err != nil {
		return Identity{}, err
	}
	return identityOfAccount(acct), nil
}

// AdminDeleteUser removes targetID and its sessions. Admins cannot delete
// themselves.
func (e *Engine) AdminDeleteUser(ctx context.Context, actor Identity, targetID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunAdminDelete(ctx, actor.ID, targetID, e.flows.Admin)
}

func (e *Engine) adminFlowDeps() internalflows.AdminDeps {
	return internalflows.AdminDeps{
		FindByID: e.findByID,
		ApplyAdminChange: func(ctx context.Context, userID string, change internalflows.AdminChange) (internalflows.Account, error) {
			return e.update(ctx, userID, CredentialUpdate{Active: change.Active, Admin: change.Admin})
		},
		DeleteAccount:      e.credentials.Delete,
		DeleteUserSessions: e.sessions.DeleteUserSessions,
		IsNotFound:         isNotFound,

		Observer: e.observer(),
		Metrics: internalflows.AdminMetrics{
			AdminUpdate:             int(MetricAdminUpdate),
			AdminDelete:             int(MetricAdminDelete),
			SelfProtectionViolation: int(MetricSelfProtectionViolation),
			SessionInvalidated:      int(MetricSessionInvalidated),
		},
		Events: internalflows.AdminEvents{
			Update: auditEventAdminUpdate,
			Delete: auditEventAdminDelete,
		},
		Errors: internalflows.AdminErrors{
			EngineNotReady:            ErrEngineNotReady,
			Forbidden:                 ErrForbidden,
			NotFound:                  ErrNotFound,
			SelfProtectionViolation:   ErrSelfProtectionViolation,
			Unavailable:               ErrUnavailable,
			SessionInvalidationFailed: ErrSessionInvalidationFailed,
		},
	}
}
