package flows

import (
	"context"
	"errors"
	"strconv"
)

type AdminMetrics struct {
	AdminUpdate             int
	AdminDelete             int
	SelfProtectionViolation int
	SessionInvalidated      int
}

type AdminEvents struct {
	Update string
	Delete string
}

type AdminErrors struct {
	EngineNotReady            error
	Forbidden                 error
	NotFound                  error
	SelfProtectionViolation   error
	Unavailable               error
	SessionInvalidationFailed error
}

// AdminChange carries the optional flags an administrator may flip.
type AdminChange struct {
	Active *bool
	Admin  *bool
}

// AdminDeps captures administrator operations on other accounts.
type AdminDeps struct {
	FindByID           func(ctx context.Context, userID string) (Account, error)
	ApplyAdminChange   func(ctx context.Context, userID string, change AdminChange) (Account, error)
	DeleteAccount      func(ctx context.Context, userID string) error
	DeleteUserSessions func(ctx context.Context, userID string) (int, error)
	IsNotFound         func(error) bool

	Observer
	Metrics AdminMetrics
	Events  AdminEvents
	Errors  AdminErrors
}

func (d AdminDeps) storeError(err error) error {
	if d.IsNotFound != nil && d.IsNotFound(err) {
		return d.Errors.NotFound
	}
	return errors.Join(d.Errors.Unavailable, err)
}

// authorize re-reads the actor so a demoted or deactivated admin holding an
// old identity loses access immediately.
func (d AdminDeps) authorize(ctx context.Context, actorID string) error {
	actor, err := d.FindByID(ctx, actorID)
	if err != nil {
		if d.IsNotFound != nil && d.IsNotFound(err) {
			return d.Errors.Forbidden
		}
		return errors.Join(d.Errors.Unavailable, err)
	}
	if !actor.Active || !actor.Admin {
		return d.Errors.Forbidden
	}
	return nil
}

// RunAdminGet returns another account for an administrator.
func RunAdminGet(ctx context.Context, actorID, targetID string, deps AdminDeps) (Account, error) {
	deps.Observer.normalize()
	if deps.FindByID == nil {
		return Account{}, deps.Errors.EngineNotReady
	}
	if err := deps.authorize(ctx, actorID); err != nil {
		return Account{}, err
	}
	acct, err := deps.FindByID(ctx, targetID)
	if err != nil {
		return Account{}, deps.storeError(err)
	}
	return acct, nil
}

// RunAdminUpdate applies change to targetID. An administrator may not clear
// their own admin flag. Deactivation purges the target's sessions.
func RunAdminUpdate(ctx context.Context, actorID, targetID string, change AdminChange, deps AdminDeps) (Account, error) {
	deps.Observer.normalize()
	if deps.FindByID == nil || deps.ApplyAdminChange == nil || deps.DeleteUserSessions == nil {
		return Account{}, deps.Errors.EngineNotReady
	}
	if err := deps.authorize(ctx, actorID); err != nil {
		deps.EmitAudit(ctx, deps.Events.Update, false, targetID, actorID, err, nil)
		return Account{}, err
	}
	if _, err := deps.FindByID(ctx, targetID); err != nil {
		return Account{}, deps.storeError(err)
	}
	if actorID == targetID && change.Admin != nil && !*change.Admin {
		deps.MetricInc(deps.Metrics.SelfProtectionViolation)
		deps.EmitAudit(ctx, deps.Events.Update, false, targetID, actorID, deps.Errors.SelfProtectionViolation, nil)
		return Account{}, deps.Errors.SelfProtectionViolation
	}

	acct, err := deps.ApplyAdminChange(ctx, targetID, change)
	if err != nil {
		return Account{}, deps.storeError(err)
	}
	deps.MetricInc(deps.Metrics.AdminUpdate)

	if change.Active != nil && !*change.Active {
		n, err := deps.DeleteUserSessions(ctx, targetID)
		if err != nil {
			deps.EmitAudit(ctx, deps.Events.Update, false, targetID, actorID, deps.Errors.SessionInvalidationFailed, nil)
			return acct, errors.Join(deps.Errors.SessionInvalidationFailed, err)
		}
		for range n {
			deps.MetricInc(deps.Metrics.SessionInvalidated)
		}
	}

	deps.EmitAudit(ctx, deps.Events.Update, true, targetID, actorID, nil, adminChangeMeta(change))
	return acct, nil
}

// RunAdminDelete removes targetID and its sessions. Self-deletion is refused.
func RunAdminDelete(ctx context.Context, actorID, targetID string, deps AdminDeps) error {
	deps.Observer.normalize()
	if deps.FindByID == nil || deps.DeleteAccount == nil || deps.DeleteUserSessions == nil {
		return deps.Errors.EngineNotReady
	}
	if err := deps.authorize(ctx, actorID); err != nil {
		deps.EmitAudit(ctx, deps.Events.Delete, false, targetID, actorID, err, nil)
		return err
	}
	if _, err := deps.FindByID(ctx, targetID); err != nil {
		return deps.storeError(err)
	}
	if actorID == targetID {
		deps.MetricInc(deps.Metrics.SelfProtectionViolation)
		deps.EmitAudit(ctx, deps.Events.Delete, false, targetID, actorID, deps.Errors.SelfProtectionViolation, nil)
		return deps.Errors.SelfProtectionViolation
	}

	if err := deps.DeleteAccount(ctx, targetID); err != nil {
		return deps.storeError(err)
	}
	deps.MetricInc(deps.Metrics.AdminDelete)

	n, err := deps.DeleteUserSessions(ctx, targetID)
	if err != nil {
		deps.Warn(ctx, "session cleanup after delete failed", "user_id", targetID, "error", err)
		return errors.Join(deps.Errors.SessionInvalidationFailed, err)
	}
	for range n {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
	}
	deps.EmitAudit(ctx, deps.Events.Delete, true, targetID, actorID, nil, nil)
	return nil
}

func adminChangeMeta(change AdminChange) map[string]string {
	meta := map[string]string{}
	if change.Active != nil {
		meta["is_active"] = strconv.FormatBool(*change.Active)
	}
	if change.Admin != nil {
		meta["is_admin"] = strconv.FormatBool(*change.Admin)
	}
	return meta
}
