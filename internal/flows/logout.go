package flows

import (
	"context"
	"errors"
)

type LogoutMetrics struct {
	Logout             int
	SessionInvalidated int
}

type LogoutEvents struct {
	Logout string
}

type LogoutErrors struct {
	EngineNotReady            error
	SessionInvalidationFailed error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	DeleteUserSessions func(ctx context.Context, userID string) (int, error)

	Observer
	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

// RunLogout deletes every session of userID. Bearer tokens already issued
// stay valid until they expire.
func RunLogout(ctx context.Context, userID string, deps LogoutDeps) error {
	deps.Observer.normalize()
	if deps.DeleteUserSessions == nil {
		return deps.Errors.EngineNotReady
	}

	n, err := deps.DeleteUserSessions(ctx, userID)
	if err != nil {
		wrapped := errors.Join(deps.Errors.SessionInvalidationFailed, err)
		deps.EmitAudit(ctx, deps.Events.Logout, false, userID, "", deps.Errors.SessionInvalidationFailed, nil)
		return wrapped
	}

	deps.MetricInc(deps.Metrics.Logout)
	for range n {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
	}
	deps.EmitAudit(ctx, deps.Events.Logout, true, userID, "", nil, nil)
	return nil
}
