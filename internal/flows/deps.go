package flows

import (
	"context"
	"time"
)

// Account is the flow-level view of a credential record. The engine maps
// its public record type onto this so flows stay free of root imports.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Active       bool
	Admin        bool
	TOTPSecret   string
	TOTPEnabled  bool
	CreatedAt    time.Time
}

// SessionRecord is what flows hand to the session store.
type SessionRecord struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	ClientIP  string
	UserAgent string
}

// Observer carries the side channels every flow reports through. All
// fields are optional.
type Observer struct {
	MetricInc func(id int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, actorID string, err error, meta map[string]string)
	// Warn logs a best-effort failure. Callers never pass secrets.
	Warn func(ctx context.Context, msg string, args ...any)
}

func (o *Observer) normalize() {
	if o.MetricInc == nil {
		o.MetricInc = func(int) {}
	}
	if o.EmitAudit == nil {
		o.EmitAudit = func(context.Context, string, bool, string, string, error, map[string]string) {}
	}
	if o.Warn == nil {
		o.Warn = func(context.Context, string, ...any) {}
	}
}

// Deps groups every flow dependency set. The engine builds it once at
// construction.
type Deps struct {
	Account       AccountDeps
	Login         LoginDeps
	Logout        LogoutDeps
	TOTP          TOTPDeps
	PasswordReset PasswordResetDeps
	MagicLink     MagicLinkDeps
	Admin         AdminDeps
}
