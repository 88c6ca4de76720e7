package selfauth

import (
	"context"
	"time"
)

// CredentialRecord is the stored view of one identity as the engine sees it.
// Token fields hold digests, never raw tokens.
type CredentialRecord struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Active       bool
	Admin        bool

	// TOTPSecret may be set while TOTPEnabled is false: enrollment started
	// but not confirmed. Only TOTPEnabled gates login.
	TOTPSecret  string
	TOTPEnabled bool

	ResetTokenHash    string
	ResetTokenExpires time.Time

	MagicLinkTokenHash string
	MagicLinkExpires   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is the public projection of a CredentialRecord. It is what
// callers hold after authentication and pass back into engine operations.
type Identity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"name"`
	Active      bool      `json:"is_active"`
	Admin       bool      `json:"is_admin"`
	TOTPEnabled bool      `json:"two_factor_enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdentityOf projects rec onto its public fields.
func IdentityOf(rec CredentialRecord) Identity {
	return Identity{
		ID:          rec.ID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		Active:      rec.Active,
		Admin:       rec.Admin,
		TOTPEnabled: rec.TOTPEnabled,
		CreatedAt:   rec.CreatedAt,
	}
}

// CreateCredentialInput is everything a store needs to insert a new record.
type CreateCredentialInput struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Active       bool
	Admin        bool
	CreatedAt    time.Time
}

// TOTPState replaces both TOTP fields at once.
type TOTPState struct {
	Secret  string
	Enabled bool
}

// InlineToken replaces a token digest and its expiry. The zero value clears
// both.
type InlineToken struct {
	Hash      string
	ExpiresAt time.Time
}

// CredentialUpdate is a partial update. Nil fields are left untouched.
type CredentialUpdate struct {
	DisplayName  *string
	PasswordHash *string
	Active       *bool
	Admin        *bool
	TOTP         *TOTPState
	ResetToken   *InlineToken
	MagicLink    *InlineToken

	// IfTOTPSecret makes the update conditional: it applies only while the
	// stored secret still equals this value, otherwise the store returns
	// ErrStaleRecord and changes nothing.
	IfTOTPSecret *string

	UpdatedAt time.Time
}

// CredentialStore persists credential records. Implementations must make
// each method a single atomic operation and must compare emails as given
// (the engine always passes them lower-cased).
//
// Missing records are reported as ErrNotFound; a taken email on Create as
// ErrDuplicateIdentity.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (CredentialRecord, error)
	FindByID(ctx context.Context, id string) (CredentialRecord, error)
	// FindByMagicLinkToken looks up an unexpired magic-link digest without
	// consuming it.
	FindByMagicLinkToken(ctx context.Context, tokenHash string, now time.Time) (CredentialRecord, error)
	Create(ctx context.Context, input CreateCredentialInput) (CredentialRecord, error)
	Update(ctx context.Context, id string, update CredentialUpdate) (CredentialRecord, error)
	// Delete removes the record. Stores that also hold sessions delete them
	// in the same operation.
	Delete(ctx context.Context, id string) error

	// ConsumeResetToken matches tokenHash and an expiry after now in one
	// step, sets newPasswordHash and clears the token. Stores that also hold
	// sessions delete the owner's sessions in the same transaction. A second
	// call with the same digest returns ErrNotFound.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (CredentialRecord, error)
	// ConsumeMagicLinkToken matches and clears a magic-link digest in one step.
	ConsumeMagicLinkToken(ctx context.Context, tokenHash string, now time.Time) (CredentialRecord, error)
}

// Session is one issued session handle. TokenHash is the digest of the
// opaque token returned to the client.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientIP  string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// SessionStore persists sessions. Sessions are created one at a time and
// removed only in bulk per user.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	// FindSession returns ErrNotFound for unknown or expired digests.
	FindSession(ctx context.Context, tokenHash string, now time.Time) (Session, error)
	DeleteUserSessions(ctx context.Context, userID string) (int, error)
}

// Notifier delivers account emails. The engine treats every call as best
// effort: a returned error is logged and never fails the operation.
type Notifier interface {
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordReset(ctx context.Context, email, token, name string) error
	SendMagicLink(ctx context.Context, email, token, name string) error
}

// RegisterRequest carries self-service registration input.
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// LoginRequest carries password login input. ClientIP and UserAgent fall
// back to the values attached with WithClientIP and WithUserAgent.
type LoginRequest struct {
	Email     string
	Password  string
	TOTPCode  string
	ClientIP  string
	UserAgent string
}

// MagicLinkLoginRequest carries a magic-link sign-in.
type MagicLinkLoginRequest struct {
	Token     string
	TOTPCode  string
	ClientIP  string
	UserAgent string
}

// LoginResult is returned by successful logins. SessionToken is the raw
// opaque handle; it is not recoverable from storage.
type LoginResult struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	SessionToken     string    `json:"session_token"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
	User             Identity  `json:"user"`
}

// TOTPSetup is returned when enrollment starts. The secret is shown to the
// user once for manual entry.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// ProfileUpdate changes self-service profile fields.
type ProfileUpdate struct {
	DisplayName *string
}

// AdminUpdate changes account flags. Nil fields are left untouched.
type AdminUpdate struct {
	Active *bool
	Admin  *bool
}
