package selfauth

import "errors"

var (
	// ErrDuplicateIdentity is returned by Register when the email is taken.
	ErrDuplicateIdentity = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password, and
	// any bearer token that fails validation.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when credentials are right but the
	// account has been deactivated.
	ErrAccountInactive = errors.New("account inactive")
	// ErrSecondFactorRequired means the account has 2FA enabled and the
	// request carried no code. Clients should prompt for one.
	ErrSecondFactorRequired = errors.New("two-factor code required")
	// ErrInvalidSecondFactor means a code was supplied at login and rejected.
	ErrInvalidSecondFactor = errors.New("invalid two-factor code")

	ErrTOTPAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrTOTPNotSetUp       = errors.New("two-factor authentication not set up")
	ErrTOTPInvalidCode    = errors.New("invalid verification code")

	// ErrInvalidOrExpiredToken is returned for unknown, expired or already
	// consumed reset and magic-link tokens.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrSelfProtectionViolation is returned when an admin tries to remove
	// their own admin flag or delete their own account.
	ErrSelfProtectionViolation = errors.New("admin self-protection violation")
	// ErrNotFound is returned by stores and admin operations for a missing
	// identity.
	ErrNotFound = errors.New("user not found")

	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrMagicLinkDisabled is returned by magic-link operations when the
	// feature is switched off in config.
	ErrMagicLinkDisabled = errors.New("magic link sign-in disabled")

	ErrForbidden      = errors.New("admin privileges required")
	ErrInvalidInput   = errors.New("invalid input")
	ErrPasswordPolicy = errors.New("password policy violation")

	// ErrStaleRecord is returned by CredentialStore.Update when a
	// precondition no longer holds.
	ErrStaleRecord = errors.New("credential record changed concurrently")

	ErrUnavailable               = errors.New("authentication backend unavailable")
	ErrSessionCreationFailed     = errors.New("session creation failed")
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	ErrEngineNotReady            = errors.New("engine not initialized")
)

// Kind classifies an engine error for callers that map errors to transport
// responses.
type Kind string

const (
	KindUnknown                 Kind = ""
	KindDuplicateIdentity       Kind = "DuplicateIdentity"
	KindInvalidCredentials      Kind = "InvalidCredentials"
	KindAccountInactive         Kind = "AccountInactive"
	KindSecondFactorRequired    Kind = "SecondFactorRequired"
	KindInvalidSecondFactor     Kind = "InvalidSecondFactor"
	KindAlreadyEnabled          Kind = "AlreadyEnabled"
	KindNotSetUp                Kind = "NotSetUp"
	KindInvalidCode             Kind = "InvalidCode"
	KindInvalidOrExpiredToken   Kind = "InvalidOrExpiredToken"
	KindSelfProtectionViolation Kind = "SelfProtectionViolation"
	KindNotFound                Kind = "NotFound"
	KindInvalidSession          Kind = "InvalidSession"
	KindForbidden               Kind = "Forbidden"
	KindInvalidInput            Kind = "InvalidInput"
	KindUnavailable             Kind = "Unavailable"
)

type kindEntry struct {
	err     error
	kind    Kind
	message string
}

// Order matters: the first match wins, so wrapped combinations such as
// errors.Join(ErrSessionInvalidationFailed, storeErr) resolve to the
// sentinel listed first.
var kindTable = []kindEntry{
	{ErrDuplicateIdentity, KindDuplicateIdentity, "Email already registered"},
	{ErrInvalidCredentials, KindInvalidCredentials, "Incorrect email or password"},
	{ErrAccountInactive, KindAccountInactive, "Inactive user"},
	{ErrSecondFactorRequired, KindSecondFactorRequired, "Two-factor authentication code required"},
	{ErrInvalidSecondFactor, KindInvalidSecondFactor, "Invalid two-factor authentication code"},
	{ErrTOTPAlreadyEnabled, KindAlreadyEnabled, "Two-factor authentication is already enabled"},
	{ErrTOTPNotSetUp, KindNotSetUp, "Two-factor authentication not set up"},
	{ErrTOTPInvalidCode, KindInvalidCode, "Invalid verification code"},
	{ErrInvalidOrExpiredToken, KindInvalidOrExpiredToken, "Invalid or expired token"},
	{ErrSelfProtectionViolation, KindSelfProtectionViolation, "Cannot remove own admin privileges or delete own account"},
	{ErrNotFound, KindNotFound, "User not found"},
	{ErrInvalidSession, KindInvalidSession, "Invalid or expired session"},
	{ErrForbidden, KindForbidden, "Not enough permissions"},
	{ErrMagicLinkDisabled, KindForbidden, "Magic link sign-in is disabled"},
	{ErrPasswordPolicy, KindInvalidInput, "Password does not meet requirements"},
	{ErrInvalidInput, KindInvalidInput, "Invalid input"},
	{ErrSessionInvalidationFailed, KindUnavailable, "Service temporarily unavailable"},
	{ErrSessionCreationFailed, KindUnavailable, "Service temporarily unavailable"},
	{ErrUnavailable, KindUnavailable, "Service temporarily unavailable"},
	{ErrEngineNotReady, KindUnavailable, "Service temporarily unavailable"},
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, e := range kindTable {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindUnknown
}

// PublicMessage returns the stable message safe to show to end users. It
// never includes store or library detail.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, e := range kindTable {
		if errors.Is(err, e.err) {
			return e.message
		}
	}
	return "Internal server error"
}
