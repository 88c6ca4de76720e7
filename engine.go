package selfauth

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/selfauth/internal"
	"github.com/MrEthical07/selfauth/internal/audit"
	internalflows "github.com/MrEthical07/selfauth/internal/flows"
	"github.com/MrEthical07/selfauth/internal/logging"
	"github.com/MrEthical07/selfauth/jwt"
	"github.com/MrEthical07/selfauth/password"
	"github.com/google/uuid"
)

// TokenTypeBearer is the token_type reported in every LoginResult.
const TokenTypeBearer = "bearer"

// Engine orchestrates registration, login, second factor, recovery and
// admin operations over the configured stores. It is safe for concurrent
// use; the only shared mutable state is metrics and the audit queue.
type Engine struct {
	config      Config
	credentials CredentialStore
	sessions    SessionStore
	notifier    Notifier
	logger      logging.Logger
	audit       *audit.Dispatcher
	metrics     *Metrics
	hasher      *password.Argon2
	dummyHash   string
	totp        *totpManager
	jwt         *jwt.Manager
	clock       func() time.Time
	flows       internalflows.Deps
}

// Close flushes the audit queue. The stores are owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports audit events discarded because the queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate validates a bearer token and returns the current identity of
// its subject. Every call reloads the record, so deactivation takes effect
// on the next request even though the bearer itself stays valid.
func (e *Engine) Authenticate(ctx context.Context, bearer string) (Identity, error) {
	if e == nil || e.jwt == nil || e.credentials == nil {
		return Identity{}, ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()

	claims, err := e.jwt.Parse(bearer)
	if err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	rec, err := e.credentials.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, errors.Join(ErrUnavailable, err)
	}
	if !rec.Active {
		return Identity{}, ErrAccountInactive
	}
	return IdentityOf(rec), nil
}

// ResolveSession looks up an opaque session token.
func (e *Engine) ResolveSession(ctx context.Context, token string) (Session, error) {
	if e == nil || e.sessions == nil {
		return Session{}, ErrEngineNotReady
	}
	if !internal.ValidOpaqueToken(token) {
		return Session{}, ErrInvalidSession
	}
	s, err := e.sessions.FindSession(ctx, internal.HashToken(token), e.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidSession
		}
		return Session{}, errors.Join(ErrUnavailable, err)
	}
	return s, nil
}

// Logout deletes every session of the identity. Bearer tokens already
// issued remain valid until they expire.
func (e *Engine) Logout(ctx context.Context, id Identity) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if id.ID == "" {
		return ErrInvalidCredentials
	}
	return internalflows.RunLogout(ctx, id.ID, e.flows.Logout)
}

func (e *Engine) buildFlowDeps() internalflows.Deps {
	return internalflows.Deps{
		Account:       e.accountFlowDeps(),
		Login:         e.loginFlowDeps(),
		Logout:        e.logoutFlowDeps(),
		TOTP:          e.totpFlowDeps(),
		PasswordReset: e.passwordResetFlowDeps(),
		MagicLink:     e.magicLinkFlowDeps(),
		Admin:         e.adminFlowDeps(),
	}
}

func (e *Engine) observer() internalflows.Observer {
	return internalflows.Observer{
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Warn:      e.logger.Warn,
	}
}

func (e *Engine) logoutFlowDeps() internalflows.LogoutDeps {
	return internalflows.LogoutDeps{
		DeleteUserSessions: e.sessions.DeleteUserSessions,
		Observer:           e.observer(),
		Metrics: internalflows.LogoutMetrics{
			Logout:             int(MetricLogout),
			SessionInvalidated: int(MetricSessionInvalidated),
		},
		Events: internalflows.LogoutEvents{Logout: auditEventLogout},
		Errors: internalflows.LogoutErrors{
			EngineNotReady:            ErrEngineNotReady,
			SessionInvalidationFailed: ErrSessionInvalidationFailed,
		},
	}
}

// sessionIssuer is shared by password and magic-link login.
func (e *Engine) sessionIssuer() internalflows.SessionIssuer {
	return internalflows.SessionIssuer{
		SessionTTL:     SessionTTL,
		Now:            e.now,
		NewID:          newID,
		MintAccess:     e.jwt.Mint,
		NewOpaqueToken: internal.NewOpaqueToken,
		HashToken:      internal.HashToken,
		CreateSession: func(ctx context.Context, s internalflows.SessionRecord) error {
			return e.sessions.CreateSession(ctx, Session(s))
		},
		SessionCreated: int(MetricSessionCreated),
	}
}

/*
====================================
STORE ADAPTERS
====================================
*/

func accountOf(rec CredentialRecord) internalflows.Account {
	return internalflows.Account{
		ID:           rec.ID,
		Email:        rec.Email,
		DisplayName:  rec.DisplayName,
		PasswordHash: rec.PasswordHash,
		Active:       rec.Active,
		Admin:        rec.Admin,
		TOTPSecret:   rec.TOTPSecret,
		TOTPEnabled:  rec.TOTPEnabled,
		CreatedAt:    rec.CreatedAt,
	}
}

func identityOfAccount(a internalflows.Account) Identity {
	return Identity{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Active:      a.Active,
		Admin:       a.Admin,
		TOTPEnabled: a.TOTPEnabled,
		CreatedAt:   a.CreatedAt,
	}
}

func (e *Engine) findByEmail(ctx context.Context, email string) (internalflows.Account, error) {
	rec, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		return internalflows.Account{}, err
	}
	return accountOf(rec), nil
}

func (e *Engine) findByID(ctx context.Context, id string) (internalflows.Account, error) {
	rec, err := e.credentials.FindByID(ctx, id)
	if err != nil {
		return internalflows.Account{}, err
	}
	return accountOf(rec), nil
}

func (e *Engine) update(ctx context.Context, id string, u CredentialUpdate) (internalflows.Account, error) {
	u.UpdatedAt = e.now()
	rec, err := e.credentials.Update(ctx, id, u)
	if err != nil {
		return internalflows.Account{}, err
	}
	return accountOf(rec), nil
}

func (e *Engine) updatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := e.update(ctx, id, CredentialUpdate{PasswordHash: &hash})
	return err
}

func (e *Engine) verifyTOTP(secret, code string, now time.Time) (bool, error) {
	return e.totp.VerifyCode(secret, code, now)
}

func isNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func isDuplicate(err error) bool { return errors.Is(err, ErrDuplicateIdentity) }
func isStale(err error) bool     { return errors.Is(err, ErrStaleRecord) }

func newID() string {
	return uuid.NewString()
}

// MaxClientMetaBytes caps the client IP and user agent recorded on a
// session, so every session store accepts the same input.
const MaxClientMetaBytes = 512

// requestMeta prefers explicit request values over context values.
func requestMeta(ctx context.Context, ip, ua string) (string, string) {
	if ip == "" {
		ip = ClientIPFromContext(ctx)
	}
	if ua == "" {
		ua = UserAgentFromContext(ctx)
	}
	return truncateMeta(ip), truncateMeta(ua)
}

// truncateMeta cuts s to MaxClientMetaBytes on a rune boundary.
func truncateMeta(s string) string {
	if len(s) <= MaxClientMetaBytes {
		return s
	}
	cut := MaxClientMetaBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
