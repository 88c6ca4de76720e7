package selfauth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/selfauth/internal"
	"github.com/MrEthical07/selfauth/internal/audit"
	"github.com/MrEthical07/selfauth/internal/logging"
	"github.com/MrEthical07/selfauth/jwt"
	"github.com/MrEthical07/selfauth/password"
)

// Builder assembles an [Engine]. Configure it once, call Build, and drop it;
// a Builder cannot be reused.
type Builder struct {
	config Config

	credentials CredentialStore
	sessions    SessionStore
	notifier    Notifier
	logger      *slog.Logger
	auditSink   AuditSink
	clock       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig]. The signing key must
// still be supplied through WithConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore is required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithSessionStore sets where sessions live. When omitted, the credential
// store is used if it also implements SessionStore.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

// WithNotifier sets the email collaborator. Without one, notifications are
// skipped.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the logger used for best-effort failures. The default
// discards output.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination. Events are only produced when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now for every expiry decision. Tests use it to
// step through TOTP windows and token lifetimes.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}

	sessions := b.sessions
	if sessions == nil {
		s, ok := b.credentials.(SessionStore)
		if !ok {
			return nil, errors.New("session store required")
		}
		sessions = s
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	hasher, err := password.NewArgon2(cfg.Password.hasher())
	if err != nil {
		return nil, err
	}
	// Verified against on unknown emails so that path costs one hash too.
	filler, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(filler)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cfg.JWT.SigningKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           clock,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	engine := &Engine{
		config:      cfg,
		credentials: b.credentials,
		sessions:    sessions,
		notifier:    b.notifier,
		logger:      logging.NewSlogLogger(b.logger).With("component", "selfauth"),
		metrics:     NewMetrics(cfg.Metrics),
		hasher:      hasher,
		dummyHash:   dummy,
		totp:        newTOTPManager(cfg.TOTP),
		jwt:         jm,
		clock:       clock,
	}
	sink := b.auditSink
	if sink == nil {
		sink = audit.NewLoggerSink(engine.logger)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)
	engine.flows = engine.buildFlowDeps()

	b.built = true
	return engine, nil
}
