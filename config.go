package selfauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/selfauth/password"
)

const (
	// ResetTokenTTL is the lifetime of a password reset token.
	ResetTokenTTL = time.Hour
	// SessionTTL is the lifetime of an opaque session token.
	SessionTTL = 7 * 24 * time.Hour
)

// Config is the engine configuration. It is validated once by
// [Builder.Build] and never changes afterwards.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	TOTP      TOTPConfig
	MagicLink MagicLinkConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures bearer tokens.
type JWTConfig struct {
	// AccessTTL is the bearer lifetime, usually configured in minutes.
	AccessTTL time.Duration
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string
	// SigningKey is the HS256 secret or the Ed25519 private key.
	SigningKey []byte
	// PublicKey optionally pins the Ed25519 public key.
	PublicKey []byte
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds hashing cost and the length policy applied on
// register, change and reset.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
	MaxLength int
	// UpgradeOnLogin rehashes legacy or weaker digests after a successful
	// password login.
	UpgradeOnLogin bool
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig configures the second factor. Codes are 6 digits, 30 second
// steps, SHA1, with one step of skew either side.
type TOTPConfig struct {
	Issuer string
}

/*
====================================
MAGIC LINK CONFIG
====================================
*/

// MagicLinkConfig configures passwordless email sign-in.
type MagicLinkConfig struct {
	Enabled  bool
	TokenTTL time.Duration
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a configuration with everything but the signing key
// filled in.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "selfauth",
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			MinLength:      8,
			MaxLength:      256,
			UpgradeOnLogin: true,
		},
		TOTP: TOTPConfig{
			Issuer: "selfauth",
		},
		MagicLink: MagicLinkConfig{
			Enabled:  true,
			TokenTTL: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = append([]byte(nil), cfg.JWT.SigningKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	return out
}

func (c PasswordConfig) hasher() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "", "hs256":
		if len(c.JWT.SigningKey) < 32 {
			return errors.New("JWT SigningKey must be at least 32 bytes for hs256")
		}
	case "ed25519":
		if len(c.JWT.SigningKey) == 0 {
			return errors.New("ed25519 requires SigningKey")
		}
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if c.JWT.AccessTTL < 0 {
		return errors.New("JWT AccessTTL must be >= 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	if strings.TrimSpace(c.TOTP.Issuer) == "" || strings.Contains(c.TOTP.Issuer, ":") {
		return errors.New("TOTP Issuer must be non-empty and must not contain ':'")
	}

	if c.MagicLink.Enabled && c.MagicLink.TokenTTL <= 0 {
		return errors.New("MagicLink TokenTTL must be > 0 when enabled")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
