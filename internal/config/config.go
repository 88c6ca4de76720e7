// Package config loads selfauth-server settings: built-in defaults, then an
// optional TOML file, then SELFAUTH_* environment variables, then
// command-line flags. Later sources win.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/MrEthical07/selfauth"
)

// Config is the server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Auth     AuthConfig     `toml:"auth"`
	Mail     MailConfig     `toml:"mail"`
	Admin    AdminConfig    `toml:"admin"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr"`
	TrustProxy      bool          `toml:"trust_proxy"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig selects the credential store. Driver is "memory",
// "sqlite" or "pgx".
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	URL    string `toml:"url"`
	// SessionPurgeInterval controls how often expired SQL sessions are
	// deleted. Zero disables the sweep.
	SessionPurgeInterval time.Duration `toml:"session_purge_interval"`
}

// RedisConfig moves sessions to Redis when Addr is set.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type AuthConfig struct {
	SecretKey        string        `toml:"secret_key"`
	AccessTTL        time.Duration `toml:"access_ttl"`
	TOTPIssuer       string        `toml:"totp_issuer"`
	MagicLinkEnabled bool          `toml:"magic_link_enabled"`
	MagicLinkTTL     time.Duration `toml:"magic_link_ttl"`
	AuditEnabled     bool          `toml:"audit_enabled"`
}

// MailConfig enables HTTP mail delivery when APIKey is set; otherwise
// notifications are only logged.
type MailConfig struct {
	APIKey      string `toml:"api_key"`
	Endpoint    string `toml:"endpoint"`
	From        string `toml:"from"`
	FrontendURL string `toml:"frontend_url"`
	QueueSize   int    `toml:"queue_size"`
}

// AdminConfig bootstraps an administrator at startup when Email is set.
type AdminConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns development defaults. The secret key is left empty and
// must be supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:               "memory",
			SessionPurgeInterval: time.Hour,
		},
		Redis: RedisConfig{Prefix: "selfauth"},
		Auth: AuthConfig{
			AccessTTL:        30 * time.Minute,
			TOTPIssuer:       "selfauth",
			MagicLinkEnabled: true,
			MagicLinkTTL:     15 * time.Minute,
		},
		Mail: MailConfig{
			From:        "noreply@example.com",
			FrontendURL: "http://localhost:5173",
			QueueSize:   256,
		},
		Admin: AdminConfig{Name: "Administrator"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from args (without the program name) and
// the environment looked up through getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()

	fs, configPath, apply := flags(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	path := *configPath
	if path == "" {
		path = getenv("SELFAUTH_CONFIG")
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	// Only flags present on the command line override earlier sources.
	fs.Visit(func(f *flag.Flag) {
		if fn, ok := apply[f.Name]; ok {
			fn(&cfg)
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return nil
}

// flags declares the command-line flags. apply maps each flag name to the
// assignment it performs, so unset flags leave lower layers alone.
func flags(output io.Writer) (*flag.FlagSet, *string, map[string]func(*Config)) {
	fs := flag.NewFlagSet("selfauth-server", flag.ContinueOnError)
	fs.SetOutput(output)

	configPath := fs.String("c", "", "path to TOML config file")
	addr := fs.String("a", "", "HTTP listen address")
	driver := fs.String("driver", "", "credential store: memory, sqlite or pgx")
	dsn := fs.String("d", "", "database URL")
	redisAddr := fs.String("redis", "", "Redis address for sessions")
	secret := fs.String("s", "", "JWT signing secret")
	accessTTL := fs.Duration("access-ttl", 0, "bearer token lifetime")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")

	apply := map[string]func(*Config){
		"a":          func(c *Config) { c.Server.Addr = *addr },
		"driver":     func(c *Config) { c.Database.Driver = *driver },
		"d":          func(c *Config) { c.Database.URL = *dsn },
		"redis":      func(c *Config) { c.Redis.Addr = *redisAddr },
		"s":          func(c *Config) { c.Auth.SecretKey = *secret },
		"access-ttl": func(c *Config) { c.Auth.AccessTTL = *accessTTL },
		"log-level":  func(c *Config) { c.Log.Level = *logLevel },
	}
	return fs, configPath, apply
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("SELFAUTH_ADDR", &cfg.Server.Addr)
	str("SELFAUTH_DB_DRIVER", &cfg.Database.Driver)
	str("DATABASE_URL", &cfg.Database.URL)
	str("SELFAUTH_DATABASE_URL", &cfg.Database.URL)
	str("SELFAUTH_REDIS_ADDR", &cfg.Redis.Addr)
	str("SELFAUTH_REDIS_PASSWORD", &cfg.Redis.Password)
	str("SELFAUTH_REDIS_PREFIX", &cfg.Redis.Prefix)
	str("SECRET_KEY", &cfg.Auth.SecretKey)
	str("SELFAUTH_SECRET_KEY", &cfg.Auth.SecretKey)
	str("SELFAUTH_TOTP_ISSUER", &cfg.Auth.TOTPIssuer)
	str("RESEND_API_KEY", &cfg.Mail.APIKey)
	str("SELFAUTH_MAIL_ENDPOINT", &cfg.Mail.Endpoint)
	str("FROM_EMAIL", &cfg.Mail.From)
	str("FRONTEND_URL", &cfg.Mail.FrontendURL)
	str("ADMIN_EMAIL", &cfg.Admin.Email)
	str("ADMIN_PASSWORD", &cfg.Admin.Password)
	str("SELFAUTH_LOG_LEVEL", &cfg.Log.Level)
	str("SELFAUTH_LOG_FORMAT", &cfg.Log.Format)

	if v := getenv("SELFAUTH_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SELFAUTH_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}
	// ACCESS_TOKEN_EXPIRE_MINUTES is an integer number of minutes.
	if v := getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
		}
		cfg.Auth.AccessTTL = time.Duration(n) * time.Minute
	}
	for key, dst := range map[string]*bool{
		"SELFAUTH_TRUST_PROXY":        &cfg.Server.TrustProxy,
		"SELFAUTH_MAGIC_LINK_ENABLED": &cfg.Auth.MagicLinkEnabled,
		"SELFAUTH_AUDIT_ENABLED":      &cfg.Auth.AuditEnabled,
	} {
		v := getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// Validate reports the first problem that would stop the server starting.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr is required")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "memory":
	case "sqlite", "pgx", "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database url is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if len(c.Auth.SecretKey) < 32 {
		return errors.New("secret key must be at least 32 bytes")
	}
	if c.Auth.AccessTTL < 0 {
		return errors.New("access ttl must not be negative")
	}
	if c.Auth.MagicLinkEnabled && c.Auth.MagicLinkTTL <= 0 {
		return errors.New("magic link ttl must be positive")
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return errors.New("admin password is required when admin email is set")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// EngineConfig maps the server settings onto the engine configuration.
func (c Config) EngineConfig() selfauth.Config {
	cfg := selfauth.DefaultConfig()
	cfg.JWT.SigningKey = []byte(c.Auth.SecretKey)
	cfg.JWT.AccessTTL = c.Auth.AccessTTL
	cfg.TOTP.Issuer = c.Auth.TOTPIssuer
	cfg.MagicLink.Enabled = c.Auth.MagicLinkEnabled
	cfg.MagicLink.TokenTTL = c.Auth.MagicLinkTTL
	cfg.Audit.Enabled = c.Auth.AuditEnabled
	return cfg
}
