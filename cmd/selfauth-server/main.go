// Command selfauth-server serves the selfauth HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/selfauth"
	"github.com/MrEthical07/selfauth/internal/config"
	"github.com/MrEthical07/selfauth/internal/httpapi"
	"github.com/MrEthical07/selfauth/metrics/export/prometheus"
	"github.com/MrEthical07/selfauth/notify"
	"github.com/MrEthical07/selfauth/session"
	"github.com/MrEthical07/selfauth/store/memory"
	"github.com/MrEthical07/selfauth/store/sqlstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "selfauth-server:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args, os.Getenv)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, ping, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := selfauth.New().
		WithConfig(cfg.EngineConfig()).
		WithCredentialStore(creds).
		WithLogger(logger)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		builder = builder.WithSessionStore(session.NewStore(client, cfg.Redis.Prefix))
		logger.Info("sessions stored in redis", "addr", cfg.Redis.Addr)
	}

	notifier, err := newNotifier(cfg.Mail, cfg.Auth.MagicLinkTTL, logger)
	if err != nil {
		return err
	}
	defer notifier.Close()
	builder = builder.WithNotifier(notifier)

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if cfg.Admin.Email != "" {
		admin, err := engine.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		logger.Info("admin account ready", "user_id", admin.ID)
	}

	if purger, ok := creds.(*sqlstore.Store); ok && cfg.Redis.Addr == "" && cfg.Database.SessionPurgeInterval > 0 {
		go purgeSessions(ctx, purger, cfg.Database.SessionPurgeInterval, logger)
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewHandler(engine, httpapi.Config{
			Logger:     logger,
			TrustProxy: cfg.Server.TrustProxy,
			Metrics:    prometheus.NewExporter(engine).Handler(),
			Ready:      ping,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "store", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (selfauth.CredentialStore, func(context.Context) error, func(), error) {
	if strings.EqualFold(cfg.Driver, "memory") {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil, func() {}, nil
	}
	st, err := sqlstore.Open(ctx, cfg.Driver, cfg.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := st.Close(); err != nil {
			logger.Error("close store", "error", err)
		}
	}
	return st, st.Ping, closeFn, nil
}

func newNotifier(cfg config.MailConfig, magicLinkTTL time.Duration, logger *slog.Logger) (*notify.Async, error) {
	var next selfauth.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.APIKey != "" {
		mailer, err := notify.NewHTTPMailer(notify.MailerConfig{
			Endpoint:     cfg.Endpoint,
			APIKey:       cfg.APIKey,
			From:         cfg.From,
			FrontendURL:  cfg.FrontendURL,
			MagicLinkTTL: magicLinkTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("mailer: %w", err)
		}
		next = mailer
	} else {
		logger.Warn("mail api key not set; notifications are logged only")
	}
	return notify.NewAsync(next, cfg.QueueSize, 10*time.Second, logger), nil
}

func purgeSessions(ctx context.Context, st *sqlstore.Store, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := st.PurgeExpiredSessions(ctx, now)
			if err != nil {
				logger.Error("purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
