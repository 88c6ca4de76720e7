package session_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/selfauth"
	"github.com/MrEthical07/selfauth/session"
	"github.com/MrEthical07/selfauth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisBackends returns miniredis plus a real server when REDIS_ADDR is set.
func redisBackends(t *testing.T) map[string]func(t *testing.T) redis.UniversalClient {
	t.Helper()
	backends := map[string]func(t *testing.T) redis.UniversalClient{
		"miniredis": func(t *testing.T) redis.UniversalClient {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return rdb
		},
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		backends["standalone"] = func(t *testing.T) redis.UniversalClient {
			rdb := redis.NewClient(&redis.Options{Addr: addr})
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				t.Skipf("cannot connect to Redis at %s: %v", addr, err)
			}
			rdb.FlushDB(context.Background())
			t.Cleanup(func() {
				rdb.FlushDB(context.Background())
				_ = rdb.Close()
			})
			return rdb
		}
	}
	return backends
}

func newRedisEngine(t *testing.T, rdb redis.UniversalClient) *selfauth.Engine {
	t.Helper()
	cfg := selfauth.DefaultConfig()
	cfg.JWT.SigningKey = []byte(strings.Repeat("r", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := selfauth.New().
		WithConfig(cfg).
		WithCredentialStore(memory.New()).
		WithSessionStore(session.NewStore(rdb, "it")).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestEngineSessionsInRedis(t *testing.T) {
	for name, setup := range redisBackends(t) {
		t.Run(name, func(t *testing.T) {
			rdb := setup(t)
			engine := newRedisEngine(t, rdb)
			ctx := context.Background()

			id, err := engine.Register(ctx, selfauth.RegisterRequest{
				Email:       "carol@example.com",
				Password:    "carol-password",
				DisplayName: "Carol",
			})
			if err != nil {
				t.Fatalf("register: %v", err)
			}

			first, err := engine.Login(ctx, selfauth.LoginRequest{Email: "carol@example.com", Password: "carol-password"})
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			second, err := engine.Login(ctx, selfauth.LoginRequest{Email: "carol@example.com", Password: "carol-password"})
			if err != nil {
				t.Fatalf("second login: %v", err)
			}

			// An oversized user agent is trimmed before it reaches the encoder.
			long, err := engine.Login(ctx, selfauth.LoginRequest{
				Email:     "carol@example.com",
				Password:  "carol-password",
				UserAgent: strings.Repeat("x", 70_000),
			})
			if err != nil {
				t.Fatalf("login with long user agent: %v", err)
			}
			if sess, err := engine.ResolveSession(ctx, long.SessionToken); err != nil || len(sess.UserAgent) != selfauth.MaxClientMetaBytes {
				t.Fatalf("long user agent session: len=%d err=%v", len(sess.UserAgent), err)
			}

			sess, err := engine.ResolveSession(ctx, first.SessionToken)
			if err != nil {
				t.Fatalf("resolve session: %v", err)
			}
			if sess.UserID != id.ID {
				t.Fatalf("session user = %q, want %q", sess.UserID, id.ID)
			}

			// The raw token must never reach Redis.
			keys, err := rdb.Keys(ctx, "it:*").Result()
			if err != nil {
				t.Fatalf("keys: %v", err)
			}
			for _, k := range keys {
				if strings.Contains(k, first.SessionToken) || strings.Contains(k, second.SessionToken) {
					t.Fatalf("raw session token stored in key %q", k)
				}
			}

			if err := engine.ChangePassword(ctx, id, "carol-password", "carol-password-2"); err != nil {
				t.Fatalf("change password: %v", err)
			}
			for _, tok := range []string{first.SessionToken, second.SessionToken, long.SessionToken} {
				if _, err := engine.ResolveSession(ctx, tok); !errors.Is(err, selfauth.ErrInvalidSession) {
					t.Fatalf("session after password change: got %v, want ErrInvalidSession", err)
				}
			}
		})
	}
}
