package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/selfauth"
)

func seed(t *testing.T, s *Store, id, email string) selfauth.CredentialRecord {
	t.Helper()
	rec, err := s.Create(context.Background(), selfauth.CreateCredentialInput{
		ID:           id,
		Email:        email,
		DisplayName:  "User " + id,
		PasswordHash: "hash-" + id,
		Active:       true,
		CreatedAt:    time.Unix(1_700_000_000, 0),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return rec
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	s := New()
	seed(t, s, "u1", "a@example.com")

	_, err := s.Create(context.Background(), selfauth.CreateCredentialInput{ID: "u2", Email: "a@example.com"})
	if !errors.Is(err, selfauth.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestFindMissingReturnsNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("FindByEmail: expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindByID(ctx, "nope"); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("FindByID: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Update(ctx, "nope", selfauth.CredentialUpdate{}); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("Update: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTOTPPrecondition(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "u1", "a@example.com")

	if _, err := s.Update(ctx, "u1", selfauth.CredentialUpdate{TOTP: &selfauth.TOTPState{Secret: "S1"}}); err != nil {
		t.Fatalf("set secret: %v", err)
	}

	stale := "S0"
	_, err := s.Update(ctx, "u1", selfauth.CredentialUpdate{
		TOTP:         &selfauth.TOTPState{Secret: "S0", Enabled: true},
		IfTOTPSecret: &stale,
	})
	if !errors.Is(err, selfauth.ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord, got %v", err)
	}
	rec, _ := s.FindByID(ctx, "u1")
	if rec.TOTPEnabled || rec.TOTPSecret != "S1" {
		t.Fatalf("stale update must not change the record: %+v", rec)
	}

	current := "S1"
	rec, err = s.Update(ctx, "u1", selfauth.CredentialUpdate{
		TOTP:         &selfauth.TOTPState{Secret: "S1", Enabled: true},
		IfTOTPSecret: &current,
	})
	if err != nil || !rec.TOTPEnabled {
		t.Fatalf("expected enable to apply, rec=%+v err=%v", rec, err)
	}
}

func TestConsumeResetTokenSingleUseAndPurgesSessions(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	seed(t, s, "u1", "a@example.com")

	if _, err := s.Update(ctx, "u1", selfauth.CredentialUpdate{
		ResetToken: &selfauth.InlineToken{Hash: "digest", ExpiresAt: now.Add(time.Hour)},
	}); err != nil {
		t.Fatalf("store reset token: %v", err)
	}
	if err := s.CreateSession(ctx, selfauth.Session{ID: "s1", UserID: "u1", TokenHash: "sd1", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rec, err := s.ConsumeResetToken(ctx, "digest", now, "new-hash")
	if err != nil {
		t.Fatalf("ConsumeResetToken: %v", err)
	}
	if rec.PasswordHash != "new-hash" || rec.ResetTokenHash != "" || !rec.ResetTokenExpires.IsZero() {
		t.Fatalf("unexpected record after consume: %+v", rec)
	}
	if _, err := s.FindSession(ctx, "sd1", now); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("expected sessions purged, got %v", err)
	}
	if _, err := s.ConsumeResetToken(ctx, "digest", now, "other"); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestConsumeResetTokenRejectsExpired(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	seed(t, s, "u1", "a@example.com")
	_, _ = s.Update(ctx, "u1", selfauth.CredentialUpdate{
		ResetToken: &selfauth.InlineToken{Hash: "digest", ExpiresAt: now},
	})

	if _, err := s.ConsumeResetToken(ctx, "digest", now, "new-hash"); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
	rec, _ := s.FindByID(ctx, "u1")
	if rec.PasswordHash != "hash-u1" {
		t.Fatal("expired consume must not change the password")
	}
}

func TestMagicLinkPeekThenConsume(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	seed(t, s, "u1", "a@example.com")
	_, _ = s.Update(ctx, "u1", selfauth.CredentialUpdate{
		MagicLink: &selfauth.InlineToken{Hash: "ml", ExpiresAt: now.Add(15 * time.Minute)},
	})

	if _, err := s.FindByMagicLinkToken(ctx, "ml", now); err != nil {
		t.Fatalf("peek: %v", err)
	}
	if _, err := s.FindByMagicLinkToken(ctx, "ml", now); err != nil {
		t.Fatalf("peek must not consume: %v", err)
	}
	if _, err := s.ConsumeMagicLinkToken(ctx, "ml", now); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := s.ConsumeMagicLinkToken(ctx, "ml", now); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("expected replay rejected, got %v", err)
	}
}

func TestSessionsExpireAndDeleteInBulk(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i, digest := range []string{"d1", "d2"} {
		if err := s.CreateSession(ctx, selfauth.Session{
			ID: digest, UserID: "u1", TokenHash: digest, CreatedAt: now, ExpiresAt: now.Add(time.Duration(i+1) * time.Hour),
		}); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}
	_ = s.CreateSession(ctx, selfauth.Session{ID: "x", UserID: "u2", TokenHash: "d3", ExpiresAt: now.Add(time.Hour)})

	if _, err := s.FindSession(ctx, "d1", now.Add(time.Hour)); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("expected expired session hidden, got %v", err)
	}

	n, err := s.DeleteUserSessions(ctx, "u1")
	if err != nil || n != 2 {
		t.Fatalf("DeleteUserSessions: n=%d err=%v", n, err)
	}
	if _, err := s.FindSession(ctx, "d3", now); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}
	if n, _ := s.DeleteUserSessions(ctx, "u1"); n != 0 {
		t.Fatalf("expected idempotent delete, got %d", n)
	}
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.FindByEmail(ctx, "a@example.com"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConcurrentConsumeHasOneWinner(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	seed(t, s, "u1", "a@example.com")
	if _, err := s.Update(ctx, "u1", selfauth.CredentialUpdate{
		ResetToken: &selfauth.InlineToken{Hash: "reset", ExpiresAt: now.Add(time.Hour)},
		MagicLink:  &selfauth.InlineToken{Hash: "ml", ExpiresAt: now.Add(time.Hour)},
	}); err != nil {
		t.Fatalf("store tokens: %v", err)
	}

	consumers := map[string]func() error{
		"reset": func() error {
			_, err := s.ConsumeResetToken(ctx, "reset", now, "new-hash")
			return err
		},
		"magic": func() error {
			_, err := s.ConsumeMagicLinkToken(ctx, "ml", now)
			return err
		},
	}
	for name, consume := range consumers {
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			wins  int
			start = make(chan struct{})
		)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := consume()
				if err != nil && !errors.Is(err, selfauth.ErrNotFound) {
					t.Errorf("%s: unexpected error %v", name, err)
				}
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		close(start)
		wg.Wait()
		if wins != 1 {
			t.Fatalf("%s: expected one winner, got %d", name, wins)
		}
	}
}
