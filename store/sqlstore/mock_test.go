package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/selfauth"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return New(db, Postgres), mock, db
}

var credentialColumnNames = []string{
	"id", "email", "display_name", "password_hash", "active", "admin",
	"totp_secret", "totp_enabled", "reset_token_hash", "reset_token_expires",
	"magic_link_hash", "magic_link_expires", "created_at", "updated_at",
}

func TestRebindPostgres(t *testing.T) {
	got := Postgres.rebind(`SELECT 1 FROM t WHERE a = ? AND b = ?`)
	if got != `SELECT 1 FROM t WHERE a = $1 AND b = $2` {
		t.Fatalf("unexpected rebind: %s", got)
	}
	if SQLite.rebind(`a = ?`) != `a = ?` {
		t.Fatal("sqlite queries must stay unchanged")
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"pgx": Postgres, "postgres": Postgres, "SQLite3": SQLite} {
		got, err := parseDialect(in)
		if err != nil || got != want {
			t.Fatalf("parseDialect(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := parseDialect("mysql"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestFindByEmail_Found(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	created := baseTime.UnixMilli()
	rows := sqlmock.NewRows(credentialColumnNames).
		AddRow("u-1", "alice@example.com", "Alice", "hash", true, false, "", false, nil, int64(0), nil, int64(0), created, created)
	mock.ExpectQuery(`(?s)^SELECT .+ FROM credentials WHERE email = \$1$`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	rec, err := s.FindByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if rec.ID != "u-1" || !rec.Active || rec.ResetTokenHash != "" || !rec.CreatedAt.Equal(baseTime) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.ResetTokenExpires.IsZero() {
		t.Fatalf("zero millis must map to zero time, got %v", rec.ResetTokenExpires)
	}
}

func TestFindByEmail_NotFound(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT .+ FROM credentials WHERE email = \$1$`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFindByID_DBError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT .+ FROM credentials WHERE id = \$1$`).
		WithArgs("u-1").
		WillReturnError(errors.New("db down"))

	_, err := s.FindByID(context.Background(), "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreate_ConflictIsDuplicate(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT INTO credentials .+\s+ON CONFLICT \(email\) DO NOTHING\s+RETURNING .+$`).
		WillReturnRows(sqlmock.NewRows(credentialColumnNames))

	_, err := s.Create(context.Background(), selfauth.CreateCredentialInput{
		ID: "u-2", Email: "alice@example.com", DisplayName: "A", PasswordHash: "h", CreatedAt: baseTime,
	})
	if !errors.Is(err, selfauth.ErrDuplicateIdentity) {
		t.Fatalf("want ErrDuplicateIdentity, got %v", err)
	}
}

func TestDelete_MissingRollsBack(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE FROM credentials WHERE id = \$1$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := s.Delete(context.Background(), "u-1"); !errors.Is(err, selfauth.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConsumeResetToken_SessionPurgeFailureRollsBack(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	created := baseTime.UnixMilli()
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)^UPDATE credentials\s+SET password_hash = \$1, .+\s+WHERE reset_token_hash = \$3 AND reset_token_expires > \$4\s+RETURNING .+$`).
		WithArgs("new-hash", created, "digest", created).
		WillReturnRows(sqlmock.NewRows(credentialColumnNames).
			AddRow("u-1", "a@example.com", "A", "new-hash", true, false, "", false, nil, int64(0), nil, int64(0), created, created))
	mock.ExpectExec(`^DELETE FROM sessions WHERE user_id = \$1$`).
		WithArgs("u-1").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.ConsumeResetToken(context.Background(), "digest", baseTime, "new-hash")
	if err == nil || !regexp.MustCompile(`db error: .*disk full`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteUserSessions_Count(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM sessions WHERE user_id = \$1$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteUserSessions(context.Background(), "u-1")
	if err != nil || n != 3 {
		t.Fatalf("DeleteUserSessions = %d, %v", n, err)
	}
}

func TestMigrate_Error(t *testing.T) {
	s, _, db := newStoreWithMock(t)
	defer db.Close()

	orig := gooseUp
	defer func() { gooseUp = orig }()
	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }

	if err := s.Migrate(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected migration error, got %v", err)
	}
}

func TestMillisZeroTime(t *testing.T) {
	if millis(time.Time{}) != 0 {
		t.Fatal("zero time must store as 0")
	}
	if !fromMillis(0).IsZero() {
		t.Fatal("0 must load as zero time")
	}
}
