package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/MrEthical07/selfauth"
)

const credentialColumns = `id, email, display_name, password_hash, active, admin,
	totp_secret, totp_enabled, reset_token_hash, reset_token_expires,
	magic_link_hash, magic_link_expires, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (selfauth.CredentialRecord, error) {
	var (
		rec                  selfauth.CredentialRecord
		resetHash, magicHash sql.NullString
		resetExp, magicExp   int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&rec.ID, &rec.Email, &rec.DisplayName, &rec.PasswordHash, &rec.Active, &rec.Admin,
		&rec.TOTPSecret, &rec.TOTPEnabled, &resetHash, &resetExp,
		&magicHash, &magicExp, &createdAt, &updatedAt)
	if err != nil {
		return selfauth.CredentialRecord{}, err
	}
	rec.ResetTokenHash = resetHash.String
	rec.ResetTokenExpires = fromMillis(resetExp)
	rec.MagicLinkTokenHash = magicHash.String
	rec.MagicLinkExpires = fromMillis(magicExp)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func (s *Store) findOne(ctx context.Context, db DBTX, where string, args ...any) (selfauth.CredentialRecord, error) {
	row := db.QueryRowContext(ctx, s.q(`SELECT `+credentialColumns+` FROM credentials WHERE `+where), args...)
	rec, err := scanCredential(row)
	if err != nil {
		if isNoRows(err) {
			return selfauth.CredentialRecord{}, selfauth.ErrNotFound
		}
		return selfauth.CredentialRecord{}, dbError(err)
	}
	return rec, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (selfauth.CredentialRecord, error) {
	return s.findOne(ctx, s.db, `email = ?`, email)
}

func (s *Store) FindByID(ctx context.Context, id string) (selfauth.CredentialRecord, error) {
	return s.findOne(ctx, s.db, `id = ?`, id)
}

func (s *Store) FindByMagicLinkToken(ctx context.Context, tokenHash string, now time.Time) (selfauth.CredentialRecord, error) {
	if tokenHash == "" {
		return selfauth.CredentialRecord{}, selfauth.ErrNotFound
	}
	return s.findOne(ctx, s.db, `magic_link_hash = ? AND magic_link_expires > ?`, tokenHash, millis(now))
}

// Create inserts a record. A taken email is reported as
// selfauth.ErrDuplicateIdentity by the conflict clause, so concurrent
// registrations race safely.
func (s *Store) Create(ctx context.Context, in selfauth.CreateCredentialInput) (selfauth.CredentialRecord, error) {
	query := `INSERT INTO credentials (id, email, display_name, password_hash, active, admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING
		RETURNING ` + credentialColumns

	created := millis(in.CreatedAt)
	row := s.db.QueryRowContext(ctx, s.q(query),
		in.ID, in.Email, in.DisplayName, in.PasswordHash, in.Active, in.Admin, created, created)
	rec, err := scanCredential(row)
	if err != nil {
		if isNoRows(err) {
			return selfauth.CredentialRecord{}, selfauth.ErrDuplicateIdentity
		}
		return selfauth.CredentialRecord{}, dbError(err)
	}
	return rec, nil
}

// updateSet renders the SET clause and its arguments for u.
func updateSet(u selfauth.CredentialUpdate) (string, []any) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if u.DisplayName != nil {
		set("display_name", *u.DisplayName)
	}
	if u.PasswordHash != nil {
		set("password_hash", *u.PasswordHash)
	}
	if u.Active != nil {
		set("active", *u.Active)
	}
	if u.Admin != nil {
		set("admin", *u.Admin)
	}
	if u.TOTP != nil {
		set("totp_secret", u.TOTP.Secret)
		set("totp_enabled", u.TOTP.Enabled)
	}
	if u.ResetToken != nil {
		set("reset_token_hash", nullable(u.ResetToken.Hash))
		set("reset_token_expires", millis(u.ResetToken.ExpiresAt))
	}
	if u.MagicLink != nil {
		set("magic_link_hash", nullable(u.MagicLink.Hash))
		set("magic_link_expires", millis(u.MagicLink.ExpiresAt))
	}
	if !u.UpdatedAt.IsZero() {
		set("updated_at", millis(u.UpdatedAt))
	}
	if len(sets) == 0 {
		sets = append(sets, "updated_at = updated_at")
	}
	return strings.Join(sets, ", "), args
}

// Update applies u in one statement. When IfTOTPSecret is set and no row
// matches, the record is re-read inside the same transaction to tell a
// missing record from a stale precondition.
func (s *Store) Update(ctx context.Context, id string, u selfauth.CredentialUpdate) (selfauth.CredentialRecord, error) {
	setClause, args := updateSet(u)
	where := `id = ?`
	args = append(args, id)
	if u.IfTOTPSecret != nil {
		where += ` AND totp_secret = ?`
		args = append(args, *u.IfTOTPSecret)
	}
	query := `UPDATE credentials SET ` + setClause + ` WHERE ` + where + ` RETURNING ` + credentialColumns

	var rec selfauth.CredentialRecord
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		var err error
		rec, err = scanCredential(tx.QueryRowContext(ctx, s.q(query), args...))
		if err == nil {
			return nil
		}
		if !isNoRows(err) {
			return dbError(err)
		}
		if u.IfTOTPSecret == nil {
			return selfauth.ErrNotFound
		}
		if _, err := s.findOne(ctx, tx, `id = ?`, id); err != nil {
			return err
		}
		return selfauth.ErrStaleRecord
	})
	if err != nil {
		return selfauth.CredentialRecord{}, err
	}
	return rec, nil
}

// Delete removes the record and its sessions in one transaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	return WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM credentials WHERE id = ?`), id)
		if err != nil {
			return dbError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return dbError(err)
		}
		if n == 0 {
			return selfauth.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE user_id = ?`), id); err != nil {
			return dbError(err)
		}
		return nil
	})
}

// ConsumeResetToken swaps the password hash, clears the token and deletes
// the owner's sessions in one transaction.
func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (selfauth.CredentialRecord, error) {
	if tokenHash == "" {
		return selfauth.CredentialRecord{}, selfauth.ErrNotFound
	}
	query := `UPDATE credentials
		SET password_hash = ?, reset_token_hash = NULL, reset_token_expires = 0, updated_at = ?
		WHERE reset_token_hash = ? AND reset_token_expires > ?
		RETURNING ` + credentialColumns

	var rec selfauth.CredentialRecord
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		var err error
		rec, err = scanCredential(tx.QueryRowContext(ctx, s.q(query), newPasswordHash, millis(now), tokenHash, millis(now)))
		if err != nil {
			if isNoRows(err) {
				return selfauth.ErrNotFound
			}
			return dbError(err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE user_id = ?`), rec.ID); err != nil {
			return dbError(err)
		}
		return nil
	})
	if err != nil {
		return selfauth.CredentialRecord{}, err
	}
	return rec, nil
}

func (s *Store) ConsumeMagicLinkToken(ctx context.Context, tokenHash string, now time.Time) (selfauth.CredentialRecord, error) {
	if tokenHash == "" {
		return selfauth.CredentialRecord{}, selfauth.ErrNotFound
	}
	query := `UPDATE credentials
		SET magic_link_hash = NULL, magic_link_expires = 0, updated_at = ?
		WHERE magic_link_hash = ? AND magic_link_expires > ?
		RETURNING ` + credentialColumns

	rec, err := scanCredential(s.db.QueryRowContext(ctx, s.q(query), millis(now), tokenHash, millis(now)))
	if err != nil {
		if isNoRows(err) {
			return selfauth.CredentialRecord{}, selfauth.ErrNotFound
		}
		return selfauth.CredentialRecord{}, dbError(err)
	}
	return rec, nil
}
