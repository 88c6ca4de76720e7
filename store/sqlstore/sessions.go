package sqlstore

import (
	"context"
	"time"

	"github.com/MrEthical07/selfauth"
)

func (s *Store) CreateSession(ctx context.Context, sess selfauth.Session) error {
	query := `INSERT INTO sessions (token_hash, id, user_id, client_ip, user_agent, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.q(query),
		sess.TokenHash, sess.ID, sess.UserID, sess.ClientIP, sess.UserAgent,
		millis(sess.CreatedAt), millis(sess.ExpiresAt))
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (s *Store) FindSession(ctx context.Context, tokenHash string, now time.Time) (selfauth.Session, error) {
	query := `SELECT token_hash, id, user_id, client_ip, user_agent, created_at, expires_at
		FROM sessions WHERE token_hash = ? AND expires_at > ?`

	var (
		sess               selfauth.Session
		createdAt, expires int64
	)
	err := s.db.QueryRowContext(ctx, s.q(query), tokenHash, millis(now)).Scan(
		&sess.TokenHash, &sess.ID, &sess.UserID, &sess.ClientIP, &sess.UserAgent, &createdAt, &expires)
	if err != nil {
		if isNoRows(err) {
			return selfauth.Session{}, selfauth.ErrNotFound
		}
		return selfauth.Session{}, dbError(err)
	}
	sess.CreatedAt = fromMillis(createdAt)
	sess.ExpiresAt = fromMillis(expires)
	return sess, nil
}

// DeleteUserSessions removes every session row of userID, expired or not.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE user_id = ?`), userID)
	if err != nil {
		return 0, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbError(err)
	}
	return int(n), nil
}

// PurgeExpiredSessions deletes sessions that expired at or before now.
// Lookups already ignore them; this only reclaims space.
func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE expires_at <= ?`), millis(now))
	if err != nil {
		return 0, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbError(err)
	}
	return n, nil
}
