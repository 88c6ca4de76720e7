// Package memory is an in-process CredentialStore and SessionStore. It is
// meant for tests, demos and single-instance deployments; nothing survives
// a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/selfauth"
)

// Store holds credential records and sessions behind one mutex, so every
// method is a single atomic step.
type Store struct {
	mu sync.Mutex

	users   map[string]selfauth.CredentialRecord
	byEmail map[string]string

	sessions map[string]selfauth.Session // by token digest
	byUser   map[string]map[string]struct{}
}

var (
	_ selfauth.CredentialStore = (*Store)(nil)
	_ selfauth.SessionStore    = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:    map[string]selfauth.CredentialRecord{},
		byEmail:  map[string]string{},
		sessions: map[string]selfauth.Session{},
		byUser:   map[string]map[string]struct{}{},
	}
}

func (s *Store) FindByEmail(ctx context.Context, email string) (selfauth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return selfauth.CredentialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return selfauth.CredentialRecord{}, selfauth.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) FindByID(ctx context.Context, id string) (selfauth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return selfauth.CredentialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return selfauth.CredentialRecord{}, selfauth.ErrNotFound
	}
	return rec, nil
}

func (s *Store) FindByMagicLinkToken(ctx context.Context, tokenHash string, now time.Time) (selfauth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return selfauth.CredentialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.findMagicLink(tokenHash, now)
	if !ok {
		return selfauth.CredentialRecord{}, selfauth.ErrNotFound
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, in selfauth.CreateCredentialInput) (selfauth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return selfauth.CredentialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[in.Email]; ok {
		return selfauth.CredentialRecord{}, selfauth.ErrDuplicateIdentity
	}
	rec := selfauth.CredentialRecord{
		ID:           in.ID,
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		PasswordHash: in.PasswordHash,
		Active:       in.Active,
		Admin:        in.Admin,
		CreatedAt:    in.CreatedAt,
		UpdatedAt:    in.CreatedAt,
	}
	s.users[rec.ID] = rec
	s.byEmail[rec.Email] = rec.ID
	return rec, nil
}

func (s *Store) Update(ctx context.Context, id string, u selfauth.CredentialUpdate) (selfauth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return selfauth.CredentialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return selfauth.CredentialRecord{}, selfauth.ErrNotFound
	}
	if u.IfTOTPSecret != nil && rec.TOTPSecret != *u.IfTOTPSecret {
		return selfauth.CredentialRecord{}, selfauth.ErrStaleRecord
	}
	apply(&rec, u)
	s.users[id] = rec
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return selfauth.ErrNotFound
	}
	delete(s.users, id)
	delete(s.byEmail, rec.Email)
	s.deleteUserSessions(id)
	return nil
}

func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (selfauth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return selfauth.CredentialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.users {
		if tokenHash == "" || rec.ResetTokenHash != tokenHash || !now.Before(rec.ResetTokenExpires) {
			continue
		}
		rec.PasswordHash = newPasswordHash
		rec.ResetTokenHash = ""
		rec.ResetTokenExpires = time.Time{}
		rec.UpdatedAt = now
		s.users[id] = rec
		s.deleteUserSessions(id)
		return rec, nil
	}
	return selfauth.CredentialRecord{}, selfauth.ErrNotFound
}

func (s *Store) ConsumeMagicLinkToken(ctx context.Context, tokenHash string, now time.Time) (selfauth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return selfauth.CredentialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.findMagicLink(tokenHash, now)
	if !ok {
		return selfauth.CredentialRecord{}, selfauth.ErrNotFound
	}
	rec.MagicLinkTokenHash = ""
	rec.MagicLinkExpires = time.Time{}
	rec.UpdatedAt = now
	s.users[rec.ID] = rec
	return rec, nil
}

func (s *Store) findMagicLink(tokenHash string, now time.Time) (selfauth.CredentialRecord, bool) {
	if tokenHash == "" {
		return selfauth.CredentialRecord{}, false
	}
	for _, rec := range s.users {
		if rec.MagicLinkTokenHash == tokenHash && now.Before(rec.MagicLinkExpires) {
			return rec, true
		}
	}
	return selfauth.CredentialRecord{}, false
}

/*
====================================
SESSIONS
====================================
*/

func (s *Store) CreateSession(ctx context.Context, sess selfauth.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.TokenHash] = sess
	set, ok := s.byUser[sess.UserID]
	if !ok {
		set = map[string]struct{}{}
		s.byUser[sess.UserID] = set
	}
	set[sess.TokenHash] = struct{}{}
	return nil
}

func (s *Store) FindSession(ctx context.Context, tokenHash string, now time.Time) (selfauth.Session, error) {
	if err := ctx.Err(); err != nil {
		return selfauth.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok || !now.Before(sess.ExpiresAt) {
		return selfauth.Session{}, selfauth.ErrNotFound
	}
	return sess, nil
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteUserSessions(userID), nil
}

func (s *Store) deleteUserSessions(userID string) int {
	set := s.byUser[userID]
	for digest := range set {
		delete(s.sessions, digest)
	}
	delete(s.byUser, userID)
	return len(set)
}

// apply copies the non-nil fields of u onto rec.
func apply(rec *selfauth.CredentialRecord, u selfauth.CredentialUpdate) {
	if u.DisplayName != nil {
		rec.DisplayName = *u.DisplayName
	}
	if u.PasswordHash != nil {
		rec.PasswordHash = *u.PasswordHash
	}
	if u.Active != nil {
		rec.Active = *u.Active
	}
	if u.Admin != nil {
		rec.Admin = *u.Admin
	}
	if u.TOTP != nil {
		rec.TOTPSecret = u.TOTP.Secret
		rec.TOTPEnabled = u.TOTP.Enabled
	}
	if u.ResetToken != nil {
		rec.ResetTokenHash = u.ResetToken.Hash
		rec.ResetTokenExpires = u.ResetToken.ExpiresAt
	}
	if u.MagicLink != nil {
		rec.MagicLinkTokenHash = u.MagicLink.Hash
		rec.MagicLinkExpires = u.MagicLink.ExpiresAt
	}
	if !u.UpdatedAt.IsZero() {
		rec.UpdatedAt = u.UpdatedAt
	}
}
