package flows

import (
	"context"
	"time"
)

// IssuedSession is the pair of credentials handed out after a successful
// sign-in.
type IssuedSession struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	SessionToken     string
	SessionExpiresAt time.Time
}

// SessionIssuer mints a bearer token and persists a fresh opaque session.
type SessionIssuer struct {
	SessionTTL     time.Duration
	Now            func() time.Time
	NewID          func() string
	MintAccess     func(subject string) (string, time.Time, error)
	NewOpaqueToken func() (string, error)
	HashToken      func(token string) string
	CreateSession  func(ctx context.Context, s SessionRecord) error

	// SessionCreated is the metric id bumped per issued session.
	SessionCreated int
}

func (s SessionIssuer) ready() bool {
	return s.MintAccess != nil && s.NewOpaqueToken != nil && s.HashToken != nil && s.CreateSession != nil && s.NewID != nil
}

// issue returns an error classified by the caller; it never partially
// succeeds from the client's point of view: when CreateSession fails no
// token is returned.
func (s SessionIssuer) issue(ctx context.Context, userID, ip, ua string, inc func(int)) (IssuedSession, error) {
	access, accessExp, err := s.MintAccess(userID)
	if err != nil {
		return IssuedSession{}, err
	}
	token, err := s.NewOpaqueToken()
	if err != nil {
		return IssuedSession{}, err
	}

	now := s.Now()
	rec := SessionRecord{
		ID:        s.NewID(),
		UserID:    userID,
		TokenHash: s.HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.SessionTTL),
		ClientIP:  ip,
		UserAgent: ua,
	}
	if err := s.CreateSession(ctx, rec); err != nil {
		return IssuedSession{}, err
	}
	inc(s.SessionCreated)

	return IssuedSession{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		SessionToken:     token,
		SessionExpiresAt: rec.ExpiresAt,
	}, nil
}

// SecondFactorErrors are the two outcomes of a failed 2FA gate.
type SecondFactorErrors struct {
	Required error
	Invalid  error
}

// checkSecondFactor gates sign-in on TOTP when the account has it enabled.
func checkSecondFactor(acct Account, code string, now time.Time, verify func(secret, code string, now time.Time) (bool, error), errs SecondFactorErrors) error {
	if !acct.TOTPEnabled {
		return nil
	}
	if code == "" {
		return errs.Required
	}
	ok, err := verify(acct.TOTPSecret, code, now)
	if err != nil || !ok {
		return errs.Invalid
	}
	return nil
}
