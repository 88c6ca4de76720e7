package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/selfauth"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// deleteUserSessionsScript removes every session listed in the user index
// and the index itself in one atomic step. Members whose key already
// expired are not counted.
const deleteUserSessionsScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local deleted = 0
for _, digest in ipairs(members) do
  deleted = deleted + redis.call("DEL", ARGV[1] .. digest)
end
redis.call("DEL", KEYS[1])
return deleted
`

var deleteUserSessionsLua = redis.NewScript(deleteUserSessionsScript)

// Store keeps sessions in Redis. Each session is one key named after its
// token digest, expiring with the session; a per-user set indexes the
// digests for bulk deletion.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var _ selfauth.SessionStore = (*Store)(nil)

// NewStore returns a Store using prefix as key namespace ("as" when empty).
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "as"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) sessionPrefix() string {
	return s.prefix + ":s:"
}

func (s *Store) key(digest string) string {
	return s.sessionPrefix() + digest
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// CreateSession stores sess for its lifetime, ExpiresAt minus CreatedAt.
// The TTL is taken from the session's own timestamps so an injected clock
// stays consistent with Redis expiry.
//
//	Performance: one MULTI with SET, SADD and EXPIRE.
func (s *Store) CreateSession(ctx context.Context, sess selfauth.Session) error {
	if sess.TokenHash == "" || sess.UserID == "" {
		return errors.New("session requires token digest and user id")
	}
	ttl := sess.ExpiresAt.Sub(sess.CreatedAt)
	if ttl <= 0 {
		return errors.New("session lifetime must be positive")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	userKey := s.userKey(sess.UserID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.TokenHash), data, ttl)
		pipe.SAdd(ctx, userKey, sess.TokenHash)
		// Sessions share one fixed lifetime, so the newest one always
		// outlives the index entries before it.
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// FindSession returns the session stored under digest, or
// selfauth.ErrNotFound when it is missing or expired at now.
//
//	Performance: 1 Redis GET.
func (s *Store) FindSession(ctx context.Context, digest string, now time.Time) (selfauth.Session, error) {
	data, err := s.redis.Get(ctx, s.key(digest)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return selfauth.Session{}, selfauth.ErrNotFound
		}
		return selfauth.Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return selfauth.Session{}, err
	}
	if !now.Before(sess.ExpiresAt) {
		return selfauth.Session{}, selfauth.ErrNotFound
	}
	sess.TokenHash = digest
	return sess, nil
}

// DeleteUserSessions removes every session of userID and reports how many
// live sessions were deleted.
//
//	Performance: 1 EVALSHA.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	n, err := deleteUserSessionsLua.Run(ctx, s.redis, []string{s.userKey(userID)}, s.sessionPrefix()).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// ActiveSessionCount reports the size of the user's index. Entries of
// sessions that expired on their own are included until the next bulk
// delete.
func (s *Store) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	n, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}
