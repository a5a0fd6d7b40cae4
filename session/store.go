package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable is returned when the backing Redis call fails.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrSessionNotFound is returned when no live session exists for an id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCorrupt is returned alongside ErrSessionNotFound when a stored
	// record cannot be decoded.
	ErrSessionCorrupt = errors.New("session corrupt")
)

// DefaultPrefix namespaces session keys when none is configured.
const DefaultPrefix = "as"

const minTTL = time.Second

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Config controls key layout and lifetimes.
type Config struct {
	Prefix string
	// IdleTimeout is the Redis TTL, renewed on every touch.
	IdleTimeout time.Duration
	// AbsoluteLifetime caps a session's age regardless of activity. Zero
	// disables the cap.
	AbsoluteLifetime time.Duration
}

// Store persists sessions in Redis.
type Store struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewStore returns a Store. IdleTimeout must be positive.
func NewStore(client redis.UniversalClient, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.IdleTimeout <= 0 {
		return nil, errors.New("session idle timeout must be positive")
	}
	if cfg.AbsoluteLifetime < 0 {
		return nil, errors.New("session absolute lifetime must not be negative")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Store{redis: client, config: cfg, now: time.Now}, nil
}

// SetClock overrides the time source used for activity timestamps.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) key(sessionID string) string {
	return s.config.Prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.config.Prefix + ":u:" + userID
}

// Create starts a new session for userID.
func (s *Store) Create(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("user id required")
	}
	now := s.now()
	sess := &Session{
		SessionID:      uuid.NewString(),
		UserID:         userID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save writes sess and indexes it under its user.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.SessionID == "" {
		return errors.New("session id required")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	ttl := s.nextTTL(sess, s.now())

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a session without renewing it.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrSessionNotFound, ErrSessionCorrupt)
	}
	sess.SessionID = sessionID

	if s.expiredAbsolute(sess, s.now()) {
		// Redis TTL should already have caught this; clean up stragglers.
		_ = s.Delete(ctx, sessionID)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Touch records activity on a session and renews its idle TTL. The write
// only succeeds if the key still exists, so a concurrently deleted session
// is never resurrected.
func (s *Store) Touch(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess.LastActivityAt = now
	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	err = s.redis.SetArgs(ctx, s.key(sessionID), data, redis.SetArgs{
		Mode: "XX",
		TTL:  s.nextTTL(sess, now),
	}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return sess, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var userID string
	if sess, err := Decode(data); err == nil {
		userID = sess.UserID
	}
	if userID == "" {
		if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	keys := []string{s.key(sessionID), s.userKey(userID)}
	if err := deleteSessionLua.Run(ctx, s.redis, keys, sessionID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every session indexed under userID and returns how
// many records were deleted.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.New("user id required")
	}
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, s.userKey(userID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) nextTTL(sess *Session, now time.Time) time.Duration {
	ttl := s.config.IdleTimeout
	if s.config.AbsoluteLifetime > 0 {
		remaining := sess.CreatedAt.Add(s.config.AbsoluteLifetime).Sub(now)
		if remaining < ttl {
			ttl = remaining
		}
	}
	if ttl < minTTL {
		ttl = minTTL
	}
	return ttl
}

func (s *Store) expiredAbsolute(sess *Session, now time.Time) bool {
	if s.config.AbsoluteLifetime <= 0 {
		return false
	}
	return !now.Before(sess.CreatedAt.Add(s.config.AbsoluteLifetime))
}
