package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport or server failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix namespaces revocation keys.
const DefaultPrefix = "arv"

// Store is a Redis-backed revocation list. It is safe for concurrent use;
// correctness relies on per-key atomic SET and EXISTS.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store writing under prefix (DefaultPrefix when empty).
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + Fingerprint(id)
}

// Revoke records the credential identified by id as invalid for ttl. id
// must be canonical for the credential (see jwt.Verified.RevocationKey), so
// every accepted spelling of it maps to the same entry. ttl must cover the
// credential's remaining lifetime; a non-positive ttl means the credential
// is already dead and nothing is written. Revoking twice is harmless.
func (s *Store) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if id == "" {
		return errors.New("credential id required")
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, s.key(id), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether id has a live revocation entry.
func (s *Store) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Ping checks Redis reachability.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
