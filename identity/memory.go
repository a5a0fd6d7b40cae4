package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/MrEthical07/authgate"
)

// MemoryStore is an in-memory user table.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]authgate.UserRecord
	byEmail map[string]string
}

// NewMemoryStore returns a store seeded with users.
func NewMemoryStore(users ...authgate.UserRecord) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[string]authgate.UserRecord),
		byEmail: make(map[string]string),
	}
	for _, u := range users {
		s.Put(u)
	}
	return s
}

// Put inserts or replaces a user.
func (s *MemoryStore) Put(u authgate.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[u.UserID]; ok {
		delete(s.byEmail, normalizeEmail(old.Email))
	}
	s.byID[u.UserID] = u
	if u.Email != "" {
		s.byEmail[normalizeEmail(u.Email)] = u.UserID
	}
}

// SetStatus changes a user's status. It reports whether the user exists.
func (s *MemoryStore) SetStatus(userID string, status authgate.AccountStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return false
	}
	u.Status = status
	s.byID[userID] = u
	return true
}

// Remove deletes a user.
func (s *MemoryStore) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.byID[userID]; ok {
		delete(s.byEmail, normalizeEmail(u.Email))
		delete(s.byID, userID)
	}
}

// FindByID implements [authgate.IdentityLookup].
func (s *MemoryStore) FindByID(_ context.Context, userID string) (*authgate.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// FindByEmail implements [authgate.CredentialLookup].
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*authgate.UserRecord, error) {
	s.mu.RLock()
	id, ok := s.byEmail[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.FindByID(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
