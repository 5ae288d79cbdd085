package auth

import (
	"context"
	"sync"
	"time"
)

// Store persists the access token between process runs.
//
// Load returns nil (and no error) when nothing usable is stored, including
// when the stored token has expired or cannot be decoded.
type Store interface {
	Load(ctx context.Context) (*Token, error)
	Save(ctx context.Context, t Token) error
}

// MemoryStore keeps the token for the life of the process only
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte

	// Now returns the current time; overridden in tests
	Now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Now: time.Now}
}

func (s *MemoryStore) Load(ctx context.Context) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, nil
	}
	return decodeToken(s.data, s.Now()), nil
}

func (s *MemoryStore) Save(ctx context.Context, t Token) error {
	data, err := encodeToken(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

