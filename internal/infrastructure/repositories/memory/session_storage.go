package memory

import (
	"context"
	"sync"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
)

// MemorySessionStorage keeps the session for the lifetime of the process.
type MemorySessionStorage struct {
	session *domain.Session
	mu      sync.RWMutex
}

func NewMemorySessionStorage() ports.SessionStorage {
	return &MemorySessionStorage{}
}

func (s *MemorySessionStorage) Load(ctx context.Context) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

func (s *MemorySessionStorage) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.session = &cp
	return nil
}

func (s *MemorySessionStorage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}
