package contactcache

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore returns an in-process cache with the given TTL.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *memoryStore) key(tenantID, phone string) string {
	return tenantID + "|" + phone
}

func (s *memoryStore) Get(ctx context.Context, tenantID, phone string) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[s.key(tenantID, phone)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.now().Sub(entry.CachedAt) > s.ttl {
		s.mu.Lock()
		delete(s.entries, s.key(tenantID, phone))
		s.mu.Unlock()
		return nil, nil
	}
	clone := *entry
	return &clone, nil
}

func (s *memoryStore) Set(ctx context.Context, entry *Entry) error {
	clone := *entry
	if clone.CachedAt.IsZero() {
		clone.CachedAt = s.now()
	}
	s.mu.Lock()
	s.entries[s.key(clone.TenantID, clone.Phone)] = &clone
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, tenantID, phone string) error {
	s.mu.Lock()
	delete(s.entries, s.key(tenantID, phone))
	s.mu.Unlock()
	return nil
}
