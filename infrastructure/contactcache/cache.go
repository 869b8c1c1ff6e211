// Package contactcache holds short-lived tenant+phone resolutions so the
// resolver does not hit the network for every send.
package contactcache

import (
	"context"
	"time"
)

// Entry is one resolved identity. Owned exclusively by the cache; callers
// never mutate a returned entry.
type Entry struct {
	TenantID string    `json:"tenant_id"`
	Phone    string    `json:"phone"`
	ChatID   string    `json:"chat_id"`
	Name     string    `json:"name,omitempty"`
	CachedAt time.Time `json:"cached_at"`
}

// Store is the contract for contact caches. Implementations: in-memory
// (single server) and valkey (shared across servers).
type Store interface {
	Get(ctx context.Context, tenantID, phone string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, tenantID, phone string) error
}
