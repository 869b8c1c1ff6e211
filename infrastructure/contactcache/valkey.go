package contactcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bizlinkhq/wa-engine/infrastructure/valkey"
)

type valkeyStore struct {
	client *valkey.Client
	ttl    time.Duration
}

// NewValkeyStore returns a cache shared across server instances.
func NewValkeyStore(client *valkey.Client, ttl time.Duration) Store {
	return &valkeyStore{client: client, ttl: ttl}
}

func (s *valkeyStore) key(tenantID, phone string) string {
	return s.client.Key("contact", tenantID, phone)
}

func (s *valkeyStore) Get(ctx context.Context, tenantID, phone string) (*Entry, error) {
	inner := s.client.Inner()
	resp := inner.Do(ctx, inner.B().Get().Key(s.key(tenantID, phone)).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	raw, err := resp.AsBytes()
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *valkeyStore) Set(ctx context.Context, entry *Entry) error {
	clone := *entry
	if clone.CachedAt.IsZero() {
		clone.CachedAt = time.Now()
	}
	raw, err := json.Marshal(&clone)
	if err != nil {
		return err
	}
	inner := s.client.Inner()
	cmd := inner.B().Set().Key(s.key(clone.TenantID, clone.Phone)).Value(string(raw)).
		Ex(s.ttl).Build()
	return inner.Do(ctx, cmd).Error()
}

func (s *valkeyStore) Delete(ctx context.Context, tenantID, phone string) error {
	inner := s.client.Inner()
	return inner.Do(ctx, inner.B().Del().Key(s.key(tenantID, phone)).Build()).Error()
}
