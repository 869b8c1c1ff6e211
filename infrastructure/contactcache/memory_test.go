package contactcache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	err := store.Set(ctx, &Entry{TenantID: "acme", Phone: "201001234567", ChatID: "201001234567@s.whatsapp.net"})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	entry, err := store.Get(ctx, "acme", "201001234567")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil || entry.ChatID != "201001234567@s.whatsapp.net" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	// Isolation between tenants
	other, err := store.Get(ctx, "globex", "201001234567")
	if err != nil {
		t.Fatalf("Get other tenant: %v", err)
	}
	if other != nil {
		t.Fatal("expected miss for other tenant")
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute).(*memoryStore)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.Set(ctx, &Entry{TenantID: "acme", Phone: "1001", ChatID: "1001@s.whatsapp.net"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	store.now = func() time.Time { return now.Add(31 * time.Minute) }

	entry, err := store.Get(ctx, "acme", "1001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry != nil {
		t.Fatal("expected entry to expire after TTL")
	}
}
