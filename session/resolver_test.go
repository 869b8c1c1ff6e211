package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bizlinkhq/wa-engine/infrastructure/contactcache"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging/fake"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
)

func newTestResolver() (*Resolver, *Registry, contactcache.Store) {
	cfg := testConfig()
	registry := NewRegistry()
	cache := contactcache.NewMemoryStore(cfg.Messaging.ContactCacheTTL)
	return NewResolver(registry, cache, cfg), registry, cache
}

func TestResolverRejectsUnusableInput(t *testing.T) {
	resolver, _, _ := newTestResolver()

	for _, raw := range []string{"", "   ", "no-digits", "12345678901234567890"} {
		_, err := resolver.Resolve(context.Background(), "acme", raw)
		require.Error(t, err, "input %q", raw)
		var invalid pkgError.InvalidRecipientError
		require.ErrorAs(t, err, &invalid)
	}
}

func TestResolverPassesFullIdentifiersThrough(t *testing.T) {
	resolver, _, _ := newTestResolver()

	for _, id := range []string{"201001234567@s.whatsapp.net", "120363998877@g.us"} {
		got, err := resolver.Resolve(context.Background(), "acme", id)
		require.NoError(t, err)
		require.Equal(t, id, got)
	}
}

func TestResolverUsesCacheBeforeNetwork(t *testing.T) {
	resolver, registry, cache := newTestResolver()

	require.NoError(t, cache.Set(context.Background(), &contactcache.Entry{
		TenantID: "acme",
		Phone:    "201001234567",
		ChatID:   "201001234567@s.whatsapp.net",
	}))

	client := fake.NewClient("acme")
	client.SetLoggedIn(true)
	client.ValidateFunc = func(string) (string, bool, error) {
		t.Fatal("cache hit must not reach the network")
		return "", false, nil
	}
	registry.SetClient("acme", client)

	got, err := resolver.Resolve(context.Background(), "acme", "+20 100 123 4567")
	require.NoError(t, err)
	require.Equal(t, "201001234567@s.whatsapp.net", got)
}

func TestResolverValidatesAndCaches(t *testing.T) {
	resolver, registry, _ := newTestResolver()

	client := fake.NewClient("acme")
	client.SetLoggedIn(true)
	client.ValidateFunc = func(digits string) (string, bool, error) {
		return digits + "@s.whatsapp.net", true, nil
	}
	registry.SetClient("acme", client)

	got, err := resolver.Resolve(context.Background(), "acme", "0100 123 4567")
	require.NoError(t, err)
	require.Equal(t, "01001234567@s.whatsapp.net", got)

	// Second resolution must come from the cache even without a live client.
	registry.TakeClient("acme")
	got, err = resolver.Resolve(context.Background(), "acme", "01001234567")
	require.NoError(t, err)
	require.Equal(t, "01001234567@s.whatsapp.net", got)
}

func TestResolverFallsBackToSuffixedDigits(t *testing.T) {
	resolver, registry, _ := newTestResolver()

	// No client at all: best-effort suffix fallback.
	got, err := resolver.Resolve(context.Background(), "acme", "201001234567")
	require.NoError(t, err)
	require.Equal(t, "201001234567@s.whatsapp.net", got)

	// Validation errors fall back too instead of failing the send.
	client := fake.NewClient("acme")
	client.SetLoggedIn(true)
	client.ValidateFunc = func(string) (string, bool, error) {
		return "", false, errors.New("network hiccup")
	}
	registry.SetClient("acme", client)

	got, err = resolver.Resolve(context.Background(), "acme", "201009998888")
	require.NoError(t, err)
	require.Equal(t, "201009998888@s.whatsapp.net", got)
}
