package session

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bizlinkhq/wa-engine/core/config"
	"github.com/bizlinkhq/wa-engine/infrastructure/contactcache"
	"github.com/bizlinkhq/wa-engine/pkg/chatid"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
)

// Resolver turns human-entered recipients into protocol chat identifiers.
// Resolution is two-tier: the contact cache first, then a live network
// canonicalization, falling back to digits + user suffix when neither is
// available. The fallback is best-effort and may not be deliverable.
type Resolver struct {
	registry *Registry
	cache    contactcache.Store
	cfg      *config.Config
}

func NewResolver(registry *Registry, cache contactcache.Store, cfg *config.Config) *Resolver {
	return &Resolver{registry: registry, cache: cache, cfg: cfg}
}

// Normalize reduces raw input to bare digits or passes a full identifier
// through. An empty result means the input cannot address anyone.
func (r *Resolver) Normalize(raw string) string {
	return chatid.Normalize(raw, r.cfg.Messaging.MaxPhoneDigits)
}

// Resolve maps raw input to a chat identifier for the given tenant.
func (r *Resolver) Resolve(ctx context.Context, tenantID, raw string) (string, error) {
	normalized := r.Normalize(raw)
	if normalized == "" {
		return "", pkgError.InvalidRecipientError(fmt.Sprintf("recipient %q does not contain a usable phone number or chat id", raw))
	}
	if chatid.IsFullIdentifier(normalized) {
		return normalized, nil
	}

	digits := normalized
	if entry, err := r.cache.Get(ctx, tenantID, digits); err != nil {
		logrus.WithField("tenant", tenantID).Warnf("[RESOLVER] contact cache read: %v", err)
	} else if entry != nil {
		return entry.ChatID, nil
	}

	client := r.registry.Client(tenantID)
	if client != nil && client.LoggedIn() {
		canonical, ok, err := client.ValidateNumber(ctx, digits)
		if err != nil {
			logrus.WithField("tenant", tenantID).Debugf("[RESOLVER] number validation: %v", err)
		} else if ok && canonical != "" {
			if cacheErr := r.cache.Set(ctx, &contactcache.Entry{
				TenantID: tenantID,
				Phone:    digits,
				ChatID:   canonical,
			}); cacheErr != nil {
				logrus.WithField("tenant", tenantID).Warnf("[RESOLVER] contact cache write: %v", cacheErr)
			}
			return canonical, nil
		}
	}

	return digits + chatid.SuffixUser, nil
}
