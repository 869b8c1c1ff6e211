// Package chatid normalizes human-entered phone numbers and identifiers into
// protocol chat identifiers.
package chatid

import (
	"strings"
)

const (
	SuffixUser  = "@s.whatsapp.net"
	SuffixGroup = "@g.us"
)

// IsFullIdentifier reports whether raw already carries a recognized
// person or group suffix.
func IsFullIdentifier(raw string) bool {
	return strings.HasSuffix(raw, SuffixUser) || strings.HasSuffix(raw, SuffixGroup)
}

// IsGroup reports whether id addresses a group conversation.
func IsGroup(id string) bool {
	return strings.HasSuffix(id, SuffixGroup)
}

// Normalize trims raw and strips it down to bare digits. Fully-qualified
// identifiers pass through unchanged. Returns "" for empty results and for
// digit strings longer than maxDigits: those are internal network identifiers,
// not phone numbers.
func Normalize(raw string, maxDigits int) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if IsFullIdentifier(raw) {
		return raw
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || len(digits) > maxDigits {
		return ""
	}
	return digits
}

// IsValidChatID applies the stricter check media sends require: a full
// identifier whose user part is 8-15 digits, or any group identifier.
func IsValidChatID(id string) bool {
	if strings.HasSuffix(id, SuffixGroup) {
		return strings.TrimSuffix(id, SuffixGroup) != ""
	}
	if !strings.HasSuffix(id, SuffixUser) {
		return false
	}
	user := strings.TrimSuffix(id, SuffixUser)
	if len(user) < 8 || len(user) > 15 {
		return false
	}
	for _, r := range user {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Dialable converts digits into a region-appropriate dialable form: a leading
// zero is replaced with the default country code, everything else passes
// through.
func Dialable(digits, countryCode string) string {
	if strings.HasPrefix(digits, "0") && countryCode != "" {
		return countryCode + strings.TrimPrefix(digits, "0")
	}
	return digits
}

// HasInternalPrefix reports whether digits looks like one of the network's
// internal identifiers rather than a real phone number.
func HasInternalPrefix(digits string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(digits, p) {
			return true
		}
	}
	return false
}
