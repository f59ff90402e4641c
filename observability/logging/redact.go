package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys emitted in clear by MaskField. Ledger identifiers are public.
var redactionAllowlist = map[string]struct{}{
	"service":     {},
	"env":         {},
	"message":     {},
	"severity":    {},
	"timestamp":   {},
	"error":       {},
	"category":    {},
	"component":   {},
	"tx":          {},
	"signer":      {},
	"treasury":    {},
	"beneficiary": {},
}

// Key fragments that are masked wherever they appear, even when a caller
// logs them with a plain slog.String.
var secretFragments = []string{"passphrase", "password", "secret", "private", "dsn"}

func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the sorted allowlisted keys.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField hides value unless key is allowlisted. Empty values pass
// through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, fragment := range secretFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

// redactSecrets is applied by the handler to every string attribute.
func redactSecrets(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || attr.Value.String() == "" {
		return attr
	}
	if isSecretKey(attr.Key) {
		return slog.String(attr.Key, RedactedValue)
	}
	return attr
}
