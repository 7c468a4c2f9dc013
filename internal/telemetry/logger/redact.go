package logger

import (
	"log/slog"
	"strings"
)

// invitePrefix marks bech32m invite codes, which may embed an API secret.
const invitePrefix = "fed1"

// Attribute keys whose values are never written. Matching is by substring,
// so "api_secret" and "passphrase_file" are covered.
var secretKeys = []string{
	"mnemonic",
	"passphrase",
	"password",
	"secret",
	"seed",
	"preimage",
	"notes",
	"auth",
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}

	case slog.KindString:
		s := a.Value.String()
		switch {
		case hasInvitePrefix(s):
			return slog.String(a.Key, maskValue(s, invitePrefix))
		case s != "" && isSecretKey(a.Key):
			return slog.String(a.Key, redactedValue)
		}

	case slog.KindAny:
		// Raw key material such as a passphrase buffer.
		if b, ok := a.Value.Any().([]byte); ok && len(b) > 0 && isSecretKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}
	return a
}

func hasInvitePrefix(s string) bool {
	return len(s) >= len(invitePrefix) && strings.EqualFold(s[:len(invitePrefix)], invitePrefix)
}

// maskValue keeps prefix plus three characters from each end of the body.
func maskValue(value, prefix string) string {
	head, body := value[:len(prefix)], value[len(prefix):]
	if len(body) <= 6 {
		return head + "***"
	}
	return head + body[:3] + "..." + body[len(body)-3:]
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, k := range secretKeys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}
