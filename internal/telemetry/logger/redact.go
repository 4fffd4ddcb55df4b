package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted.
//
// Plain "key" is not a pattern: store keys are logged under it.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"credential",
	"authorization",
	"bearer",
}

// RedactedValue is the placeholder for redacted sensitive data.
const RedactedValue = "***REDACTED***"

// redactSensitive redacts non-empty string attributes whose key
// suggests a secret. Groups are walked recursively.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, RedactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// Redact returns RedactedValue for a non-empty value and "" otherwise.
func Redact(value string) string {
	if value == "" {
		return ""
	}
	return RedactedValue
}
