package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRedactSensitive_SensitiveKeyName(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("request",
		"api_key", "secure123",
		"Authorization", "Bearer secure123",
		"password", "hunter2",
		"empty_secret", "",
	)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	for _, k := range []string{"api_key", "Authorization", "password"} {
		if logEntry[k] != RedactedValue {
			t.Errorf("%s = %v, want redacted", k, logEntry[k])
		}
	}
	if logEntry["empty_secret"] != "" {
		t.Errorf("empty value should stay empty, got %v", logEntry["empty_secret"])
	}
}

func TestRedactSensitive_NormalValues(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("set", "key", "user:1", "shard", 3, "path", "/set/user:1/alice")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if logEntry["key"] != "user:1" {
		t.Errorf("store key should not be redacted, got %v", logEntry["key"])
	}
	if logEntry["path"] != "/set/user:1/alice" {
		t.Errorf("path = %v", logEntry["path"])
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("config", "security", map[string]any{"ignored": true})
	buf.Reset()

	l.With("component", "test").WithGroup("security").Info("loaded", "api_key", "x", "mode", "file")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	group, ok := logEntry["security"].(map[string]any)
	if !ok {
		t.Fatalf("security group missing: %v", logEntry)
	}
	if group["api_key"] != RedactedValue {
		t.Errorf("grouped api_key = %v, want redacted", group["api_key"])
	}
	if group["mode"] != "file" {
		t.Errorf("grouped mode = %v", group["mode"])
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"api_key", true},
		{"API_KEY_HASH", true},
		{"apiKey", true},
		{"authorization", true},
		{"client_secret", true},
		{"token", true},
		{"key", false},
		{"value", false},
		{"shard", false},
	}

	for _, tt := range tests {
		if got := IsSensitiveKey(tt.key); got != tt.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := Redact(""); got != "" {
		t.Errorf("Redact(\"\") = %q, want empty", got)
	}
	if got := Redact("secure123"); got != RedactedValue {
		t.Errorf("Redact() = %q, want %q", got, RedactedValue)
	}
}
