package domain

import (
	"fmt"
	"strings"
)

// Default length limits for keys and values, in bytes.
const (
	DefaultMaxKeyLength   = 50
	DefaultMaxValueLength = 100
)

// Entry is one slot of a shard.
//
// Active is false for a slot that was never used or was deleted; such a
// slot may be claimed again by a later set.
type Entry struct {
	Key    string
	Value  string
	Active bool
}

// Limits bounds the byte length of keys and values accepted by the store.
type Limits struct {
	MaxKeyLength   int
	MaxValueLength int
}

// DefaultLimits returns the default key/value length limits.
func DefaultLimits() Limits {
	return Limits{
		MaxKeyLength:   DefaultMaxKeyLength,
		MaxValueLength: DefaultMaxValueLength,
	}
}

// ValidateKey checks a key against the limits.
func (l Limits) ValidateKey(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if len(key) > l.MaxKeyLength {
		return ErrKeyTooLong.WithDetails(fmt.Sprintf("%d bytes, limit %d", len(key), l.MaxKeyLength))
	}
	if hasLineBreak(key) {
		return ErrKeyInvalid
	}
	return nil
}

// Validate checks a key/value pair against the limits.
func (l Limits) Validate(key, value string) error {
	if err := l.ValidateKey(key); err != nil {
		return err
	}
	if value == "" {
		return ErrValueEmpty
	}
	if len(value) > l.MaxValueLength {
		return ErrValueTooLong.WithDetails(fmt.Sprintf("%d bytes, limit %d", len(value), l.MaxValueLength))
	}
	if hasLineBreak(value) {
		return ErrValueInvalid
	}
	return nil
}

// Snapshots hold one "key value" line per entry, so neither part may
// span lines or be empty.
func hasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
