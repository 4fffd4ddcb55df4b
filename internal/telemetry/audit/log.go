package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Operations recorded by the store engine.
const (
	OpSet    = "SET"
	OpDelete = "DELETE"
)

// Log appends one line per mutating store operation:
//
//	2026-01-02T15:04:05Z: SET on key user:1
//
// Writes are serialized. A failed write is logged and dropped; it never
// fails the operation being audited.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
	logger *slog.Logger
}

// Open opens path for appending, creating it with mode 0600.
// An empty path or "-" returns a disabled log.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" || path == "-" {
		return &Log{logger: logger, now: time.Now}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return &Log{w: f, closer: f, now: time.Now, logger: logger}, nil
}

// New returns a log writing to w.
func New(w io.Writer, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{w: w, now: time.Now, logger: logger}
}

// Enabled reports whether records are written anywhere.
func (l *Log) Enabled() bool {
	return l != nil && l.w != nil
}

// Record appends an audit line for op on key.
func (l *Log) Record(ctx context.Context, op, key string) {
	if !l.Enabled() {
		return
	}

	line := fmt.Sprintf("%s: %s on key %s\n", l.now().UTC().Format(time.RFC3339), op, key)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	if _, err := io.WriteString(l.w, line); err != nil {
		l.logger.WarnContext(ctx, "audit write failed", "op", op, "key", key, "error", err)
	}
}

// Close closes the underlying file. Later records are dropped.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.w = nil
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
