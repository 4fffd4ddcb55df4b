package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// Output is the output writer (defaults to os.Stderr).
	Output io.Writer
}

// level is shared by every logger New creates.
var level = new(slog.LevelVar)

// New creates a logger writing cfg.Format records at cfg.Level or above.
// It also resets the shared level to cfg.Level.
func New(cfg Config) (*slog.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level.Set(lvl)
	return slog.New(&contextHandler{next: h}), nil
}

// SetDefault installs l as the slog default.
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// SetLevel changes the level of every logger created by New.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

// GetLevel returns the current level name in lower case.
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

// ParseLevel parses a level name such as "debug" or "WARN". "warning" is
// accepted for warn.
func ParseLevel(name string) (slog.Level, error) {
	if strings.EqualFold(name, "warning") {
		name = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// ValidLevel reports whether ParseLevel accepts name.
func ValidLevel(name string) bool {
	_, err := ParseLevel(name)
	return err == nil
}
