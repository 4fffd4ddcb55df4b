package snapshot

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
)

const (
	// DefaultFileName is the snapshot file name inside the data directory.
	DefaultFileName = "kv_store.txt"

	tempSuffix = ".tmp"

	// maxLineSize bounds one snapshot line when loading.
	maxLineSize = 64 * 1024
)

// Config configures the snapshot manager.
type Config struct {
	// Path is the snapshot file. The temporary file is Path + ".tmp".
	Path string

	// Logger receives warnings about skipped lines. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the config for the default snapshot file in dir.
func DefaultConfig(dir string) Config {
	return Config{Path: filepath.Join(dir, DefaultFileName)}
}

// Manager writes and reads the text snapshot file.
//
// Every line holds one active entry as "key value". A save writes the
// complete state to a temporary file, syncs it and renames it over the
// snapshot, so readers see either the previous or the new snapshot.
//
// Manager is not safe for concurrent Save calls; the store engine serializes
// them.
type Manager struct {
	cfg    Config
	logger *slog.Logger
}

// NewManager creates a manager and ensures the snapshot directory exists.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("snapshot: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger}, nil
}

// Info contains metadata about a written snapshot.
type Info struct {
	Path      string `json:"path"`
	Entries   int    `json:"entries"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"created_at"`
	Checksum  string `json:"checksum,omitempty"`
}

// Path returns the snapshot file path.
func (m *Manager) Path() string {
	return m.cfg.Path
}

// Save replaces the snapshot with entries.
func (m *Manager) Save(_ context.Context, entries []domain.Entry) (*Info, error) {
	now := time.Now()
	tempPath := m.cfg.Path + tempSuffix

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	// Removes the temp file on any failure before the rename.
	defer os.Remove(tempPath)

	hash := sha256.New()
	bw := bufio.NewWriter(io.MultiWriter(file, hash))

	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s %s\n", e.Key, e.Value); err != nil {
			file.Close()
			return nil, fmt.Errorf("snapshot: write entry: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: flush: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: stat: %w", err)
	}

	if err := os.Rename(tempPath, m.cfg.Path); err != nil {
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}

	return &Info{
		Path:      m.cfg.Path,
		Entries:   len(entries),
		Size:      stat.Size(),
		CreatedAt: now.UnixMilli(),
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// Load reads the snapshot. A missing file yields no entries and no error.
//
// Lines that do not split into exactly two fields are skipped with a
// warning. Later lines win over earlier lines with the same key when the
// entries are replayed in order.
func (m *Manager) Load(ctx context.Context) ([]domain.Entry, error) {
	f, err := os.Open(m.cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()

	var entries []domain.Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			m.logger.WarnContext(ctx, "skipping malformed snapshot line",
				"path", m.cfg.Path,
				"line", lineNo,
				"fields", len(fields),
			)
			continue
		}
		entries = append(entries, domain.Entry{Key: fields[0], Value: fields[1], Active: true})
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("snapshot: read line %d: %w", lineNo+1, err)
	}
	return entries, nil
}

// Close implements the persister contract. The manager holds no open files.
func (m *Manager) Close() error {
	return nil
}
