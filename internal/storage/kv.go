package storage

import (
	"context"
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
)

// Backend names accepted in Config.Backend.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Persister is the durable sink for snapshots of the shard table.
//
// Save replaces the previously saved state with entries as a whole; a
// reader never observes a partially saved state. Load returns the last
// saved entries, or none when nothing was saved yet.
type Persister interface {
	Save(ctx context.Context, entries []domain.Entry) (*snapshot.Info, error)
	Load(ctx context.Context) ([]domain.Entry, error)
	Close() error
}

var (
	_ Persister = (*snapshot.Manager)(nil)
	_ Persister = (*BadgerPersister)(nil)
)

// BadgerConfig configures the Badger snapshot backend.
type BadgerConfig struct {
	// Dir is the Badger database directory.
	Dir string

	// GCInterval is the interval between value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 16MB
	CacheSize int64

	// SyncWrites fsyncs every write batch.
	// Default: true
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration for dir.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		CacheSize:   16 << 20,
		SyncWrites:  true,
	}
}
