package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/storage/shard"
	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
	"github.com/yndnr/kvmesh-go/internal/telemetry/audit"
)

// Default configuration values.
const (
	DefaultSnapshotInterval = 10 * time.Second
	DefaultShardCount       = 16
	DefaultShardCapacity    = 128
	DefaultCloseTimeout     = 5 * time.Second
	DefaultBadgerDir        = "badger"
)

// Operation result labels reported to Metrics.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
	ResultCapacity = "capacity"
)

// Replicator receives every successful set.
type Replicator interface {
	Enqueue(key, value string)
	Close(ctx context.Context) error
}

// AuditLog receives every successful mutation.
type AuditLog interface {
	Record(ctx context.Context, op, key string)
	Close() error
}

// Metrics receives store and snapshot observations.
type Metrics interface {
	ObserveOperation(op, result string, d time.Duration)
	ObserveSnapshot(entries int, d time.Duration, err error)
}

// Config configures the storage engine.
type Config struct {
	// DataDir is the base directory for the snapshot and the Badger database.
	DataDir string

	// Backend selects the persister: "file" (default) or "badger".
	Backend string

	// SnapshotFile is the text snapshot path, relative to DataDir unless absolute.
	SnapshotFile string

	// SnapshotInterval is the period of the persistence loop.
	SnapshotInterval time.Duration

	// ShardCount is the number of shards. Changing it invalidates the
	// key-to-shard layout but not the snapshot, which is replayed by key.
	ShardCount int

	// ShardCapacity is the number of slots per shard.
	ShardCapacity int

	// Router names the key-to-shard function ("poly31" or "murmur3").
	Router string

	// Limits bounds key and value lengths.
	Limits domain.Limits

	// Badger configures the Badger backend. Dir defaults to DataDir/badger.
	Badger BadgerConfig

	// CloseTimeout bounds the replication drain in Close.
	CloseTimeout time.Duration

	// Persister overrides Backend when set.
	Persister Persister

	// Optional collaborators. Nil values disable them.
	Replicator Replicator
	Audit      AuditLog
	Metrics    Metrics
	Registerer prometheus.Registerer

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:          dataDir,
		Backend:          BackendFile,
		SnapshotFile:     snapshot.DefaultFileName,
		SnapshotInterval: DefaultSnapshotInterval,
		ShardCount:       DefaultShardCount,
		ShardCapacity:    DefaultShardCapacity,
		Router:           shard.RouterPoly31,
		Limits:           domain.DefaultLimits(),
		Badger:           DefaultBadgerConfig(""),
		CloseTimeout:     DefaultCloseTimeout,
		Logger:           slog.Default(),
	}
}

// Engine is the sharded key-value store.
//
// Set, Get and Delete lock only the shard that owns the key. Persistence,
// replication and auditing run after the shard lock is released and never
// fail a call that already mutated the shard.
type Engine struct {
	cfg Config

	table      *shard.Table
	limits     domain.Limits
	persister  Persister
	replicator Replicator
	audit      AuditLog
	metrics    Metrics
	logger     *slog.Logger

	// dirty is set by every mutation and cleared by a flush.
	dirty   atomic.Bool
	flushCh chan struct{}
	saveMu  sync.Mutex

	recovered atomic.Bool

	startOnce sync.Once
	started   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// Shutdown
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a new storage engine.
//
// This builds the shard table and the persister but does NOT load data or
// start the persistence loop. Call Recover and then Start.
func New(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" && cfg.Persister == nil {
		return nil, fmt.Errorf("storage: data_dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = DefaultSnapshotInterval
	}
	if cfg.ShardCapacity < 1 {
		return nil, fmt.Errorf("storage: shard_capacity must be >= 1, got %d", cfg.ShardCapacity)
	}
	if cfg.Limits.MaxKeyLength < 1 || cfg.Limits.MaxValueLength < 1 {
		return nil, fmt.Errorf("storage: key and value limits must be >= 1")
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}

	router, err := shard.NewRouter(cfg.Router, cfg.ShardCount)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	persister := cfg.Persister
	if persister == nil {
		persister, err = openPersister(cfg)
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:        cfg,
		table:      shard.NewTable(router, cfg.ShardCapacity),
		limits:     cfg.Limits,
		persister:  persister,
		replicator: cfg.Replicator,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		flushCh:    make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	if e.replicator == nil {
		e.replicator = nopReplicator{}
	}
	if e.audit == nil {
		e.audit = nopAudit{}
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}

	return e, nil
}

func openPersister(cfg Config) (Persister, error) {
	switch cfg.Backend {
	case "", BackendFile:
		path := cfg.SnapshotFile
		if path == "" {
			path = snapshot.DefaultFileName
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		m, err := snapshot.NewManager(snapshot.Config{Path: path, Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("storage: create snapshot manager: %w", err)
		}
		return m, nil

	case BackendBadger:
		bcfg := cfg.Badger
		if bcfg.Dir == "" {
			bcfg.Dir = filepath.Join(cfg.DataDir, DefaultBadgerDir)
		}
		p, err := NewBadgerPersister(bcfg, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("storage: open badger: %w", err)
		}
		if cfg.Registerer != nil {
			if err := p.RegisterMetrics(cfg.Registerer); err != nil {
				p.Close()
				return nil, err
			}
		}
		return p, nil

	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// Set stores value under key.
func (e *Engine) Set(ctx context.Context, key, value string) error {
	start := time.Now()

	if err := e.limits.Validate(key, value); err != nil {
		e.metrics.ObserveOperation("set", ResultInvalid, time.Since(start))
		return err
	}

	s, idx := e.table.Locate(key)
	if err := s.Set(key, value); err != nil {
		e.metrics.ObserveOperation("set", ResultCapacity, time.Since(start))
		e.logger.WarnContext(ctx, "set rejected", "shard", idx, "error", err)
		return err
	}

	e.markDirty()
	e.replicator.Enqueue(key, value)
	e.audit.Record(ctx, audit.OpSet, key)

	e.metrics.ObserveOperation("set", ResultOK, time.Since(start))
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (e *Engine) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()

	if err := e.limits.ValidateKey(key); err != nil {
		e.metrics.ObserveOperation("get", ResultInvalid, time.Since(start))
		return "", err
	}

	s, _ := e.table.Locate(key)
	value, ok := s.Get(key)
	if !ok {
		e.metrics.ObserveOperation("get", ResultNotFound, time.Since(start))
		return "", domain.ErrKeyNotFound
	}

	e.metrics.ObserveOperation("get", ResultOK, time.Since(start))
	return value, nil
}

// Delete removes key. Deleting a missing key is a no-op and returns nil.
func (e *Engine) Delete(ctx context.Context, key string) error {
	start := time.Now()

	// Invalid keys can never have been stored.
	if e.limits.ValidateKey(key) != nil {
		e.metrics.ObserveOperation("delete", ResultNotFound, time.Since(start))
		return nil
	}

	s, _ := e.table.Locate(key)
	if !s.Delete(key) {
		e.metrics.ObserveOperation("delete", ResultNotFound, time.Since(start))
		return nil
	}

	e.markDirty()
	e.audit.Record(ctx, audit.OpDelete, key)

	e.metrics.ObserveOperation("delete", ResultOK, time.Since(start))
	return nil
}

// Exists reports whether key has an active entry.
func (e *Engine) Exists(ctx context.Context, key string) bool {
	_, err := e.Get(ctx, key)
	return err == nil
}

// Count returns the number of active entries.
func (e *Engine) Count() int {
	return e.table.Count()
}

// Stats returns per-shard statistics.
func (e *Engine) Stats() []shard.Stats {
	return e.table.Stats()
}

// Ready reports whether Recover has completed.
func (e *Engine) Ready() bool {
	return e.recovered.Load()
}

// Recover loads the last snapshot and replays it through Set.
//
// Entries that fail validation or do not fit their shard are skipped with a
// warning. Replay goes through the normal write path, so loaded entries are
// also replicated and audited.
func (e *Engine) Recover(ctx context.Context) error {
	startTime := time.Now()
	e.logger.Info("storage recovery started")

	entries, err := e.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if entries == nil {
		e.logger.Info("no snapshot found, starting with empty store")
	}

	skipped := 0
	for _, entry := range entries {
		if err := e.Set(ctx, entry.Key, entry.Value); err != nil {
			skipped++
			e.logger.Warn("failed to restore entry from snapshot",
				"key", entry.Key,
				"error", err)
		}
	}

	// The table now matches the snapshot; nothing to write back.
	e.dirty.Store(false)
	select {
	case <-e.flushCh:
	default:
	}
	e.recovered.Store(true)

	e.logger.Info("recovery completed",
		"entries", len(entries),
		"skipped", skipped,
		"active", e.table.Count(),
		"elapsed", time.Since(startTime))

	return nil
}

// Start launches the persistence loop. It is a no-op after the first call.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.started.Store(true)
		go e.persistLoop()
	})
}

// TriggerSnapshot writes a snapshot now, even if nothing changed.
func (e *Engine) TriggerSnapshot(ctx context.Context) (*snapshot.Info, error) {
	info, err := e.flush(ctx, true)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	return info, nil
}

// Close stops the persistence loop, writes a final snapshot if anything
// changed, drains replication and closes the audit log and the persister.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.logger.Info("shutting down storage engine")

		if e.started.Load() {
			close(e.stopCh)
			<-e.doneCh
		}

		var errs []error
		if _, err := e.flush(context.Background(), false); err != nil {
			errs = append(errs, fmt.Errorf("final snapshot: %w", err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CloseTimeout)
		if err := e.replicator.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()

		if err := e.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audit log: %w", err))
		}
		if err := e.persister.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close persister: %w", err))
		}

		e.closeErr = errors.Join(errs...)
		e.logger.Info("storage engine shutdown complete")
	})
	return e.closeErr
}

func (e *Engine) markDirty() {
	e.dirty.Store(true)
	select {
	case e.flushCh <- struct{}{}:
	default:
	}
}

// persistLoop flushes on every tick and on coalesced write notifications.
func (e *Engine) persistLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flushAndLog()
		case <-e.flushCh:
			e.flushAndLog()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) flushAndLog() {
	if _, err := e.flush(context.Background(), false); err != nil {
		e.logger.Error("snapshot failed, will retry", "error", err)
	}
}

// flush copies every shard, one lock at a time, and saves the copy.
// Without force it only writes when a mutation happened since the last
// successful flush. A failed save leaves the engine dirty.
func (e *Engine) flush(ctx context.Context, force bool) (*snapshot.Info, error) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	wasDirty := e.dirty.Swap(false)
	if !wasDirty && !force {
		return nil, nil
	}

	entries := e.table.Entries()

	start := time.Now()
	info, err := e.persister.Save(ctx, entries)
	elapsed := time.Since(start)
	e.metrics.ObserveSnapshot(len(entries), elapsed, err)

	if err != nil {
		if wasDirty {
			e.dirty.Store(true)
		}
		return nil, err
	}

	e.logger.Debug("snapshot written",
		"entries", info.Entries,
		"size", info.Size,
		"elapsed", elapsed)
	return info, nil
}

type nopReplicator struct{}

func (nopReplicator) Enqueue(string, string)      {}
func (nopReplicator) Close(context.Context) error { return nil }

type nopAudit struct{}

func (nopAudit) Record(context.Context, string, string) {}
func (nopAudit) Close() error                           { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration) {}
func (nopMetrics) ObserveSnapshot(int, time.Duration, error)      {}
