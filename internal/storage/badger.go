package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
)

var (
	// metaGenerationKey holds the generation number of the current snapshot.
	metaGenerationKey = []byte("meta/generation")

	entryPrefix = []byte("e/")
)

// BadgerPersister stores snapshots in a Badger v3 database.
//
// Each Save writes the entries under a fresh generation prefix, then
// switches metaGenerationKey to it in one transaction and drops the
// previous generation. Load only reads the generation metaGenerationKey
// points at, so an interrupted Save leaves the previous snapshot in place.
type BadgerPersister struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	generation atomic.Uint64
	lastGCTime atomic.Int64 // Unix milliseconds

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerPersister opens (or creates) the Badger database in cfg.Dir.
func NewBadgerPersister(cfg BadgerConfig, logger *slog.Logger) (*BadgerPersister, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	opts.DetectConflicts = false
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	p := &BadgerPersister{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	gen, err := p.readGeneration()
	if err != nil {
		db.Close()
		return nil, err
	}
	p.generation.Store(gen)

	go p.gcLoop()

	logger.Info("badger persister started",
		"dir", cfg.Dir,
		"generation", gen,
		"gc_interval", cfg.GCInterval)

	return p, nil
}

func generationPrefix(gen uint64) []byte {
	prefix := make([]byte, 0, len(entryPrefix)+9)
	prefix = append(prefix, entryPrefix...)
	prefix = binary.BigEndian.AppendUint64(prefix, gen)
	return append(prefix, '/')
}

func (p *BadgerPersister) readGeneration() (uint64, error) {
	var gen uint64
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaGenerationKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("badger: corrupt generation value (%d bytes)", len(val))
			}
			gen = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("badger: read generation: %w", err)
	}
	return gen, nil
}

// Save implements Persister.
func (p *BadgerPersister) Save(_ context.Context, entries []domain.Entry) (*snapshot.Info, error) {
	now := time.Now()
	prev := p.generation.Load()
	next := prev + 1
	prefix := generationPrefix(next)

	// A previous failed Save may have left keys under next.
	if err := p.db.DropPrefix(prefix); err != nil {
		return nil, fmt.Errorf("badger: clear generation %d: %w", next, err)
	}

	wb := p.db.NewWriteBatch()
	for _, e := range entries {
		key := append(append([]byte(nil), prefix...), e.Key...)
		if err := wb.Set(key, []byte(e.Value)); err != nil {
			wb.Cancel()
			return nil, fmt.Errorf("badger: write entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("badger: flush batch: %w", err)
	}

	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaGenerationKey, binary.BigEndian.AppendUint64(nil, next))
	})
	if err != nil {
		return nil, fmt.Errorf("badger: switch generation: %w", err)
	}
	p.generation.Store(next)

	if prev > 0 {
		if err := p.db.DropPrefix(generationPrefix(prev)); err != nil {
			p.logger.Warn("badger: drop previous generation failed",
				"generation", prev,
				"error", err)
		}
	}

	lsm, vlog := p.db.Size()
	return &snapshot.Info{
		Path:      p.cfg.Dir,
		Entries:   len(entries),
		Size:      lsm + vlog,
		CreatedAt: now.UnixMilli(),
	}, nil
}

// Load implements Persister.
func (p *BadgerPersister) Load(_ context.Context) ([]domain.Entry, error) {
	gen := p.generation.Load()
	if gen == 0 {
		return nil, nil
	}
	prefix := generationPrefix(gen)

	var entries []domain.Entry
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, domain.Entry{
				Key:    string(item.Key()[len(prefix):]),
				Value:  string(value),
				Active: true,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: load generation %d: %w", gen, err)
	}
	return entries, nil
}

// GC runs value log GC until Badger reports nothing left to rewrite.
// It returns the number of rewritten value log files.
func (p *BadgerPersister) GC() (int, error) {
	rewrites := 0
	for {
		err := p.db.RunValueLogGC(p.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return rewrites, fmt.Errorf("gc: %w", err)
		}
		rewrites++
	}
	p.lastGCTime.Store(time.Now().UnixMilli())
	return rewrites, nil
}

// RegisterMetrics registers Badger size gauges with reg.
func (p *BadgerPersister) RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "kvmesh",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes",
		}, func() float64 {
			lsm, _ := p.db.Size()
			return float64(lsm)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "kvmesh",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes",
		}, func() float64 {
			_, vlog := p.db.Size()
			return float64(vlog)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "kvmesh",
			Subsystem: "badger",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix timestamp of the last Badger GC run",
		}, func() float64 {
			return float64(p.lastGCTime.Load()) / 1000.0
		}),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("badger: register metrics: %w", err)
		}
	}
	return nil
}

// Close stops the GC loop and closes the database.
func (p *BadgerPersister) Close() error {
	close(p.stopCh)
	<-p.doneCh

	if err := p.db.Close(); err != nil {
		return fmt.Errorf("badger: close db: %w", err)
	}
	p.logger.Info("badger persister closed")
	return nil
}

func (p *BadgerPersister) gcLoop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := p.GC(); err != nil {
				p.logger.Error("badger gc failed", "error", err)
			} else if n > 0 {
				p.logger.Debug("badger gc completed", "rewrites", n)
			}
		case <-p.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
