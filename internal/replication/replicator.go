package replication

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 1
	DefaultTimeout   = 2 * time.Second
)

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("replication: closed")

// Config configures the replicator.
type Config struct {
	// Follower is the base URL of the follower, e.g. http://127.0.0.1:8081.
	// Empty disables replication.
	Follower string

	// QueueSize bounds the number of pending writes.
	QueueSize int

	// Workers is the number of goroutines sending to the follower.
	Workers int

	// Timeout bounds each request to the follower.
	Timeout time.Duration

	// RateLimit caps requests per second across all workers. 0 is unlimited.
	RateLimit float64

	// APIKey is sent in the Authorization header when set.
	APIKey string

	// Client overrides the HTTP client. Its Timeout is ignored; Timeout
	// above is applied per request.
	Client *http.Client

	Logger  *slog.Logger
	Metrics Metrics
}

// DefaultConfig returns the default configuration for follower.
func DefaultConfig(follower string) Config {
	return Config{
		Follower:  follower,
		QueueSize: DefaultQueueSize,
		Workers:   DefaultWorkers,
		Timeout:   DefaultTimeout,
	}
}

// Metrics receives replication outcomes.
type Metrics interface {
	ReplicationSent()
	ReplicationFailed()
	ReplicationDropped()
	ReplicationQueueDepth(n int)
}

type nopMetrics struct{}

func (nopMetrics) ReplicationSent()          {}
func (nopMetrics) ReplicationFailed()        {}
func (nopMetrics) ReplicationDropped()       {}
func (nopMetrics) ReplicationQueueDepth(int) {}

// Stats is a snapshot of replicator counters.
type Stats struct {
	Enabled bool   `json:"enabled"`
	Queued  int    `json:"queued"`
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

type item struct {
	key   string
	value string
}

// Replicator forwards writes to a follower on a best-effort basis.
//
// Enqueue never blocks: when the queue is full the write is dropped.
// Failed sends are logged and counted, never retried. There is no
// acknowledgement or ordering guarantee toward the follower.
type Replicator struct {
	cfg      Config
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan item

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// New creates a replicator and starts its workers.
// With an empty follower the returned replicator is disabled.
func New(cfg Config) (*Replicator, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}

	r := &Replicator{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "replication"),
		metrics: cfg.Metrics,
	}
	if cfg.Follower == "" {
		return r, nil
	}

	u, err := url.Parse(cfg.Follower)
	if err != nil {
		return nil, fmt.Errorf("replication: parse follower: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("replication: follower must be an absolute http(s) URL, got %q", cfg.Follower)
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	r.cfg = cfg

	r.endpoint = strings.TrimRight(cfg.Follower, "/") + "/set/"
	r.client = cfg.Client
	if r.client == nil {
		r.client = &http.Client{}
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	r.queue = make(chan item, cfg.QueueSize)
	r.ctx, r.cancel = context.WithCancel(context.Background())

	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	r.logger.Info("replication enabled",
		"follower", cfg.Follower,
		"queue_size", cfg.QueueSize,
		"workers", cfg.Workers)

	return r, nil
}

// Enabled reports whether a follower is configured.
func (r *Replicator) Enabled() bool {
	return r.queue != nil
}

// Enqueue schedules key/value for replication without blocking.
func (r *Replicator) Enqueue(key, value string) {
	if !r.Enabled() {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- item{key: key, value: value}:
		r.metrics.ReplicationQueueDepth(len(r.queue))
	default:
		r.dropped.Add(1)
		r.metrics.ReplicationDropped()
		r.logger.Warn("replication queue full, dropping write", "key", key)
	}
}

// Stats returns the current counters.
func (r *Replicator) Stats() Stats {
	s := Stats{
		Enabled: r.Enabled(),
		Sent:    r.sent.Load(),
		Failed:  r.failed.Load(),
		Dropped: r.dropped.Load(),
	}
	if r.queue != nil {
		s.Queued = len(r.queue)
	}
	return s
}

// Close stops accepting writes and drains the queue until ctx is done.
// Items still queued when ctx expires are dropped.
func (r *Replicator) Close(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return fmt.Errorf("replication: drain: %w", ctx.Err())
	}
}

func (r *Replicator) worker() {
	defer r.wg.Done()

	for it := range r.queue {
		r.metrics.ReplicationQueueDepth(len(r.queue))

		if r.ctx.Err() != nil {
			r.dropped.Add(1)
			r.metrics.ReplicationDropped()
			continue
		}

		if err := r.send(r.ctx, it); err != nil {
			r.failed.Add(1)
			r.metrics.ReplicationFailed()
			r.logger.Warn("replication failed", "key", it.key, "error", err)
			continue
		}
		r.sent.Add(1)
		r.metrics.ReplicationSent()
	}
}

func (r *Replicator) send(ctx context.Context, it item) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	target := r.endpoint + url.PathEscape(it.key) + "/" + url.PathEscape(it.value)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("follower returned %s", resp.Status)
	}
	return nil
}
