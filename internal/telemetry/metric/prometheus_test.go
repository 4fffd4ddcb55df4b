package metric

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/kvmesh-go/internal/storage/shard"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.StoreOperations == nil || r.StoreDuration == nil {
		t.Error("store metrics are nil")
	}
	if r.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if r.Registerer() == nil {
		t.Error("Registerer() is nil")
	}
}

func TestHandler(t *testing.T) {
	body := scrape(t, NewRegistry().Handler())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestStoreMetrics(t *testing.T) {
	r := NewRegistry()

	r.ObserveOperation("set", "ok", time.Microsecond)
	r.ObserveOperation("set", "ok", time.Microsecond)
	r.ObserveOperation("get", "not_found", time.Microsecond)

	body := scrape(t, r.Handler())

	for _, want := range []string{
		`kvmesh_store_operations_total{op="set",result="ok"} 2`,
		`kvmesh_store_operations_total{op="get",result="not_found"} 1`,
		`kvmesh_store_operation_duration_seconds_count{op="set"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestSnapshotMetrics(t *testing.T) {
	r := NewRegistry()

	r.ObserveSnapshot(42, time.Millisecond, nil)
	r.ObserveSnapshot(7, time.Millisecond, errors.New("disk full"))

	body := scrape(t, r.Handler())

	if !strings.Contains(body, "kvmesh_snapshot_entries 42") {
		t.Error("failed snapshot must not overwrite the entries gauge")
	}
	if !strings.Contains(body, "kvmesh_snapshot_failures_total 1") {
		t.Error("expected kvmesh_snapshot_failures_total 1")
	}
	if !strings.Contains(body, "kvmesh_snapshot_duration_seconds_count 2") {
		t.Error("expected kvmesh_snapshot_duration_seconds_count 2")
	}
}

func TestReplicationMetrics(t *testing.T) {
	r := NewRegistry()

	r.ReplicationSent()
	r.ReplicationSent()
	r.ReplicationFailed()
	r.ReplicationDropped()
	r.ReplicationQueueDepth(5)

	body := scrape(t, r.Handler())

	for _, want := range []string{
		"kvmesh_replication_sent_total 2",
		"kvmesh_replication_failed_total 1",
		"kvmesh_replication_dropped_total 1",
		"kvmesh_replication_queue_depth 5",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestRequestMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordRequest("GET", "200")
	r.RecordRequest("GET", "200")
	r.RecordRequest("POST", "409")

	body := scrape(t, r.Handler())

	if !strings.Contains(body, `kvmesh_http_requests_total{code="200",method="GET"} 2`) {
		t.Error(`expected kvmesh_http_requests_total{code="200",method="GET"} 2`)
	}
	if !strings.Contains(body, `kvmesh_http_requests_total{code="409",method="POST"} 1`) {
		t.Error(`expected kvmesh_http_requests_total{code="409",method="POST"} 1`)
	}
}

type fakeStats []shard.Stats

func (f fakeStats) Stats() []shard.Stats { return f }

func TestShardCollector(t *testing.T) {
	r := NewRegistry()
	src := fakeStats{{Active: 3, Capacity: 8}, {Active: 0, Capacity: 8}}

	if err := r.RegisterShardCollector(src); err != nil {
		t.Fatalf("RegisterShardCollector: %v", err)
	}

	body := scrape(t, r.Handler())

	for _, want := range []string{
		`kvmesh_shard_active_entries{shard="0"} 3`,
		`kvmesh_shard_active_entries{shard="1"} 0`,
		`kvmesh_shard_capacity{shard="0"} 8`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}

	if err := r.RegisterShardCollector(src); err == nil {
		t.Error("registering a second shard collector should fail")
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.ObserveOperation("set", "ok", time.Microsecond)
				r.ReplicationSent()
				r.RecordRequest("GET", "200")
			}
		}()
	}
	wg.Wait()

	body := scrape(t, r.Handler())
	if !strings.Contains(body, `kvmesh_store_operations_total{op="set",result="ok"} 1000`) {
		t.Error("expected 1000 set operations")
	}
}
