package connection

import (
	"encoding/json"
	"fmt"
)

// Envelope is the server's response wrapper.
type Envelope struct {
	Code      string          `json:"code" yaml:"code"`
	Message   string          `json:"message" yaml:"message"`
	RequestID string          `json:"request_id" yaml:"request_id"`
	Timestamp int64           `json:"timestamp" yaml:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// KV is a key and its value.
type KV struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// ShardStats is the occupancy of one shard.
type ShardStats struct {
	Active   int `json:"active" yaml:"active"`
	Capacity int `json:"capacity" yaml:"capacity"`
}

// ReplicationStats mirrors the server's replication counters.
type ReplicationStats struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Queued  int    `json:"queued" yaml:"queued"`
	Sent    uint64 `json:"sent" yaml:"sent"`
	Failed  uint64 `json:"failed" yaml:"failed"`
	Dropped uint64 `json:"dropped" yaml:"dropped"`
}

// BuildInfo identifies the server binary.
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Status is the data of GET /admin/v1/status.
type Status struct {
	Status        string            `json:"status" yaml:"status"`
	Ready         bool              `json:"ready" yaml:"ready"`
	Entries       int               `json:"entries" yaml:"entries"`
	Capacity      int               `json:"capacity" yaml:"capacity"`
	Shards        []ShardStats      `json:"shards" yaml:"shards"`
	Replication   *ReplicationStats `json:"replication,omitempty" yaml:"replication,omitempty"`
	Build         BuildInfo         `json:"build" yaml:"build"`
	UptimeSeconds int64             `json:"uptime_seconds" yaml:"uptime_seconds"`
}

// SnapshotInfo describes a written snapshot.
type SnapshotInfo struct {
	Path      string `json:"path" yaml:"path"`
	Entries   int    `json:"entries" yaml:"entries"`
	Size      int64  `json:"size" yaml:"size"`
	CreatedAt int64  `json:"created_at" yaml:"created_at"`
	Checksum  string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// Probe is the data of /health and /ready.
type Probe struct {
	Status string `json:"status" yaml:"status"`
	Time   string `json:"time" yaml:"time"`
}
