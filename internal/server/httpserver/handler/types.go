package handler

import (
	"time"

	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/internal/replication"
	"github.com/yndnr/kvmesh-go/internal/storage/shard"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response. An empty message reads "Success".
func NewResponse(requestID, message string, data any) *Response {
	if message == "" {
		message = "Success"
	}
	return &Response{
		Code:      "OK",
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// KVResponse is the data of GET /get/{key} and of successful sets.
type KVResponse struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// PutRequest is the request body for PUT /kv/{key}.
type PutRequest struct {
	Value *string `json:"value"`
}

// StatusResponse is the data of GET /admin/v1/status.
type StatusResponse struct {
	Status        string             `json:"status"`
	Ready         bool               `json:"ready"`
	Entries       int                `json:"entries"`
	Capacity      int                `json:"capacity"`
	Shards        []shard.Stats      `json:"shards"`
	Replication   *replication.Stats `json:"replication,omitempty"`
	Build         buildinfo.Info     `json:"build"`
	UptimeSeconds int64              `json:"uptime_seconds"`
}
