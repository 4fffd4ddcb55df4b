package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/internal/infra/tlsroots"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// maxResponseSize bounds the body read from the server.
const maxResponseSize = 4 << 20

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	Server  string
	APIKey  string
	Timeout time.Duration

	// CAFile adds a PEM CA to the system roots for https servers.
	CAFile string

	// Insecure skips certificate verification.
	Insecure bool
}

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new HTTP client. A server without a scheme is
// treated as http.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(cfg.Server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", cfg.Server, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{Timeout: timeout}
	if strings.HasPrefix(baseURL, "https://") {
		tlsConfig, err := tlsroots.ClientConfig(tlsroots.ClientOptions{
			CAFile:   cfg.CAFile,
			Insecure: cfg.Insecure,
		})
		if err != nil {
			return nil, err
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		client.Transport = transport
	}

	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  client,
	}, nil
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// TLSConfig returns the TLS configuration used for https servers, or nil.
func (c *HTTPClient) TLSConfig() *tls.Config {
	if t, ok := c.client.Transport.(*http.Transport); ok {
		return t.TLSClientConfig
	}
	return nil
}

// Get fetches key.
func (c *HTTPClient) Get(ctx context.Context, key string) (*KV, error) {
	var kv KV
	if _, err := c.do(ctx, http.MethodGet, "/get/"+url.PathEscape(key), nil, &kv); err != nil {
		return nil, err
	}
	return &kv, nil
}

// Set stores value under key through PUT /kv/{key}, so values may
// contain any character.
func (c *HTTPClient) Set(ctx context.Context, key, value string) (*KV, error) {
	body := struct {
		Value string `json:"value"`
	}{Value: value}

	var kv KV
	if _, err := c.do(ctx, http.MethodPut, "/kv/"+url.PathEscape(key), body, &kv); err != nil {
		return nil, err
	}
	return &kv, nil
}

// Delete removes key. Deleting a missing key succeeds.
func (c *HTTPClient) Delete(ctx context.Context, key string) error {
	_, err := c.do(ctx, http.MethodDelete, "/delete/"+url.PathEscape(key), nil, nil)
	return err
}

// Status fetches GET /admin/v1/status.
func (c *HTTPClient) Status(ctx context.Context) (*Status, error) {
	var st Status
	if _, err := c.do(ctx, http.MethodGet, "/admin/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Snapshot asks the server to write a snapshot now.
func (c *HTTPClient) Snapshot(ctx context.Context) (*SnapshotInfo, error) {
	var info SnapshotInfo
	if _, err := c.do(ctx, http.MethodPost, "/admin/v1/snapshots", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Probe calls /health or /ready and returns the reported status.
func (c *HTTPClient) Probe(ctx context.Context, path string) (*Probe, error) {
	var p Probe
	if _, err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// do sends one request and decodes the envelope data into target.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, target any) (*Envelope, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	return ParseResponse(resp, target)
}

// addHeaders adds authentication and common headers.
func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent("kvmesh-cli"))
}

// ParseResponse decodes the response envelope and closes the body. The
// envelope data is decoded into target when target is non-nil. Non-2xx
// responses return *APIError.
func ParseResponse(resp *http.Response, target any) (*Envelope, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &env, &APIError{
			Status:    resp.StatusCode,
			Code:      env.Code,
			Message:   env.Message,
			RequestID: env.RequestID,
		}
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return &env, fmt.Errorf("parse response data: %w", err)
		}
	}
	return &env, nil
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
