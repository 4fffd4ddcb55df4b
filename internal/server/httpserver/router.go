package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Store serves the key-value routes.
	Store handler.Store

	// Replication is reported by /admin/v1/status when set.
	Replication handler.ReplicationStats

	// Authenticator checks API keys. Nil or disabled means no auth.
	Authenticator *service.Authenticator

	// RateLimiter limits requests per client IP. Nil disables it.
	RateLimiter *service.RateLimiterRegistry

	// Metrics serves /metrics and counts requests. Nil disables both.
	Metrics *metric.Registry

	// MetricsAuth requires the API key on /metrics.
	MetricsAuth bool

	// AdminAllowList is the IP/CIDR allowlist for /admin/ (empty = no restriction).
	AdminAllowList []string

	// TrustProxy makes proxy headers the client address.
	TrustProxy bool

	Logger *slog.Logger
}

// publicPaths are served without an API key.
var publicPaths = []string{"/health", "/ready"}

// NewRouter creates and configures the HTTP router with all routes and
// middleware.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := handler.New(cfg.Store, handler.Options{
		Replication: cfg.Replication,
		Logger:      cfg.Logger,
	})

	acl, err := NetworkACL(NetworkACLConfig{
		AllowList:  cfg.AdminAllowList,
		TrustProxy: cfg.TrustProxy,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/admin/", acl(h))
	mux.Handle("/", h)

	skip := append([]string(nil), publicPaths...)
	var rec RequestRecorder
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
		rec = cfg.Metrics
		if !cfg.MetricsAuth {
			skip = append(skip, "/metrics")
		}
	}

	// Order: Recover -> RequestID -> AccessLog -> RateLimit -> Auth -> Handler
	middlewares := []Middleware{
		Recover(cfg.Logger),
		RequestID(),
		AccessLog(cfg.Logger, rec, cfg.TrustProxy),
	}
	if cfg.RateLimiter != nil {
		middlewares = append(middlewares, RateLimit(cfg.RateLimiter, cfg.TrustProxy))
	}
	middlewares = append(middlewares, Auth(AuthConfig{
		Authenticator: cfg.Authenticator,
		SkipPaths:     skip,
	}))

	return Chain(mux, middlewares...), nil
}
