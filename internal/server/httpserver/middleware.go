package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds inbound request IDs that are echoed back.
const maxRequestIDLength = 128

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware is the
// outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestRecorder counts completed requests.
type RequestRecorder interface {
	RecordRequest(method, code string)
}

// RequestID honours an inbound X-Request-ID or generates "req-<ulid>",
// echoes it and stores it in the request context.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = "req-" + ulid.Make().String()
			}

			w.Header().Set(RequestIDHeader, requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthConfig configures the Auth middleware.
type AuthConfig struct {
	Authenticator *service.Authenticator

	// SkipPaths are exact paths served without a key.
	SkipPaths []string
}

// Auth rejects requests without a valid API key. The key is read from
// "Authorization: Bearer <key>", a raw "Authorization: <key>" or X-API-Key.
func Auth(cfg AuthConfig) Middleware {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		if !cfg.Authenticator.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if err := cfg.Authenticator.Authenticate(extractAPIKey(r)); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="kvmesh"`)
				writeDomainError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per client IP rate limiting.
func RateLimit(limiters *service.RateLimiterRegistry, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.Allow(getClientIP(r, trustProxy)) {
				w.Header().Set("Retry-After", "1")
				writeDomainError(w, r, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs every completed request and reports it to rec when set.
func AccessLog(log *slog.Logger, rec RequestRecorder, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			if rec != nil {
				rec.RecordRequest(r.Method, strconv.Itoa(wrapped.statusCode))
			}

			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", getClientIP(r, trustProxy),
			}

			switch {
			case wrapped.statusCode >= 500:
				log.ErrorContext(r.Context(), "request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.WarnContext(r.Context(), "request completed with client error", attrs...)
			default:
				log.DebugContext(r.Context(), "request completed", attrs...)
			}
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.ErrorContext(r.Context(), "panic recovered",
						"request_id", logger.RequestIDFromContext(r.Context()),
						"error", err,
						"path", r.URL.Path,
					)
					writeDomainError(w, r, domain.ErrInternalServer)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// NetworkACLConfig holds configuration for network ACL middleware.
type NetworkACLConfig struct {
	// AllowList is the list of allowed IP/CIDR entries.
	// Empty list means no restriction.
	AllowList []string

	// TrustProxy makes X-Forwarded-For and X-Real-IP authoritative.
	TrustProxy bool

	Logger *slog.Logger
}

// NetworkACL rejects clients whose IP is not in the allowlist.
func NetworkACL(cfg NetworkACLConfig) (Middleware, error) {
	var networks []*net.IPNet
	var errs []error

	for _, entry := range cfg.AllowList {
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil {
				bits := 8 * len(ip.To16())
				if ip.To4() != nil {
					ip, bits = ip.To4(), 32
				}
				networks = append(networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
			errs = append(errs, errors.New("invalid IP in allowlist: "+entry))
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		networks = append(networks, ipNet)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		if len(networks) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r, cfg.TrustProxy)
			if ip := net.ParseIP(clientIP); ip != nil {
				for _, n := range networks {
					if n.Contains(ip) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			if cfg.Logger != nil {
				cfg.Logger.WarnContext(r.Context(), "request denied by network ACL",
					"client_ip", clientIP,
					"path", r.URL.Path,
				)
			}
			writeDomainError(w, r, domain.ErrForbidden.WithDetails("IP not in allowlist"))
		})
	}, nil
}

// extractAPIKey returns the API key presented by the client.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
			return strings.TrimSpace(auth[7:])
		}
		return strings.TrimSpace(auth)
	}
	return r.Header.Get("X-API-Key")
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeDomainError writes err in the standard envelope.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.ErrInternalServer
	}
	var details any
	if de.Details != "" {
		details = de.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", de.Code)
	w.WriteHeader(domain.HTTPStatus(de))
	json.NewEncoder(w).Encode(handler.NewErrorResponse(
		logger.RequestIDFromContext(r.Context()), de.Code, de.Message, details))
}

// getClientIP extracts the client IP from the request. Proxy headers are
// only consulted when trustProxy is set.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	// net.SplitHostPort handles IPv6 addresses like [::1]:8080
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
