package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/yndnr/kvmesh-go/internal/infra/tlsroots"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
)

// Config configures a Server.
type Config struct {
	Addr    string
	Handler http.Handler

	// TLSCertFile and TLSKeyFile enable HTTPS. The pair is reloaded when
	// either file changes.
	TLSCertFile string
	TLSKeyFile  string

	Logger *slog.Logger
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	certs      *tlsroots.Watcher
	logger     *slog.Logger
}

// New creates a new HTTP server. With TLS configured it loads the key
// pair immediately.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           cfg.Handler,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
			ErrorLog:          slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
		},
		logger: cfg.Logger,
	}

	if cfg.TLSCertFile != "" {
		certs, err := tlsroots.NewWatcher(cfg.TLSCertFile, cfg.TLSKeyFile,
			tlsroots.WithLogger(cfg.Logger))
		if err != nil {
			return nil, fmt.Errorf("httpserver: %w", err)
		}
		s.certs = certs
		s.httpServer.TLSConfig = certs.ServerConfig()
	}

	return s, nil
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// TLS reports whether the server speaks HTTPS.
func (s *Server) TLS() bool {
	return s.certs != nil
}

// Serve accepts connections until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.logger.Info("http server listening",
		"addr", s.Addr(),
		"tls", s.TLS(),
	)

	var err error
	if s.TLS() {
		// Certificates come from TLSConfig.GetCertificate.
		err = s.httpServer.ServeTLS(s.listener, "", "")
	} else {
		err = s.httpServer.Serve(s.listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.certs != nil {
		err = errors.Join(err, s.certs.Stop())
	}
	return err
}
