package redisserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Config holds the Redis server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string

	// TLSConfig enables TLS when set.
	TLSConfig *tls.Config

	// ReadTimeout bounds reading one command once its first byte arrived.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a reply.
	WriteTimeout time.Duration

	// IdleTimeout closes connections idle between commands.
	IdleTimeout time.Duration
}

// DefaultConfig returns the default configuration for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
	}
}

// Server represents the Redis protocol server.
type Server struct {
	cfg     Config
	handler *CommandHandler
	logger  *slog.Logger

	ln      net.Listener
	closing atomic.Bool
	wg      sync.WaitGroup

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// Conn represents a single Redis client connection.
type Conn struct {
	id      string
	netConn net.Conn
	br      *bufio.Reader
	reply   *Reply

	authenticated atomic.Bool
	quit          bool
	closeOnce     sync.Once
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		id:      "conn-" + ulid.Make().String(),
		netConn: c,
		br:      bufio.NewReader(c),
		reply:   NewReply(bufio.NewWriter(c)),
	}
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.netConn.Close()
	})
	return err
}

// RemoteAddr returns the client address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Authenticated reports whether AUTH succeeded on this connection.
func (c *Conn) Authenticated() bool {
	return c.authenticated.Load()
}

func (c *Conn) setAuthenticated(ok bool) {
	c.authenticated.Store(ok)
}

func (c *Conn) clientIP() string {
	return hostOf(c.RemoteAddr())
}

// New creates a new Redis protocol server.
func New(cfg Config, handler *CommandHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig(cfg.Addr)
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}

	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "redis"),
		conns:   make(map[*Conn]struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("redisserver: listen %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, s.cfg.TLSConfig)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

// Serve accepts connections until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.logger.Info("redis server listening",
		"addr", s.Addr(),
		"tls", s.cfg.TLSConfig != nil,
	)

	var tempDelay time.Duration
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else if tempDelay *= 2; tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.logger.Warn("accept error, retrying", "error", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		conn := newConn(c)
		if !s.track(conn) {
			conn.Close()
			return nil
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

// Shutdown stops accepting connections, closes open ones and waits for
// their goroutines to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	var err error
	if s.ln != nil {
		if cerr := s.ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Server) track(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer c.Close()

	log := s.logger.With("conn_id", c.id, "remote", c.RemoteAddr().String())
	log.Debug("connection opened")
	defer log.Debug("connection closed")

	for {
		// Idle connections may wait up to IdleTimeout for the next command.
		if err := c.netConn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug("connection read error", "error", err)
			}
			return
		}

		// Once a command started it must arrive within ReadTimeout.
		if err := c.netConn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return
		}

		args, err := ReadCommand(c.br)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Debug("connection timed out")
				return
			}
			if errors.Is(err, ErrLimitExceeded) {
				log.Warn("protocol limit exceeded", "error", err)
				c.reply.Error("ERR protocol limit exceeded")
			} else {
				c.reply.Error("ERR Protocol error: " + err.Error())
			}
			s.flush(c)
			return
		}
		if len(args) == 0 {
			continue
		}

		s.handler.Handle(ctx, c, args)

		if !s.flush(c) || c.quit {
			return
		}
	}
}

func (s *Server) flush(c *Conn) bool {
	if err := c.netConn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return false
	}
	return c.reply.Flush() == nil
}
