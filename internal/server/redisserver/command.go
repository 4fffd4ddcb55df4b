package redisserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

// maxKeysPerCommand bounds DEL and EXISTS.
const maxKeysPerCommand = 1000

// Store is the subset of the storage engine the Redis commands use.
type Store interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool
	Count() int
}

// formatRedisError converts an error to a Redis error string.
// For DomainErrors, returns "ERR <code> <message>".
func formatRedisError(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return "ERR " + de.Code + " " + de.Message
	}
	return "ERR " + domain.ErrInternalServer.Code + " " + domain.ErrInternalServer.Message
}

func wrongArgs(cmd string) string {
	return "ERR wrong number of arguments for '" + strings.ToLower(cmd) + "' command"
}

// CommandHandler executes Redis commands against a Store.
type CommandHandler struct {
	store   Store
	auth    *service.Authenticator
	limiter *service.RateLimiterRegistry
	logger  *slog.Logger
}

// NewCommandHandler creates a new CommandHandler. auth and limiter may be
// nil.
func NewCommandHandler(store Store, auth *service.Authenticator, limiter *service.RateLimiterRegistry, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHandler{
		store:   store,
		auth:    auth,
		limiter: limiter,
		logger:  logger,
	}
}

// Handle executes one command and writes its reply to conn.
func (h *CommandHandler) Handle(ctx context.Context, conn *Conn, args [][]byte) {
	rep := conn.reply
	if len(args) == 0 {
		rep.Error("ERR no command")
		return
	}

	cmd := normalizeCommandName(args[0])
	ctx = logger.WithRequestID(ctx, conn.id)

	// Connection commands work before AUTH.
	switch cmd {
	case "PING":
		h.handlePing(rep, args)
		return
	case "AUTH":
		h.handleAuth(conn, args)
		return
	case "QUIT":
		rep.Status("OK")
		conn.quit = true
		return
	}

	if h.auth.Enabled() && !conn.Authenticated() {
		rep.Error("NOAUTH Authentication required.")
		return
	}

	if h.limiter != nil && !h.limiter.Allow(conn.clientIP()) {
		rep.Error(formatRedisError(domain.ErrRateLimited))
		return
	}

	switch cmd {
	case "GET":
		h.handleGet(ctx, rep, args)
	case "SET":
		h.handleSet(ctx, rep, args)
	case "DEL":
		h.handleDel(ctx, rep, args)
	case "EXISTS":
		h.handleExists(ctx, rep, args)
	case "DBSIZE":
		if len(args) != 1 {
			rep.Error(wrongArgs(cmd))
			return
		}
		rep.Int(int64(h.store.Count()))
	case "SELECT":
		h.handleSelect(rep, args)
	case "COMMAND":
		// Clients probe COMMAND DOCS on connect; an empty reply is accepted.
		rep.ArrayHeader(0)
	default:
		rep.Error("ERR unknown command '" + string(args[0]) + "'")
	}
}

func (h *CommandHandler) handlePing(rep *Reply, args [][]byte) {
	switch len(args) {
	case 1:
		rep.Status("PONG")
	case 2:
		rep.Bulk(string(args[1]))
	default:
		rep.Error(wrongArgs("PING"))
	}
}

// handleAuth handles AUTH <key> and AUTH <username> <key>. The username is
// ignored.
func (h *CommandHandler) handleAuth(conn *Conn, args [][]byte) {
	rep := conn.reply

	var key string
	switch len(args) {
	case 2:
		key = string(args[1])
	case 3:
		key = string(args[2])
	default:
		rep.Error(wrongArgs("AUTH"))
		return
	}

	if !h.auth.Enabled() {
		rep.Error("ERR AUTH called without any password configured")
		return
	}

	if err := h.auth.Authenticate(key); err != nil {
		h.logger.Warn("redis authentication failed",
			"conn_id", conn.id,
			"remote", conn.RemoteAddr().String(),
		)
		conn.setAuthenticated(false)
		rep.Error("WRONGPASS " + domain.ErrUnauthorized.Code + " " + domain.ErrUnauthorized.Message)
		return
	}

	conn.setAuthenticated(true)
	rep.Status("OK")
}

// GET <key>
func (h *CommandHandler) handleGet(ctx context.Context, rep *Reply, args [][]byte) {
	if len(args) != 2 {
		rep.Error(wrongArgs("GET"))
		return
	}

	value, err := h.store.Get(ctx, string(args[1]))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			rep.Null()
			return
		}
		rep.Error(formatRedisError(err))
		return
	}
	rep.Bulk(value)
}

// SET <key> <value>. Expiry and conditional options are not supported.
func (h *CommandHandler) handleSet(ctx context.Context, rep *Reply, args [][]byte) {
	if len(args) < 3 {
		rep.Error(wrongArgs("SET"))
		return
	}
	if len(args) > 3 {
		rep.Error("ERR syntax error")
		return
	}

	if err := h.store.Set(ctx, string(args[1]), string(args[2])); err != nil {
		rep.Error(formatRedisError(err))
		return
	}
	rep.Status("OK")
}

// DEL <key> [key ...] replies with the number of keys that existed.
func (h *CommandHandler) handleDel(ctx context.Context, rep *Reply, args [][]byte) {
	if len(args) < 2 {
		rep.Error(wrongArgs("DEL"))
		return
	}
	if len(args)-1 > maxKeysPerCommand {
		rep.Error(formatRedisError(domain.ErrBadRequest))
		return
	}

	var deleted int64
	for _, k := range args[1:] {
		key := string(k)
		if !h.store.Exists(ctx, key) {
			continue
		}
		if err := h.store.Delete(ctx, key); err != nil {
			rep.Error(formatRedisError(err))
			return
		}
		deleted++
	}
	rep.Int(deleted)
}

// EXISTS <key> [key ...] counts existing keys, repeats included.
func (h *CommandHandler) handleExists(ctx context.Context, rep *Reply, args [][]byte) {
	if len(args) < 2 {
		rep.Error(wrongArgs("EXISTS"))
		return
	}
	if len(args)-1 > maxKeysPerCommand {
		rep.Error(formatRedisError(domain.ErrBadRequest))
		return
	}

	var n int64
	for _, k := range args[1:] {
		if h.store.Exists(ctx, string(k)) {
			n++
		}
	}
	rep.Int(n)
}

// SELECT accepts only database 0.
func (h *CommandHandler) handleSelect(rep *Reply, args [][]byte) {
	if len(args) != 2 {
		rep.Error(wrongArgs("SELECT"))
		return
	}
	if string(args[1]) != "0" {
		rep.Error("ERR DB index is out of range")
		return
	}
	rep.Status("OK")
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
