package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/internal/infra/confloader"
	"github.com/yndnr/kvmesh-go/internal/infra/shutdown"
	"github.com/yndnr/kvmesh-go/internal/replication"
	"github.com/yndnr/kvmesh-go/internal/server/config"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver"
	"github.com/yndnr/kvmesh-go/internal/server/redisserver"
	"github.com/yndnr/kvmesh-go/internal/storage"
	"github.com/yndnr/kvmesh-go/internal/telemetry/audit"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

// limiterIdle is how long a client's rate limiter is kept unused.
const limiterIdle = 10 * time.Minute

func main() {
	app := &cli.App{
		Name:    "kvmesh-server",
		Usage:   "sharded in-memory key-value server",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"KVMESH_CONFIG"},
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"), os.Stdout, nil)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// listeners reports bound addresses once the server is serving.
type listeners struct {
	HTTP  string
	Redis string
}

// run starts the server and blocks until a signal or ctx cancellation
// has shut it down. ready, when non-nil, receives the bound addresses.
func run(ctx context.Context, configFile string, logOut io.Writer, ready chan<- listeners) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting kvmesh-server",
		"version", buildinfo.Version,
		"config", configFile,
		"settings", config.Sanitize(cfg),
	)

	metrics := metric.NewRegistry()

	engine, replicator, err := initStorage(ctx, cfg, metrics, log)
	if err != nil {
		return err
	}

	sh := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log)
	sh.OnShutdown("storage", func(context.Context) error {
		return engine.Close()
	})

	auth, err := service.NewAuthenticator(service.AuthConfig{
		APIKey:     cfg.Security.APIKey,
		APIKeyHash: cfg.Security.APIKeyHash,
	})
	if err != nil {
		sh.Shutdown()
		return fmt.Errorf("init authenticator: %w", err)
	}
	if !auth.Enabled() {
		log.Warn("authentication disabled, set security.api_key or security.api_key_hash")
	}

	var limiter *service.RateLimiterRegistry
	if cfg.Server.HTTP.RateLimit > 0 {
		limiter = service.NewRateLimiterRegistry(cfg.Server.HTTP.RateLimit)
		pruneCtx, cancelPrune := context.WithCancel(context.Background())
		go pruneLimiters(pruneCtx, limiter, log)
		sh.OnShutdown("rate limiter", func(context.Context) error {
			cancelPrune()
			return nil
		})
	}

	var ls listeners

	httpSrv, err := startHTTP(cfg, engine, replicator, auth, limiter, metrics, log)
	if err != nil {
		sh.Shutdown()
		return err
	}
	sh.OnShutdown("http server", httpSrv.Shutdown)
	ls.HTTP = httpSrv.Addr()

	if cfg.Server.Redis.Enabled {
		redisSrv, err := startRedis(ctx, cfg, engine, auth, limiter, log)
		if err != nil {
			sh.Shutdown()
			return err
		}
		sh.OnShutdown("redis server", redisSrv.Shutdown)
		ls.Redis = redisSrv.Addr()
	}

	if configFile != "" {
		stop, err := watchConfig(configFile, log)
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else {
			sh.OnShutdown("config watcher", func(context.Context) error {
				stop()
				return nil
			})
		}
	}

	if ready != nil {
		ready <- ls
	}

	log.Info("server started", "http_addr", ls.HTTP, "redis_addr", ls.Redis)
	if err := sh.Wait(ctx); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// initStorage builds the engine with its collaborators and recovers the
// last snapshot before the persistence loop starts.
func initStorage(ctx context.Context, cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger) (*storage.Engine, *replication.Replicator, error) {
	replCfg, err := cfg.ReplicationConfig(log)
	if err != nil {
		return nil, nil, err
	}
	replCfg.Metrics = metrics
	replicator, err := replication.New(replCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init replication: %w", err)
	}

	auditLog, err := audit.Open(cfg.AuditPath(), log)
	if err != nil {
		replicator.Close(context.Background())
		return nil, nil, err
	}

	engineCfg := cfg.EngineConfig(log)
	engineCfg.Replicator = replicator
	engineCfg.Audit = auditLog
	engineCfg.Metrics = metrics
	engineCfg.Registerer = metrics.Registerer()

	engine, err := storage.New(engineCfg)
	if err != nil {
		replicator.Close(context.Background())
		auditLog.Close()
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	if err := metrics.RegisterShardCollector(engine); err != nil {
		engine.Close()
		return nil, nil, fmt.Errorf("register shard metrics: %w", err)
	}

	if err := engine.Recover(ctx); err != nil {
		engine.Close()
		return nil, nil, fmt.Errorf("storage recovery: %w", err)
	}
	engine.Start()

	return engine, replicator, nil
}

func startHTTP(
	cfg *config.ServerConfig,
	engine *storage.Engine,
	replicator *replication.Replicator,
	auth *service.Authenticator,
	limiter *service.RateLimiterRegistry,
	metrics *metric.Registry,
	log *slog.Logger,
) (*httpserver.Server, error) {
	h, err := httpserver.NewRouter(httpserver.RouterConfig{
		Store:          engine,
		Replication:    replicator,
		Authenticator:  auth,
		RateLimiter:    limiter,
		Metrics:        metrics,
		MetricsAuth:    cfg.Server.HTTP.MetricsAuth,
		AdminAllowList: cfg.Server.HTTP.AdminAllowList,
		TrustProxy:     cfg.Server.HTTP.TrustProxy,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("init http router: %w", err)
	}

	srv, err := httpserver.New(httpserver.Config{
		Addr:        cfg.Server.HTTP.Addr,
		Handler:     h,
		TLSCertFile: cfg.Server.HTTP.TLSCertFile,
		TLSKeyFile:  cfg.Server.HTTP.TLSKeyFile,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("init http server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return nil, err
	}

	go func() {
		if err := srv.Serve(); err != nil {
			log.Error("HTTP server error", "error", err)
		}
	}()
	return srv, nil
}

func startRedis(
	ctx context.Context,
	cfg *config.ServerConfig,
	engine *storage.Engine,
	auth *service.Authenticator,
	limiter *service.RateLimiterRegistry,
	log *slog.Logger,
) (*redisserver.Server, error) {
	handler := redisserver.NewCommandHandler(engine, auth, limiter, log)
	srv := redisserver.New(redisserver.DefaultConfig(cfg.Server.Redis.Addr), handler, log)
	if err := srv.Listen(); err != nil {
		return nil, fmt.Errorf("redis listen: %w", err)
	}

	go func() {
		if err := srv.Serve(context.WithoutCancel(ctx)); err != nil {
			log.Error("Redis server error", "error", err)
		}
	}()
	return srv, nil
}

// watchConfig applies log.level changes from the config file until the
// returned stop function is called.
func watchConfig(path string, log *slog.Logger) (stop func(), err error) {
	w, err := confloader.NewWatcher(path, confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func() {
			cfg, err := config.Load(path)
			if err != nil {
				log.Warn("ignoring invalid configuration change", "error", err)
				return
			}
			before := logger.GetLevel()
			if err := logger.SetLevel(cfg.Log.Level); err != nil {
				log.Warn("ignoring log level change", "error", err)
				return
			}
			if after := logger.GetLevel(); after != before {
				log.Info("log level changed", "from", before, "to", after)
			}
		})
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func pruneLimiters(ctx context.Context, limiter *service.RateLimiterRegistry, log *slog.Logger) {
	ticker := time.NewTicker(limiterIdle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Prune(limiterIdle); n > 0 {
				log.Debug("pruned idle rate limiters", "count", n, "remaining", limiter.Len())
			}
		}
	}
}
