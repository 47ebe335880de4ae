package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sundayezeilo/linkpool/internal/cache"
	"github.com/sundayezeilo/linkpool/internal/config"
	"github.com/sundayezeilo/linkpool/internal/links"
	"github.com/sundayezeilo/linkpool/internal/migrate"
	"github.com/sundayezeilo/linkpool/internal/observability"
	"github.com/sundayezeilo/linkpool/internal/server"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DBPool  *pgxpool.Pool
	Cache   cache.ListCache
	Service links.Service
	Server  *server.Server
	Handler *links.Handler

	shutdownTracing observability.ShutdownFunc
	logOutput       io.Closer
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &App{Config: cfg}
	a.Logger, a.logOutput = setupLogger(cfg.App)

	a.Logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	if cfg.Observability.MetricsEnabled {
		observability.InitMetrics()
	}

	a.shutdownTracing, err = observability.InitTracing(ctx, cfg.Observability)
	if err != nil {
		a.Logger.Warn("tracing disabled", "error", err)
		a.shutdownTracing = nil
	}

	// Connect to database
	a.DBPool, err = connectDatabase(ctx, cfg, a.Logger)
	if err != nil {
		_ = a.Shutdown()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.Migrate {
		res, err := migrate.Up(ctx, a.DBPool)
		if err != nil {
			_ = a.Shutdown()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Logger.Info("migrations applied",
			"applied", len(res.AppliedFiles),
			"skipped", len(res.SkippedFiles),
		)
	}

	a.Cache, err = newListCache(ctx, cfg.Cache, a.Logger)
	if err != nil {
		_ = a.Shutdown()
		return nil, fmt.Errorf("failed to set up cache: %w", err)
	}

	var filter *cache.CodeFilter
	if cfg.Cache.BloomEnabled {
		filter = cache.NewCodeFilter(cfg.Cache.BloomExpectedItems, cfg.Cache.BloomFalsePositiveRate)
	}

	// Setup application dependencies
	repo := links.NewRepository(a.DBPool, nil)
	a.Service = links.NewService(repo, &links.ServiceConfig{
		ShortCodeLength:     cfg.Links.ShortCodeLength,
		ShortCodeMaxRetries: cfg.Links.ShortCodeRetries,
		PoolSize:            &cfg.Links.PoolSize,
		MatchMode:           links.MatchMode(cfg.Links.MatchMode),
		ReplenishOnDelete:   cfg.Links.ReplenishOnDelete,
		MaxBatchDelete:      cfg.Links.MaxBatchDeleteSize,
		Cache:               a.Cache,
		Filter:              filter,
		FilterRecheck:       cfg.Cache.BloomMissRecheck,
		Logger:              a.Logger,
	})

	if err := a.Service.WarmFilter(ctx); err != nil {
		_ = a.Shutdown()
		return nil, fmt.Errorf("failed to load short codes: %w", err)
	}

	a.Handler = links.NewHandler(links.HandlerConfig{
		Service: a.Service,
		Logger:  a.Logger,
		BaseURL: cfg.Server.BaseURL,
	})

	// Create server
	a.Server = server.New(cfg, a.Logger, a.Handler)

	a.Logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"pool_size", cfg.Links.PoolSize,
		"match_mode", cfg.Links.MatchMode,
		"cache_backend", cfg.Cache.Backend,
		"bloom_refresh_interval", cfg.Cache.BloomRefreshInterval,
	)

	return a, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go a.Service.RefreshFilter(refreshCtx, a.Config.Cache.BloomRefreshInterval)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown releases every resource New acquired. It is safe to call on a
// partially initialized App.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		if err := a.shutdownTracing(ctx); err != nil {
			a.Logger.Warn("failed to flush traces", "error", err)
		}
		cancel()
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("failed to close cache", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	if a.logOutput != nil {
		return a.logOutput.Close()
	}
	return nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured JSON logger. With a log file configured
// the output rotates through lumberjack and the returned closer must be
// closed on shutdown.
func setupLogger(cfg config.AppConfig) (*slog.Logger, io.Closer) {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var (
		out    io.Writer = os.Stdout
		closer io.Closer
	)
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out, closer = rotating, rotating
	}

	handler := slog.NewJSONHandler(out, opts)
	return slog.New(handler), closer
}

// newListCache builds the listing cache selected by CACHE_BACKEND.
func newListCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.ListCache, error) {
	switch cfg.Backend {
	case cache.BackendLocal:
		lc, err := cache.NewLocal(cfg.LocalMaxItems, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return lc, nil

	case cache.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rc := cache.NewRedis(client, cfg.TTL)
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		logger.Info("redis cache connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return rc, nil

	default:
		return cache.Noop{}, nil
	}
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}
