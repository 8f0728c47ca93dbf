package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/duraflow-go/flow"
	"github.com/dshills/duraflow-go/flow/blob"
	"github.com/dshills/duraflow-go/flow/cache"
	"github.com/dshills/duraflow-go/flow/catalog"
	"github.com/dshills/duraflow-go/flow/config"
	"github.com/dshills/duraflow-go/flow/emit"
	"github.com/dshills/duraflow-go/flow/secrets"
	"github.com/dshills/duraflow-go/flow/store"
)

// app bundles everything a subcommand needs: the configured engine,
// the workflow catalog, and the handles that have to be torn down on
// exit.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   *flow.Engine
	catalog  *catalog.Catalog
	registry *prometheus.Registry
	closers  []func() error
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	ctxStore, err := a.buildStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	resultCache, err := a.buildCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	outputStorage, err := a.buildStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	secretManager, err := a.buildSecrets(cfg.Secrets)
	if err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.catalog = catalog.New()
	if cfg.Catalog.AutoRegister {
		registerWorkflows(a.catalog)
	}

	opts := []flow.Option{
		flow.WithStore(ctxStore),
		flow.WithCatalog(a.catalog),
		flow.WithEmitter(emit.NewLogEmitter(os.Stderr, cfg.Log.JSON)),
		flow.WithMetrics(flow.NewPrometheusMetrics(a.registry)),
		flow.WithSecretManager(secretManager),
		flow.WithOutputStorage(outputStorage),
		flow.WithMaxWorkers(cfg.Executor.MaxWorkers),
		flow.WithDefaultTimeout(cfg.Executor.DefaultTimeout),
		flow.WithRetryDefaults(cfg.Executor.RetryDelay, cfg.Executor.RetryBackoff),
		flow.WithRetryAttempts(cfg.Executor.RetryAttempts),
	}
	if resultCache != nil {
		opts = append(opts, flow.WithCache(resultCache))
	}
	capacity := flow.Resources{
		CPU:      cfg.Executor.ResourceCPU,
		MemoryGB: cfg.Executor.ResourceMemGB,
		GPU:      cfg.Executor.ResourceGPU,
	}
	if capacity != (flow.Resources{}) {
		opts = append(opts, flow.WithResources(capacity))
	}

	a.engine = flow.NewEngine(opts...)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) buildStore(cfg config.DatabaseConfig) (flow.ContextStore, error) {
	switch cfg.Backend {
	case "memory":
		return flow.NewMemoryStore(), nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "mysql":
		s, err := store.NewMySQLStore(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open mysql store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

func (a *app) buildCache(cfg config.CacheConfig) (flow.Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(cfg.Size)
	case "file":
		return cache.NewFileCache(cfg.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)
		return cache.NewRedisCache(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func (a *app) buildStorage(cfg config.StorageConfig) (flow.OutputStorage, error) {
	switch cfg.Backend {
	case "inline":
		return flow.InlineStorage{}, nil
	case "local":
		return blob.NewLocalStorage(cfg.Path, a.cfg.Serializer)
	case "s3":
		return blob.NewS3StorageFromConfig(context.Background(), cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (a *app) buildSecrets(cfg config.SecretsConfig) (flow.SecretManager, error) {
	switch cfg.Backend {
	case "env":
		return secrets.NewEnvManager(cfg.EnvPrefix), nil
	case "encrypted":
		return secrets.NewEncryptedFileManager(cfg.VaultPath, cfg.Passphrase)
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	var zc zap.Config
	if cfg.JSON {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
