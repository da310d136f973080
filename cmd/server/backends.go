package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/pipelineapi/api"
	"github.com/GoCodeAlone/pipelineapi/cache"
	"github.com/GoCodeAlone/pipelineapi/config"
	"github.com/GoCodeAlone/pipelineapi/lock"
	"github.com/GoCodeAlone/pipelineapi/pkg/fieldcrypt"
	"github.com/GoCodeAlone/pipelineapi/plugin"
	"github.com/GoCodeAlone/pipelineapi/representer"
	"github.com/GoCodeAlone/pipelineapi/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type backendConfig struct {
	Store         string
	SQLitePath    string
	DatabaseURL   string
	Lock          string
	ETagCache     string
	RedisAddr     string
	RedisPassword string
	EncryptionKey string
	PluginsFile   string
}

// backends holds the storage, locking and encoding collaborators selected
// by configuration.
type backends struct {
	codec     *representer.Codec
	pipelines store.PipelineStore
	locker    lock.Locker
	etagStore cache.Store

	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newBackends(ctx context.Context, cfg backendConfig, logger *slog.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	b.codec, err = newCodec(cfg, logger)
	if err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	openPool := func() (*pgxpool.Pool, error) {
		if pool != nil {
			return pool, nil
		}
		if cfg.DatabaseURL == "" {
			return nil, errors.New("postgres: database URL is required")
		}
		p, err := store.OpenPGPool(ctx, store.PGConfig{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, err
		}
		pool = p
		b.closers = append(b.closers, p.Close)
		return p, nil
	}

	var rdb *redis.Client
	openRedis := func() *redis.Client {
		if rdb == nil {
			rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
			b.closers = append(b.closers, func() { _ = rdb.Close() })
		}
		return rdb
	}

	switch cfg.Store {
	case "", "memory":
		b.pipelines = store.NewMemoryPipelineStore(b.codec)
	case "sqlite":
		s, err := store.NewSQLitePipelineStore(cfg.SQLitePath, b.codec)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = s.Close() })
		b.pipelines = s
	case "postgres":
		p, err := openPool()
		if err != nil {
			return nil, err
		}
		if err := store.NewMigrator(p).Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		b.pipelines = store.NewPGPipelineStore(p, b.codec)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	switch cfg.Lock {
	case "", "memory":
		b.locker = lock.NewInMemoryLock()
	case "redis":
		b.locker = lock.NewRedisLock(openRedis())
	case "postgres":
		p, err := openPool()
		if err != nil {
			return nil, err
		}
		b.locker = lock.NewPGAdvisoryLock(p)
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock)
	}

	switch cfg.ETagCache {
	case "", "memory":
		b.etagStore = cache.NewMemoryStore()
	case "redis":
		b.etagStore = cache.NewRedisStore(openRedis(), "")
	default:
		return nil, fmt.Errorf("unknown etag cache backend %q", cfg.ETagCache)
	}

	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}
	logger.Info("backends ready", "store", cfg.Store, "lock", cfg.Lock, "etag_cache", cfg.ETagCache)
	return b, nil
}

func newCodec(cfg backendConfig, logger *slog.Logger) (*representer.Codec, error) {
	var cipher config.Cipher
	if cfg.EncryptionKey != "" {
		cipher = fieldcrypt.NewCipher(fieldcrypt.NewKeyRing([]byte(cfg.EncryptionKey), "pipeline-config"))
	} else {
		logger.Warn("no encryption key configured; secure values cannot be saved")
	}

	var plugins config.PluginSecurity
	if cfg.PluginsFile != "" {
		reg, err := plugin.LoadRegistry(cfg.PluginsFile)
		if err != nil {
			return nil, fmt.Errorf("plugins: %w", err)
		}
		logger.Info("plugin registry loaded", "plugins", len(reg.List()))
		plugins = reg
	}
	return representer.NewCodec(cipher, plugins), nil
}

// refreshETags overwrites the ETag entries of pipelines changed outside the
// API so clients holding the old value get 412 on their next update.
func refreshETags(pipelines store.PipelineStore, codec *representer.Codec, etags *cache.ETags, logger *slog.Logger) func(context.Context, []string) {
	return func(ctx context.Context, changed []string) {
		for _, name := range changed {
			p, err := pipelines.GetPipeline(ctx, name)
			if err != nil {
				logger.Error("refresh etag: load pipeline", "pipeline", name, "error", err)
				continue
			}
			doc, err := codec.Encode(p)
			if err != nil {
				logger.Error("refresh etag: encode pipeline", "pipeline", name, "error", err)
				continue
			}
			hash, err := api.Fingerprint(doc)
			if err != nil {
				logger.Error("refresh etag: fingerprint", "pipeline", name, "error", err)
				continue
			}
			if err := etags.Overwrite(ctx, name, hash); err != nil {
				logger.Error("refresh etag: overwrite", "pipeline", name, "error", err)
			}
		}
	}
}
