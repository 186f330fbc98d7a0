package tokenstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"appsession/internal/config"
	"appsession/internal/db"
)

// Backends soportados por Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Open construye el Storage indicado por TOKEN_STORAGE. El closer libera las
// conexiones abiertas y nunca es nil.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Storage, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() {}
	backend := strings.ToLower(strings.TrimSpace(cfg.TokenStorage))

	switch backend {
	case BackendMemory:
		return NewMemoryStorage(), noop, nil

	case "", BackendFile:
		s, err := NewFileStorage(cfg.TokenFile)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, noop, fmt.Errorf("token storage redis: REDIS_ADDR is required")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(ctxPing).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("token storage ready", zap.String("backend", backend), zap.String("addr", cfg.RedisAddr))
		return NewRedisStorage(client, cfg.TokenPrefix), func() { _ = client.Close() }, nil

	case BackendPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("db connect: %w", err)
		}
		s := NewPgStorage(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("ensure storage schema: %w", err)
		}
		logger.Info("token storage ready", zap.String("backend", backend))
		return s, pool.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown token storage %q", cfg.TokenStorage)
}
