package repositories

import (
	"context"

	"roomlink/internal/core/ports"
	"roomlink/internal/infrastructure/repositories/file"
	"roomlink/internal/infrastructure/repositories/memory"
	redisrepo "roomlink/internal/infrastructure/repositories/redis"
	"roomlink/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory picks the session storage backend from config. A Redis
// backend that cannot be reached falls back to the file backend, and the file
// backend without a path falls back to memory.
type RepositoryFactory struct {
	backend     string
	filePath    string
	keyPrefix   string
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		backend:   cfg.Session.Backend,
		filePath:  cfg.Session.FilePath,
		keyPrefix: cfg.Redis.KeyPrefix,
		logger:    logger,
	}

	if factory.backend == config.SessionBackendRedis {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to file session storage",
				"error", err,
			)
			factory.backend = config.SessionBackendFile
		} else {
			factory.redisClient = client
		}
	}

	if factory.backend == config.SessionBackendFile && factory.filePath == "" {
		factory.backend = config.SessionBackendMemory
	}

	logger.Infow("session storage selected", "backend", factory.backend)
	return factory, nil
}

func (f *RepositoryFactory) Backend() string {
	return f.backend
}

func (f *RepositoryFactory) CreateSessionStorage() ports.SessionStorage {
	switch {
	case f.backend == config.SessionBackendRedis && f.redisClient != nil:
		return redisrepo.NewRedisSessionStorage(f.redisClient, f.keyPrefix)
	case f.backend == config.SessionBackendFile:
		return file.NewFileSessionStorage(f.filePath)
	}
	return memory.NewMemorySessionStorage()
}

// RedisClient is nil unless the Redis backend is in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
