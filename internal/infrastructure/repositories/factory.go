package repositories

import (
	"context"
	"time"

	"seryvo/internal/core/ports"
	"seryvo/internal/infrastructure/repositories/memory"
	redisrepo "seryvo/internal/infrastructure/repositories/redis"
	"seryvo/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates booking and driver stores, preferring Redis when
// it is enabled and reachable, otherwise falling back to the in-memory
// implementations.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory stores",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis stores")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory stores")
	}

	return factory, nil
}

func (f *RepositoryFactory) CreateBookingStore() ports.BookingStore {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisBookingStore(f.redisClient)
	}
	return memory.NewMemoryBookingStore()
}

func (f *RepositoryFactory) CreateDriverStore() ports.DriverStore {
	if f.useRedis && f.redisClient != nil {
		// Eligibility reads run on every new booking; a short TTL cache
		// keeps them off the Redis hot path.
		return NewCachedDriverStore(redisrepo.NewRedisDriverStore(f.redisClient), 5*time.Second)
	}
	return memory.NewMemoryDriverStore()
}

// Close closes the Redis connection if one was opened.
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck pings Redis when it is in use.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
