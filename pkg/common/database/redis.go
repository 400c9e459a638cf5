package database

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/healix-ai/backend/pkg/common/config"
	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// redisOptions keeps timeouts short: the client only backs the report
// cache, and a slow cache must not stall report requests.
func redisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     10,
	}
}

// GetRedis returns the shared client, or nil when Redis is disabled. An
// unreachable server is logged but still yields a client; cache calls then
// fail and callers fall back to the database.
func GetRedis(cfg *config.Config) *redis.Client {
	if !cfg.RedisEnabled {
		return nil
	}
	redisOnce.Do(func() {
		redisClient = redis.NewClient(redisOptions(cfg))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := PingRedis(ctx, redisClient); err != nil {
			logger.Log.WithError(err).Warn("Redis unreachable, report cache degraded")
			return
		}
		logger.Log.WithField("addr", redisClient.Options().Addr).Info("Connected to Redis")
	})

	return redisClient
}

func PingRedis(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis at %s: %w", client.Options().Addr, err)
	}
	return nil
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
