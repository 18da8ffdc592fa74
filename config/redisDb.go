package config

import (
	"context"
	"os"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ConnectRedis connects when REDIS_ADDRESS is set and returns nil otherwise.
// Redis is an optional balance cache; the engine must run without it.
func ConnectRedis(ctx context.Context, logg *logrus.Logger) *redis.Client {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		logg.Info("REDIS_ADDRESS not set; running without balance cache")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       IntFromEnv("REDIS_DB", 0),
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logg.WithField("addr", redisAddr).Warnf("redis unreachable, running without balance cache: %v", err)
		return nil
	}
	logg.WithField("addr", redisAddr).Info("connected to redis")
	return rdb
}

// NewLocker wraps the client for cross-process serialization of the balance
// recompute; nil in, nil out.
func NewLocker(rdb *redis.Client) *redislock.Client {
	if rdb == nil {
		return nil
	}
	return redislock.New(rdb)
}
