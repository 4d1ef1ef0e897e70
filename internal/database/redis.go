package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ConnectRedis returns nil when Redis cannot be reached; callers treat the
// cache as optional.
func ConnectRedis(addr, password string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		_ = client.Close()
		return nil
	}

	log.WithField("addr", addr).Info("Redis connection established")
	return client
}
