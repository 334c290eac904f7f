package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// InitRedis connects to addr. A nil client means Redis is unavailable and
// the caller runs without it.
func InitRedis(ctx context.Context, addr, password string) *redis.Client {
	if addr == "" {
		log.Info("[REDIS] REDIS_URL not set, live match index disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnf("[REDIS] Warning: Could not connect to Redis: %v. Live match index disabled.", err)
		client.Close()
		return nil
	}

	log.Info("[REDIS] Connected successfully")
	return client
}
