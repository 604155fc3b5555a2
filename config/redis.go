package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// redisOptions accepts a redis:// URL or a bare host:port.
func redisOptions(addr string) (*redis.Options, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		return redis.ParseURL(addr)
	}
	return &redis.Options{Addr: addr}, nil
}

// InitRedis connects using the first of REDIS_ADDR, REDIS_URI, REDIS_URL.
// The client serves the session cache, the batch queue and event Pub/Sub, so
// reads may block up to the queue's 5s XREADGROUP window.
func InitRedis() error {
	var addr string
	for _, k := range []string{"REDIS_ADDR", "REDIS_URI", "REDIS_URL"} {
		if addr = strings.TrimSpace(os.Getenv(k)); addr != "" {
			break
		}
	}
	if addr == "" {
		return errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) environment variable is not set")
	}

	opt, err := redisOptions(addr)
	if err != nil {
		return err
	}
	opt.ReadTimeout = 10 * time.Second
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}
	RedisClient = client
	return nil
}
