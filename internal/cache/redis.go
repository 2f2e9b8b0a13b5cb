package cache

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultAddr = "localhost:6379"

// Client is the shared Redis connection used for price snapshot caching.
var Client *redis.Client

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
)

// InitRedis connects using REDIS_URL, which may be a bare host:port or a
// redis:// / rediss:// URL. The process exits if Redis is unreachable;
// the cache is not optional.
func InitRedis(ctx context.Context) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = defaultAddr
	}

	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			log.Fatalf("failed to parse REDIS_URL: %v", err)
		}
		opts = parsed
	}

	Client = newRedisClient(opts)
	if err := pingRedis(ctx, Client); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis")
}
