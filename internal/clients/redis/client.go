package redis

import (
	"context"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
)

// NewFromEnv returns a shared redis client, or nil when REDIS_ADDR is unset.
// The embedding cache treats a nil client as "cache disabled".
func NewFromEnv(log *logger.Logger) *goredis.Client {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if log != nil {
			log.Warn("redis unavailable, continuing without embedding cache", "addr", addr, "error", err)
		}
		_ = client.Close()
		return nil
	}
	if log != nil {
		log.Info("redis connected", "addr", addr)
	}
	return client
}
