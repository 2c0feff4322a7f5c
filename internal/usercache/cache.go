package usercache

import (
	"context"
	"fmt"

	"github.com/craftforge/payouts/internal/config"
	distributiondomain "github.com/craftforge/payouts/internal/distribution/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient opens the shared redis connection. A missing address is
// allowed; the invalidator degrades to a no-op.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Cache drops per-user profile and balance keys so readers see the new
// balance on their next fetch instead of a cached pre-run value.
type Cache struct {
	client *redis.Client
	log    *zap.Logger
}

func NewCache(client *redis.Client, log *zap.Logger) distributiondomain.CacheInvalidator {
	return &Cache{
		client: client,
		log:    log.Named("usercache"),
	}
}

func (c *Cache) Invalidate(ctx context.Context, userIDs []int64) error {
	if c.client == nil || len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(userIDs)*2)
	for _, id := range userIDs {
		keys = append(keys,
			fmt.Sprintf("user:%d", id),
			fmt.Sprintf("user:%d:balance", id),
		)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate user caches: %w", err)
	}

	c.log.Debug("invalidated user caches", zap.Int("users", len(userIDs)))
	return nil
}
