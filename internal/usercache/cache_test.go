package usercache

import (
	"context"
	"testing"

	"github.com/craftforge/payouts/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNilClientIsNoOp(t *testing.T) {
	cache := NewCache(nil, zap.NewNop())

	assert.NoError(t, cache.Invalidate(context.Background(), []int64{1, 2, 3}))
}

func TestEmptyUserListIsNoOp(t *testing.T) {
	cache := NewCache(nil, zap.NewNop())

	assert.NoError(t, cache.Invalidate(context.Background(), nil))
}

func TestRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, NewRedisClient(config.Config{}))
	assert.NotNil(t, NewRedisClient(config.Config{RedisAddr: "localhost:6379"}))
}
