package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/healix-ai/backend/pkg/common/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRedisDisabled(t *testing.T) {
	assert.Nil(t, GetRedis(&config.Config{RedisEnabled: false}))
}

func TestRedisOptions(t *testing.T) {
	opts := redisOptions(&config.Config{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Positive(t, opts.ReadTimeout)
}

func TestPingRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, PingRedis(context.Background(), client))

	mr.Close()
	err := PingRedis(context.Background(), client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}
