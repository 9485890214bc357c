package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heirloom/internal/platform/config"
)

func TestNew_Unconfigured(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "http://not-redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}

func TestApplyPool(t *testing.T) {
	opts, err := redis.ParseURL("redis://localhost:6379/0?pool_size=3&dial_timeout=1s")
	require.NoError(t, err)

	applyPool(opts, config.RedisConfig{PoolSize: 12, ReadTimeout: 2 * time.Second})

	assert.Equal(t, 12, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout, "unset config keeps the URL value")
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
}
