package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/config"
)

func TestIsNilError(t *testing.T) {
	assert.True(t, IsNilError(redis.Nil))
	assert.True(t, IsNilError(fmt.Errorf("get: %w", redis.Nil)))
	assert.False(t, IsNilError(context.Canceled))
	assert.False(t, IsNilError(nil))
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, IsConfigError(errors.New("WRONGPASS invalid username-password pair or user is disabled.")))
	assert.True(t, IsConfigError(errors.New("NOAUTH Authentication required.")))
	assert.False(t, IsConfigError(errors.New("dial tcp 127.0.0.1:1: connect: connection refused")))
	assert.False(t, IsConfigError(nil))
}

func TestNewClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// port 1 is reserved and nothing listens on it
	_, err := NewClient(ctx, config.RedisConfig{Addr: "127.0.0.1:1", PoolSize: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis 127.0.0.1:1")
}
