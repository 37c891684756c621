package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflightRepositoryReportsUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewInflightRepository(client, "")

	token, ok, err := repo.Acquire(context.Background(), "1:2", time.Second)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)
	assert.Contains(t, err.Error(), "redis setnx 1:2")
}

func TestInflightRepositoryDefaultPrefix(t *testing.T) {
	repo := NewInflightRepository(nil, "")
	assert.Equal(t, "enrollment:inflight:", repo.prefix)
}
