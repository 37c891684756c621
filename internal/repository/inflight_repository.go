package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// InflightRepository stores short-lived request locks in Redis so replicas
// share the same in-flight view.
type InflightRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewInflightRepository constructs the repository.
func NewInflightRepository(client redis.UniversalClient, prefix string) *InflightRepository {
	if prefix == "" {
		prefix = "enrollment:inflight:"
	}
	return &InflightRepository{client: client, prefix: prefix}
}

// Acquire sets the lock if absent. The returned token must be passed to Release.
func (r *InflightRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release removes the lock if it is still owned by token.
func (r *InflightRepository) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}
