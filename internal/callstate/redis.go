package callstate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSet keeps membership in a Redis set so routed/ended state survives
// process restarts and is shared by co-located replicas.
type RedisSet struct {
	rdb *redis.Client
	key string
}

func NewRedisSet(rdb *redis.Client, key string) (*RedisSet, error) {
	if rdb == nil {
		return nil, fmt.Errorf("callstate: redis client is nil")
	}
	if key == "" {
		return nil, fmt.Errorf("callstate: key is required")
	}
	return &RedisSet{rdb: rdb, key: key}, nil
}

func (s *RedisSet) Add(ctx context.Context, callControlID string) error {
	return s.rdb.SAdd(ctx, s.key, callControlID).Err()
}

func (s *RedisSet) Contains(ctx context.Context, callControlID string) (bool, error) {
	return s.rdb.SIsMember(ctx, s.key, callControlID).Result()
}
