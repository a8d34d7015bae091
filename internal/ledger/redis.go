package ledger

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// redisBatchSize caps the members sent in one SADD
const redisBatchSize = 500

// RedisStore keeps the ledger in a Redis set
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store on the set named key
func NewRedisStore(addr string, db int, key string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &RedisStore{client: client, key: key}
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load returns the members of the set
func (s *RedisStore) Load(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.key).Result()
}

// Flush adds ids to the set. SADD ignores members already present.
func (s *RedisStore) Flush(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for start := 0; start < len(ids); start += redisBatchSize {
		end := min(start+redisBatchSize, len(ids))
		members := make([]interface{}, 0, end-start)
		for _, id := range ids[start:end] {
			members = append(members, id)
		}
		pipe.SAdd(ctx, s.key, members...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
