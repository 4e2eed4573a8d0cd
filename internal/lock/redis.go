package lock

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/strata-systems/strata/pkg/types"
)

const defaultPrefix = "strata:lock:"

// Redis is a distributed Manager using SET NX PX, polling until the lock is
// free or the context expires.
type Redis struct {
	client *goredis.Client
	prefix string
	retry  time.Duration
}

// NewRedis creates a Redis lock manager.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{
		client: goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db}),
		prefix: defaultPrefix,
		retry:  50 * time.Millisecond,
	}
}

// NewRedisFromClient creates a Redis lock manager from an existing client
// (useful for testing).
func NewRedisFromClient(client *goredis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{client: client, prefix: prefix, retry: 50 * time.Millisecond}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	for {
		ok, err := r.client.SetNX(ctx, r.prefix+key, "1", ttl).Result()
		if err != nil {
			return types.WrapError(types.KindStorageError, err, "acquiring lock %s", key)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return types.WrapError(types.KindStorageError, ctx.Err(), "waiting for lock %s", key)
		case <-time.After(r.retry):
		}
	}
}

func (r *Redis) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return types.WrapError(types.KindStorageError, err, "releasing lock %s", key)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error { return r.client.Close() }
