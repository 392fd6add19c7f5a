package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"paperpayout-client/internal/config"
)

// RedisRegistry is an InflightRegistry shared by every client instance
// pointed at the same Redis, so two tabs of one account cannot both stake a
// join. Keys expire after ttl in case a holder dies without releasing.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRegistry(cfg *config.Config) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	ttl := cfg.InflightTTL
	if ttl <= 0 {
		ttl = DefaultInflightTTL
	}

	return &RedisRegistry{client: client, ttl: ttl}, nil
}

func (r *RedisRegistry) Acquire(ctx context.Context, op, sessionID string) (func(), error) {
	key := fmt.Sprintf(KeyInflight, op, sessionID)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("failed to acquire %s: %v", key, err)}
	}
	if !ok {
		return nil, ErrBusy
	}

	return func() {
		// Release must outlive a cancelled request context.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := releaseScript.Run(ctx, r.client, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.client.Expire(ctx, key, time.Second)
		}
	}, nil
}

// Only the holder that set the token may delete the key.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
