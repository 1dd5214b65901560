package redis

import (
	"context"
	"fmt"
	"time"

	"ChatRelay/config"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

// NewRedisClient connects and PINGs so a bad address fails at boot
// instead of on the first request.
func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis client connection test failed: %w", err)
	}

	return &RedisClient{Client: client}, nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

// GetOnlineUsers returns the presence hash of a room, field = user id,
// value = JSON user info written by the chat hub.
func (r *RedisClient) GetOnlineUsers(ctx context.Context, roomID string) (map[string]string, error) {
	key := fmt.Sprintf("chat:room:%s:online_users", roomID)
	result, err := r.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch online users for key %s: %w", key, err)
	}
	return result, nil
}
