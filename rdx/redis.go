package rdx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var Conn *redis.Client

// Connect opens the shared client and checks it with a PING.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	Conn = client
	return client, nil
}
