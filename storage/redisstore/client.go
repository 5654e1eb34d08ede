package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// ClientConfig addresses a single node, a cluster or a sentinel group.
type ClientConfig struct {
	Addrs      []string
	MasterName string
	Username   string
	Password   string
	DB         int
}

// NewClient connects to Redis and pings it before returning.
func NewClient(ctx context.Context, cfg ClientConfig) (redis.UniversalClient, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("[redisstore.NewClient] at least one address is required")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       cfg.Addrs,
		MasterName:  cfg.MasterName,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: defaultDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "[redisstore.NewClient] failed to connect to redis")
	}
	return client, nil
}
