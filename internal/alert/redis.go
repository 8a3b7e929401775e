package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/redis/go-redis/v9"
)

const defaultRedisStream = "logwarden:findings"

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Redis appends findings to a Redis stream.
type Redis struct {
	stream string
	maxLen int64
	client streamAdder
	closer func() error
}

// NewRedis builds a redis stream sink from cfg.
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	stream := cfg.Stream
	if stream == "" {
		stream = defaultRedisStream
	}
	return &Redis{
		stream: stream,
		maxLen: cfg.MaxLen,
		client: client,
		closer: client.Close,
	}, nil
}

// SendAlert adds f as one stream entry.
func (r *Redis) SendAlert(ctx context.Context, f anomaly.Finding) error {
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"severity": string(f.Severity),
			"rule":     f.Rule,
			"time":     f.Time.Format(time.RFC3339),
			"source":   f.Source(),
			"details":  f.DetailsText(),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close closes the client connection pool.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
