package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// RedisPublisher appends each message to a Redis stream named
// <prefix>:<topic>. Consumers read with XREADGROUP.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, prefix string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix, maxLen: maxLen}
}

func (p *RedisPublisher) Stream(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + ":" + topic
}

func (p *RedisPublisher) Emit(ctx context.Context, topic string, msg Message) error {
	value, err := json.Marshal(msg.Value)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", topic, err)
	}

	args := &redis.XAddArgs{
		Stream: p.Stream(topic),
		Values: map[string]any{
			"key":   msg.Key,
			"value": string(value),
		},
	}

	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return nil
}

// this ping function checks redis connectivity

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
