package signals

import (
	"context"
	"course_gating_backend/pkg/logger"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisPublisher forwards events to a Redis pub/sub channel for other services.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, channel string, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel, log: logger.Named(log, "signals.redis")}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := Encode(evt)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", evt.Signal, err)
	}
	p.log.Debug("signal published", zap.String("signal", string(evt.Signal)), zap.String("id", evt.ID))
	return nil
}

// Attach subscribes the publisher to every signal in sigs.
func (p *RedisPublisher) Attach(d *Dispatcher, sigs ...Signal) {
	for _, sig := range sigs {
		d.Connect(sig, "redis.publish", p.Publish)
	}
}

// Encode 将事件序列化为广播用的 JSON
func Encode(evt Event) ([]byte, error) {
	raw, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", evt.Signal, err)
	}
	return raw, nil
}
