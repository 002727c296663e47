package bridge

import (
	"context"
	"log/slog"
	"messenger/domain"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisPublisher publishes every transition on one pub/sub channel.
// Each publish is bounded by timeout since it runs on the tracker goroutine.
type RedisPublisher struct {
	log     *slog.Logger
	client  redisClient
	channel string
	timeout time.Duration
}

func NewRedisPublisher(log *slog.Logger, client redisClient, channel string, timeout time.Duration) *RedisPublisher {
	return &RedisPublisher{log: log, client: client, channel: channel, timeout: timeout}
}

func (p *RedisPublisher) OnPresenceChange(ctx context.Context, change domain.PresenceChange) {
	data, err := encodePresence(change)
	if err != nil {
		p.log.Error("Unable to encode presence", "user_id", change.UserID, "error", err)
		return
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.log.Warn("Redis presence publish failed", "channel", p.channel, "user_id", change.UserID, "error", err)
	}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
