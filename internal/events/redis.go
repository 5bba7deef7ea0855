package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Redis is a bus on top of Redis pub/sub. Events published while nobody listens are lost,
// which is fine: the next profile change carries the full profile again.
type Redis struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedis(client *redis.Client, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, channel: ProfileUpdatedChannel, logger: logger}
}

func (r *Redis) PublishProfileUpdated(ctx context.Context, event ProfileUpdated) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	r.logger.Debug("profile update published", zap.String("channel", r.channel), zap.String("profile", event.ProfileID))
	return nil
}

func (r *Redis) SubscribeProfileUpdated(ctx context.Context) (<-chan ProfileUpdated, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	// Receive waits for the subscription confirmation so no event published after this call is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	out := make(chan ProfileUpdated, localBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				event, err := decode([]byte(msg.Payload))
				if err != nil {
					r.logger.Warn("skipping malformed profile event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
