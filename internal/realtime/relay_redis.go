package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// RedisRelay publishes frames on Redis pub/sub so every API instance delivers
// them to its own connections. One subscription connection per instance keeps
// frames for a topic in publish order.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	prefix string
	logger *logging.Logger
}

// NewRedisRelay builds a relay; prefix namespaces the pub/sub channels.
func NewRedisRelay(client *redis.Client, hub *Hub, prefix string, logger *logging.Logger) *RedisRelay {
	if client == nil {
		panic("realtime: redis client required")
	}
	if hub == nil {
		panic("realtime: hub required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if prefix == "" {
		prefix = "clinic:rt:"
	}
	return &RedisRelay{client: client, hub: hub, prefix: prefix, logger: logger}
}

// Publish sends the encoded frame to the topic's channel.
func (r *RedisRelay) Publish(ctx context.Context, topic Topic, event string, payload any) error {
	data, err := Encode(event, payload)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel(topic), data).Err(); err != nil {
		return fmt.Errorf("%w: redis publish %s: %v", ErrTransport, topic, err)
	}
	return nil
}

// Start subscribes to every topic channel and delivers incoming frames locally
// until ctx is done. It returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("realtime: redis subscribe: %w", err)
	}
	r.logger.Info("realtime: redis relay subscribed", "pattern", r.prefix+"*")

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				topic, ok := r.topic(msg.Channel)
				if !ok {
					continue
				}
				r.hub.deliverFrame(topic, []byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (r *RedisRelay) channel(topic Topic) string {
	return r.prefix + string(topic)
}

func (r *RedisRelay) topic(channel string) (Topic, bool) {
	name, ok := strings.CutPrefix(channel, r.prefix)
	if !ok || name == "" {
		return "", false
	}
	return Topic(name), true
}
