package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "relay:location:"

// Broker carries location updates between relay instances.
type Broker interface {
	Publish(ctx context.Context, deliveryID string, loc Location) error
	// Subscribe feeds every update into deliver until ctx is done.
	Subscribe(ctx context.Context, deliver func(deliveryID string, loc Location)) error
	Close() error
}

// RedisBroker bridges rooms across instances through Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBroker connects to Redis at addr.
func NewRedisBroker(addr string, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
	}
}

// Ping checks the connection.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Publish sends the update to the delivery channel.
func (b *RedisBroker) Publish(ctx context.Context, deliveryID string, loc Location) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+deliveryID, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe listens on every delivery channel.
func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(deliveryID string, loc Location)) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var loc Location
			if err := json.Unmarshal([]byte(msg.Payload), &loc); err != nil {
				b.logger.Warn("malformed relay message", slog.String("channel", msg.Channel), slog.Any("error", err))
				continue
			}
			deliver(strings.TrimPrefix(msg.Channel, channelPrefix), loc)
		}
	}
}

// Close releases the Redis connection pool.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
