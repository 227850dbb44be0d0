package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBroker publishes events on a redis channel and relays everything
// received on it into the local Hub, so clients on any process see them.
type RedisBroker struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
	ready   chan struct{}
}

var _ Publisher = (*RedisBroker)(nil)

func NewRedisBroker(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ready is closed once Run has an active subscription
func (b *RedisBroker) Ready() <-chan struct{} { return b.ready }

// Run relays events from redis into the hub until ctx is cancelled
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	close(b.ready)
	b.logger.Info("realtime relay subscribed", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.logger.Warn("dropping malformed realtime event", "error", err)
				continue
			}
			_ = b.hub.Publish(ctx, evt)
		}
	}
}
