package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster fans events out across processes through a Redis pub-sub
// channel. Local subscribers receive both locally published and remote
// events; deduplication by origin id is the receiver's job.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
	local   *MemoryBroadcaster
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// NewRedisBroadcaster creates a broadcaster over the given Redis channel and
// starts relaying remote events to local subscribers.
func NewRedisBroadcaster(client *redis.Client, channel string, logger *slog.Logger) *RedisBroadcaster {
	if channel == "" {
		channel = "authz:events"
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBroadcaster{
		client:  client,
		channel: channel,
		logger:  logger,
		local:   NewMemoryBroadcaster(64),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go b.relay(ctx)
	return b
}

// Subscribe creates a subscriber receiving all events on the channel,
// whichever process published them.
func (b *RedisBroadcaster) Subscribe(ctx context.Context) Subscriber {
	return b.local.Subscribe(ctx)
}

// Broadcast publishes the event to the Redis channel. Local delivery happens
// through the relay so every subscriber sees the same ordering.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Close stops the relay and closes all local subscribers.
func (b *RedisBroadcaster) Close() error {
	b.once.Do(func() {
		b.cancel()
		<-b.done
		_ = b.local.Close()
	})
	return nil
}

func (b *RedisBroadcaster) relay(ctx context.Context) {
	defer close(b.done)

	pubsub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed broadcast event", slog.Any("error", err))
				continue
			}
			_ = b.local.Broadcast(ctx, event)
		}
	}
}
