package broker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
)

// RedisBroadcaster fans frames out to every process sharing the same Redis.
//
// Local members are kept in a chat.Hub. Each group maps to the Redis channel `<prefix><group key>`,
// which this process subscribes to while it has at least one local member in the group.
// Frames are delivered to the local members present when the frame arrives from Redis.
type RedisBroadcaster struct {
	client redis.UniversalClient
	prefix string
	local  *chat.Hub
	logger core.Logger

	mu     sync.Mutex // serializes local membership changes with (un)subscriptions
	pubsub *redis.PubSub
	done   chan struct{}
}

var _ chat.Broadcaster = (*RedisBroadcaster)(nil)

func NewRedisBroadcaster(client redis.UniversalClient, prefix string, logger core.Logger) *RedisBroadcaster {
	b := &RedisBroadcaster{
		client: client,
		prefix: prefix,
		local:  chat.NewHub(logger),
		logger: logger,
		pubsub: client.Subscribe(context.Background()),
		done:   make(chan struct{}),
	}
	go b.receive()
	return b
}

// NewRedisClient returns a client for conf, checking the server is reachable.
func NewRedisClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.Addr)
	}
	return client, nil
}

func (b *RedisBroadcaster) channel(key string) string { return b.prefix + key }

func (b *RedisBroadcaster) Join(ctx context.Context, key string, sub chat.Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	first := b.local.Members(key) == 0
	if err := b.local.Join(ctx, key, sub); err != nil {
		return err
	}
	if first {
		if err := b.pubsub.Subscribe(ctx, b.channel(key)); err != nil {
			_ = b.local.Leave(ctx, key, sub)
			return errors.Wrapf(err, "subscribing to %s", b.channel(key))
		}
	}
	return nil
}

func (b *RedisBroadcaster) Leave(ctx context.Context, key string, sub chat.Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.local.Members(key)
	if err := b.local.Leave(ctx, key, sub); err != nil {
		return err
	}
	if before > 0 && b.local.Members(key) == 0 {
		if err := b.pubsub.Unsubscribe(ctx, b.channel(key)); err != nil {
			return errors.Wrapf(err, "unsubscribing from %s", b.channel(key))
		}
	}
	return nil
}

func (b *RedisBroadcaster) Publish(ctx context.Context, key string, frame chat.OutboundFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return errors.Wrap(err, "encoding frame")
	}
	if err := b.client.Publish(ctx, b.channel(key), payload).Err(); err != nil {
		return errors.Wrapf(err, "publishing to %s", b.channel(key))
	}
	return nil
}

// Members returns the number of members of the group in this process.
func (b *RedisBroadcaster) Members(key string) int {
	return b.local.Members(key)
}

// receive re-publishes frames from Redis to local members, in arrival order.
func (b *RedisBroadcaster) receive() {
	defer close(b.done)

	ctx := context.Background()
	for msg := range b.pubsub.Channel() {
		var frame chat.OutboundFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			b.logger.Error("broker.RedisBroadcaster: decoding frame from "+msg.Channel, err)
			continue
		}
		_ = b.local.Publish(ctx, strings.TrimPrefix(msg.Channel, b.prefix), frame)
	}
}

// Close stops receiving frames. The client is not closed.
func (b *RedisBroadcaster) Close() error {
	err := b.pubsub.Close()
	<-b.done
	if err != nil {
		return errors.Wrap(err, "closing subscription")
	}
	return nil
}
