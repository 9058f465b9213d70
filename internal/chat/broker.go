package chat

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeliverFunc receives payloads published to a chat's channel.
type DeliverFunc func(chatID int, payload []byte)

// Broker fans published messages out to every server instance with live
// subscribers. The interface exists so the hub can run against a loopback
// double in tests and in single-node deployments without Redis.
type Broker interface {
	Publish(ctx context.Context, chatID int, payload []byte) error
	Subscribe(deliver DeliverFunc)
}

const chatChannelPrefix = "chat:"

// RedisBroker carries broadcasts over Redis pub/sub, one channel per chat.
type RedisBroker struct {
	redis *redis.Client
	log   zerolog.Logger
}

func NewRedisBroker(client *redis.Client, log zerolog.Logger) *RedisBroker {
	return &RedisBroker{redis: client, log: log}
}

func (b *RedisBroker) Publish(ctx context.Context, chatID int, payload []byte) error {
	return b.redis.Publish(ctx, chatChannelPrefix+strconv.Itoa(chatID), payload).Err()
}

// Subscribe listens on chat:* and forwards payloads to the hub. Runs for the
// process lifetime.
func (b *RedisBroker) Subscribe(deliver DeliverFunc) {
	go func() {
		pubsub := b.redis.PSubscribe(context.Background(), chatChannelPrefix+"*")
		ch := pubsub.Channel()

		for msg := range ch {
			chatID, err := strconv.Atoi(strings.TrimPrefix(msg.Channel, chatChannelPrefix))
			if err != nil {
				b.log.Warn().Str("channel", msg.Channel).Msg("unparseable chat channel")
				continue
			}
			deliver(chatID, []byte(msg.Payload))
		}
	}()
}

// LoopbackBroker short-circuits publish to the local hub. Used in tests and
// when no Redis address is configured.
type LoopbackBroker struct {
	deliver DeliverFunc
}

func NewLoopbackBroker() *LoopbackBroker {
	return &LoopbackBroker{}
}

func (b *LoopbackBroker) Publish(_ context.Context, chatID int, payload []byte) error {
	if b.deliver != nil {
		b.deliver(chatID, payload)
	}
	return nil
}

func (b *LoopbackBroker) Subscribe(deliver DeliverFunc) {
	b.deliver = deliver
}
