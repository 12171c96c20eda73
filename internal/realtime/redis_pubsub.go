package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "community:ws:"
	publishTimeout = 3 * time.Second
	subBuffer      = 256
)

var errEmptyEvent = errors.New("realtime envelope without event")

// envelope is what travels over Redis between API instances.
type envelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin"`
	SentAt time.Time       `json:"sent_at"`
}

func encodeEnvelope(origin, event string, payload []byte, at time.Time) ([]byte, error) {
	if event == "" {
		return nil, errEmptyEvent
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return json.Marshal(envelope{Event: event, Data: payload, Origin: origin, SentAt: at.UTC()})
}

func decodeEnvelope(raw string) (envelope, error) {
	var e envelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return e, err
	}
	if e.Event == "" {
		return e, errEmptyEvent
	}
	return e, nil
}

// RedisPubSub fans dashboard events out to every API instance.
type RedisPubSub struct {
	client   *redis.Client
	instance string
	logger   *zap.Logger
}

// NewRedisPubSub creates the bridge. Each process gets its own instance id, which is
// stamped on outgoing envelopes for tracing.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, instance: uuid.NewString(), logger: logger}
}

// PublishTopicEvent implements RedisPublisher.
func (r *RedisPubSub) PublishTopicEvent(topic, event string, payload []byte) error {
	body, err := encodeEnvelope(r.instance, event, payload, time.Now())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channelPrefix+topic, body).Err()
}

// SubscribeTopic implements RedisSubscriber. The returned func stops the subscription.
func (r *RedisPubSub) SubscribeTopic(topic string, handler func(event string, payload []byte)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelPrefix+topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	ch := pubsub.Channel(redis.WithChannelSize(subBuffer))
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				e, err := decodeEnvelope(msg.Payload)
				if err != nil {
					r.logger.Debug("drop realtime envelope", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(e.Event, e.Data)
			}
		}
	}()
	r.logger.Debug("realtime topic subscribed", zap.String("topic", topic), zap.String("instance", r.instance))
	return cancel, nil
}
