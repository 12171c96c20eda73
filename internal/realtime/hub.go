package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// TopicDashboard is the topic every admin dashboard joins.
	TopicDashboard = "dashboard"
)

// Dashboard events.
const (
	EventRegistrationCreated = "registration.created"
	EventRegistrationUpdated = "registration.updated"
	EventRegistrationDeleted = "registration.deleted"
	EventEnrollmentCreated   = "enrollment.created"
	EventEnrollmentUpdated   = "enrollment.updated"
	EventEnrollmentDeleted   = "enrollment.deleted"
	EventContactCreated      = "contact.created"
	EventPaymentVerified     = "payment.verified"
)

// Hub maintains topic -> set of connections and broadcasts messages.
// With Redis configured, events are published and every instance (this one included)
// delivers them from its subscription; without Redis delivery is local.
type Hub struct {
	topics   map[string]map[string]*Client
	subs     map[string]func()
	mu       sync.RWMutex
	subMu    sync.Mutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes events for cross-instance broadcast.
type RedisPublisher interface {
	PublishTopicEvent(topic, event string, payload []byte) error
}

// RedisSubscriber subscribes to topic channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeTopic(topic string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis sides may be nil.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics:   make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its topic. The Redis subscription for the topic is opened
// outside the hub lock and retried on later registrations while it is missing.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.topics[c.Topic] == nil {
		h.topics[c.Topic] = make(map[string]*Client)
	}
	h.topics[c.Topic][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("topic", c.Topic))

	if h.redisSub != nil {
		h.ensureSubscribed(c.Topic)
	}
}

func (h *Hub) ensureSubscribed(topic string) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.subscribed(topic) {
		return
	}
	cancel, err := h.redisSub.SubscribeTopic(topic, func(event string, payload []byte) {
		h.Broadcast(topic, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("redis subscribe failed, delivering locally", zap.String("topic", topic), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.topics[topic]) == 0 {
		cancel()
		return
	}
	h.subs[topic] = cancel
}

func (h *Hub) subscribed(topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[topic]
	return ok
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.topics[c.Topic]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.topics, c.Topic)
			if cancel, ok := h.subs[c.Topic]; ok {
				cancel()
				delete(h.subs, c.Topic)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("topic", c.Topic))
}

// Broadcast sends a message to all local clients of a topic. Full buffers drop the message.
func (h *Hub) Broadcast(topic, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal broadcast payload", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.topics[topic] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, dropping message", zap.String("client_id", c.ID), zap.String("event", event))
		}
	}
}

// Publish delivers an event to a topic on every instance exactly once per client.
// Local clients are served directly while this instance has no live subscription.
func (h *Hub) Publish(topic, event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(topic, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal publish payload", zap.String("event", event), zap.Error(err))
		return
	}
	local := !h.subscribed(topic)
	if local {
		h.Broadcast(topic, event, json.RawMessage(data))
	}
	if err := h.redis.PublishTopicEvent(topic, event, data); err != nil {
		h.logger.Warn("redis publish failed", zap.String("event", event), zap.Bool("delivered_locally", true), zap.Error(err))
		if !local {
			h.Broadcast(topic, event, json.RawMessage(data))
		}
	}
}

// Notify publishes a dashboard event. Services use it through their Broadcaster interface.
func (h *Hub) Notify(event string, payload interface{}) {
	h.Publish(TopicDashboard, event, payload)
}

// ClientCount returns the number of local clients on a topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
