package events

import (
	"encoding/json"
	"time"

	"github.com/imatefx/control-tower/internal/domain"
)

// Publisher is the service-side face of the hub. Publishing is
// fire-and-forget: the state change is already durable when an event goes
// out, and delivery problems never propagate back.
type Publisher interface {
	Publish(topic string, payload any)
}

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// TopicAll subscribes a client to every topic.
const TopicAll = "*"

// Hub fans domain events out to topic subscribers.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan envelope
}

type envelope struct {
	topic   string
	payload []byte
}

type subscription struct {
	topic  string
	client Subscriber
}

// NewHub creates a running Hub. buffer bounds the publish queue; when the
// queue is full events are dropped rather than blocking the publisher.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan envelope, buffer),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.topic]; !ok {
				h.clients[sub.topic] = make(map[Subscriber]struct{})
			}
			h.clients[sub.topic][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.topic]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.topic)
				}
			}
		case msg := <-h.broadcast:
			h.deliver(msg.topic, msg.payload)
			h.deliver(TopicAll, msg.payload)
		}
	}
}

func (h *Hub) deliver(topic string, payload []byte) {
	clients, ok := h.clients[topic]
	if !ok {
		return
	}
	for c := range clients {
		if err := c.Send(payload); err != nil {
			c.Close()
			delete(clients, c)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, topic)
	}
}

// Register adds a client to a topic stream.
func (h *Hub) Register(topic string, client Subscriber) {
	h.register <- subscription{topic: topic, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(topic string, client Subscriber) {
	h.unreg <- subscription{topic: topic, client: client}
}

// Publish queues a domain event for delivery. Never blocks; events with no
// room in the queue are dropped.
func (h *Hub) Publish(topic string, payload any) {
	event := domain.Event{
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- envelope{topic: topic, payload: data}:
	default:
	}
}

// Nop is a Publisher that discards everything.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(string, any) {}
