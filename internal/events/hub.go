// Package events fans out social graph notifications to connected clients
// over WebSocket. Each subscriber watches one address; slow subscribers lose
// events rather than stall the publisher.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"socialgraph.relay/sgr/internal/metrics"
)

// Type names an event.
type Type string

const (
	FriendRequestReceived Type = "friend_request.received"
	FriendRequestAccepted Type = "friend_request.accepted"
	FriendRequestRejected Type = "friend_request.rejected"
	ProfileRegistered     Type = "profile.registered"
)

const subscriberBuffer = 16

// Event is the JSON frame sent to subscribers.
type Event struct {
	Type Type      `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Hub tracks subscribers per address.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[chan []byte]struct{}
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewHub creates a hub. WebSocket upgrades are accepted from allowedOrigins;
// "*" allows any origin.
func NewHub(allowedOrigins []string, m *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]map[chan []byte]struct{}),
		upgrader: newUpgrader(allowedOrigins),
		metrics:  m,
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a subscriber for address. The returned function
// unregisters it and closes the channel.
func (h *Hub) Subscribe(address string) (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.clients[address]
	if !ok {
		set = make(map[chan []byte]struct{})
		h.clients[address] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()
	h.metrics.SubscriberAdded()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients[address], ch)
			if len(h.clients[address]) == 0 {
				delete(h.clients, address)
			}
			close(ch)
			h.mu.Unlock()
			h.metrics.SubscriberRemoved()
		})
	}
}

// Subscribers returns the number of subscribers watching address.
func (h *Hub) Subscribers(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[address])
}

// Publish sends ev to every subscriber of address.
func (h *Hub) Publish(address string, ev Event) {
	data, ok := h.encode(ev)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients[address] {
		h.send(ch, data)
	}
}

// Broadcast sends ev to every subscriber.
func (h *Hub) Broadcast(ev Event) {
	data, ok := h.encode(ev)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for ch := range set {
			h.send(ch, data)
		}
	}
}

func (h *Hub) send(ch chan []byte, data []byte) {
	select {
	case ch <- data:
		h.metrics.EventSent()
	default:
		h.metrics.EventDropped()
	}
}

func (h *Hub) encode(ev Event) ([]byte, bool) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(ev.Type)).Msg("encode event")
		return nil, false
	}
	return data, true
}
