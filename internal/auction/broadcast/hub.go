// Package broadcast implements C5, the broadcast hub: per-auction topic
// fan-out of state events to WebSocket subscribers. Delivery is best-effort
// — a subscriber joining after an event does not see it, and the hub never
// mutates auction state itself.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/floroz/gavel/internal/auction/events"
)

// GlobalTopic is the cross-auction lifecycle topic (auctions/updates).
const GlobalTopic = "auctions/updates"

// subscriberBuffer bounds how many events a slow subscriber can queue;
// once it is full the hub drops further events for that subscriber, which
// stays subscribed, rather than blocking the publisher.
const subscriberBuffer = 32

// Hub fans out events to topic subscribers over WebSocket connections.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	logger      *slog.Logger
}

type subscriber struct {
	ch chan []byte
}

// New creates an empty Hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*subscriber]struct{}),
		logger:      logger,
	}
}

// Publish fans an event out to every current subscriber of topic. Events
// carry no causality id; a reconnecting client is expected to refresh from
// the state endpoints rather than rely on replay.
func (h *Hub) Publish(topic string, event events.Event) {
	body, err := event.Marshal()
	if err != nil {
		h.logger.Error("failed to marshal broadcast event", slog.String("topic", topic), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	subs := h.subscribers[topic]
	targets := make([]*subscriber, 0, len(subs))
	for s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.ch <- body:
		default:
			h.logger.Warn("dropping event for slow subscriber", slog.String("topic", topic))
		}
	}
}

// PublishRaw is a convenience for handlers that already have a
// pre-marshaled body (e.g. re-publishing an event read back from the
// outbox).
func (h *Hub) PublishRaw(topic string, body json.RawMessage) {
	h.mu.RLock()
	subs := h.subscribers[topic]
	targets := make([]*subscriber, 0, len(subs))
	for s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.ch <- body:
		default:
			h.logger.Warn("dropping raw event for slow subscriber", slog.String("topic", topic))
		}
	}
}

// subscribe registers a new subscriber channel for topic and returns it
// along with an unsubscribe function.
func (h *Hub) subscribe(topic string) (*subscriber, func()) {
	s := &subscriber{ch: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[*subscriber]struct{})
	}
	h.subscribers[topic][s] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		delete(h.subscribers[topic], s)
		if len(h.subscribers[topic]) == 0 {
			delete(h.subscribers, topic)
		}
		h.mu.Unlock()
		close(s.ch)
	}
	return s, unsubscribe
}

// TopicForAuction returns the per-auction topic name.
func TopicForAuction(auctionID string) string {
	return "auction/" + auctionID
}
