package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RawPublisher is the part of broadcast.Hub the bridge relays into. It is
// an interface rather than *broadcast.Hub because the broadcast package
// imports this one.
type RawPublisher interface {
	PublishRaw(topic string, body json.RawMessage)
}

// bridgedKinds are the lifecycle events the scheduler process emits.
// NEW_BID and PAYMENT_COMPLETED are deliberately excluded: auction-core
// already publishes those into its own hub the instant it handles the
// request, and binding them here too would deliver every one of them
// twice once the outbox relay echoes it back over the exchange.
var bridgedKinds = []Kind{
	KindAuctionStarted,
	KindAuctionEnded,
	KindAuctionEndedNoBid,
	KindPaymentFallback,
	KindAuctionNoWinner,
}

// globalKinds are the bridged kinds that also fan out to the cross-auction
// auctions/updates topic, matching what the scheduler published locally
// before this bridge existed.
var globalKinds = map[Kind]bool{
	KindAuctionStarted:    true,
	KindAuctionEnded:      true,
	KindAuctionEndedNoBid: true,
}

// BroadcastBridge consumes the lifecycle events the outbox relay publishes
// to RabbitMQ and re-publishes them into the local hub. The lifecycle
// scheduler runs as its own process and owns no WebSocket surface, so
// without this bridge none of its events would ever reach a subscriber
// connected to the request facade's hub.
type BroadcastBridge struct {
	conn     *amqp.Connection
	exchange string
	hub      RawPublisher
	logger   *slog.Logger
}

// NewBroadcastBridge creates a bridge over an existing AMQP connection.
func NewBroadcastBridge(conn *amqp.Connection, exchange string, hub RawPublisher, logger *slog.Logger) *BroadcastBridge {
	return &BroadcastBridge{conn: conn, exchange: exchange, hub: hub, logger: logger}
}

// Run declares its own exclusive queue bound to each bridged routing key
// and relays each delivery into the hub until ctx is cancelled.
func (b *BroadcastBridge) Run(ctx context.Context) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, kind := range bridgedKinds {
		if err := ch.QueueBind(q.Name, string(kind), b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue for %s: %w", kind, err)
		}
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	b.logger.Info("broadcast bridge consuming", slog.String("exchange", b.exchange))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("broadcast bridge channel closed")
			}
			b.relay(d.Body)
		}
	}
}

func (b *BroadcastBridge) relay(body []byte) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		b.logger.Error("failed to decode bridged event", slog.Any("error", err))
		return
	}

	raw := json.RawMessage(body)
	b.hub.PublishRaw("auction/"+evt.AuctionID.String(), raw)
	if globalKinds[evt.Kind] {
		b.hub.PublishRaw("auctions/updates", raw)
	}
}
