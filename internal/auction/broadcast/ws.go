package broadcast

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Handshake origin checking is the request facade's concern upstream of
	// this hub, not the hub's; accept whatever the caller lets through.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeTopic upgrades the request to a WebSocket connection and streams
// events published to topic until the client disconnects.
func (h *Hub) ServeTopic(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("topic", topic), slog.Any("error", err))
		return
	}

	sub, unsubscribe := h.subscribe(topic)
	defer unsubscribe()
	defer conn.Close()

	go h.drainClientReads(conn)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case body, ok := <-sub.ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainClientReads discards anything the client sends (this topic is
// subscribe-only) so incoming control frames (close, ping, pong) are still
// processed by gorilla's read loop; no read deadline is set.
func (h *Hub) drainClientReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
