package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"unoc/core-go/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSlot = 32
)

// SnapshotSource provides the message a freshly connected client gets
// before any broadcast reaches it.
type SnapshotSource func() Message

// Hub fans feed messages out to websocket subscribers. All bookkeeping
// happens on the Run goroutine; ServeHTTP and Broadcast only pass
// messages over channels.
type Hub struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	snapshot SnapshotSource
	upgrader websocket.Upgrader

	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan Message
	clients    map[*subscriber]struct{}
}

type subscriber struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

func NewHub(log zerolog.Logger, m *metrics.Metrics, snapshot SnapshotSource) *Hub {
	return &Hub{
		log:      log.With().Str("component", "feed_hub").Logger(),
		metrics:  m,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan Message, 64),
		clients:    make(map[*subscriber]struct{}),
	}
}

// Run owns the client set until the context ends. On shutdown every
// subscriber connection is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for s := range h.clients {
				close(s.send)
				delete(h.clients, s)
			}
			return
		case s := <-h.register:
			h.clients[s] = struct{}{}
			h.metrics.AddFeedClient()
			h.log.Info().Str("client_id", s.id.String()).Int("clients", len(h.clients)).Msg("feed client connected")
			if h.snapshot != nil {
				if raw, err := json.Marshal(h.snapshot()); err == nil {
					s.send <- raw
				}
			}
		case s := <-h.unregister:
			if _, ok := h.clients[s]; ok {
				delete(h.clients, s)
				close(s.send)
				h.metrics.RemoveFeedClient()
				h.log.Info().Str("client_id", s.id.String()).Int("clients", len(h.clients)).Msg("feed client disconnected")
			}
		case msg := <-h.broadcast:
			raw, err := json.Marshal(msg)
			if err != nil {
				h.log.Error().Err(err).Msg("encode broadcast")
				continue
			}
			h.metrics.IncBroadcast(string(msg.Kind))
			for s := range h.clients {
				select {
				case s.send <- raw:
				default:
					// Slow consumer: drop it rather than stall the hub.
					delete(h.clients, s)
					close(s.send)
					h.metrics.RemoveFeedClient()
					h.log.Warn().Str("client_id", s.id.String()).Msg("feed client too slow, dropped")
				}
			}
		}
	}
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(msg Message) {
	h.broadcast <- msg
}

// ServeHTTP upgrades the request and hands the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s := &subscriber{id: uuid.New(), conn: conn, send: make(chan []byte, clientSendSlot)}
	h.register <- s
	go s.writePump()
	go s.readPump(h)
}

// readPump discards inbound frames; the feed is one-way. Its job is to
// notice the close and unregister.
func (s *subscriber) readPump(h *Hub) {
	defer func() {
		h.unregister <- s
		_ = s.conn.Close()
	}()
	s.conn.SetReadLimit(1 << 16)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
