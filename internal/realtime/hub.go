// Package realtime pushes upload notifications to dashboard clients over
// websockets, optionally fanned out across processes with PostgreSQL
// LISTEN/NOTIFY.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/kohort/internal/logging"
)

const (
	outboxSize        = 64
	heartbeatInterval = 30 * time.Second
)

// socket is the part of a websocket connection the hub uses.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// subscriber is one connected dashboard. Its outbox is closed by the hub
// when it is evicted.
type subscriber struct {
	conn   socket
	outbox chan []byte
}

// Hub fans upload events out to websocket subscribers. Publishing never
// blocks: a subscriber whose outbox is full is evicted.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool

	// heartbeat returns the ping schedule and its stop function.
	heartbeat func() (<-chan time.Time, func())
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		heartbeat: func() (<-chan time.Time, func()) {
			t := time.NewTicker(heartbeatInterval)
			return t.C, t.Stop
		},
	}
}

// join adds s unless the hub is closed.
func (h *Hub) join(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s] = struct{}{}
	return true
}

// leave removes s and closes its connection. Unknown subscribers are ignored.
func (h *Hub) leave(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	if ok {
		h.evictLocked(s)
	}
	h.mu.Unlock()

	if ok {
		_ = s.conn.Close()
	}
}

func (h *Hub) evictLocked(s *subscriber) {
	delete(h.subs, s)
	close(s.outbox)
}

// Broadcast queues msg for every subscriber.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.outbox <- msg:
		default:
			logging.Component("realtime").Warn("evicting slow subscriber")
			h.evictLocked(s)
		}
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode realtime payload: %w", err)
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later joins are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		h.evictLocked(s)
	}
}

// Handler upgrades the request and subscribes the connection.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		s := &subscriber{conn: conn, outbox: make(chan []byte, outboxSize)}
		if !h.join(s) {
			_ = conn.Close()
			return
		}
		go h.deliver(s)
		h.drain(s)
	})
}

// drain discards inbound frames until the peer goes away, then leaves.
func (h *Hub) drain(s *subscriber) {
	defer h.leave(s)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// deliver writes queued messages and heartbeats until the outbox closes.
func (h *Hub) deliver(s *subscriber) {
	beats, stop := h.heartbeat()
	defer func() {
		stop()
		_ = s.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, ok := <-s.outbox:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			err = s.conn.WriteMessage(websocket.TextMessage, msg)
		case <-beats:
			err = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}
