// Package ws is the realtime fanout hub. Messages are {type, data} JSON
// objects pushed to every connected websocket and SSE subscriber.
//
// Delivery is at-most-once and best-effort: Publish never blocks, and a
// subscriber whose buffer is full misses that message.
//
//	hub := ws.NewHub()
//	go hub.Run(ctx)
//
//	router.Get("/ws", "realtime.ws", func(w http.ResponseWriter, r *http.Request) {
//	    hub.Upgrade(w, r)
//	})
//
//	hub.Publish("STOCK_UPDATED", map[string]any{"id": 3, "stock": 11})
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Message is the wire shape of every fanout push.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ─── Subscriber ───────────────────────────────────────────────────────────────

// Subscriber receives encoded messages on C until it is removed.
type Subscriber struct {
	C         <-chan []byte
	send      chan []byte
	transport string
}

func newSubscriber(transport string) *Subscriber {
	ch := make(chan []byte, sendBuffer)
	return &Subscriber{C: ch, send: ch, transport: transport}
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

// Hub tracks subscribers and fans messages out to them.
type Hub struct {
	subs       map[*Subscriber]struct{}
	broadcast  chan []byte
	register   chan *Subscriber
	unregister chan *Subscriber
	done       chan struct{}
	count      atomic.Int64
	dropped    atomic.Int64

	upgrader websocket.Upgrader
}

// NewHub creates a Hub. checkOrigin may be nil to allow any origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		subs:       make(map[*Subscriber]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Run is the hub event loop. It returns when ctx is cancelled, closing
// every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for s := range h.subs {
				h.remove(s)
			}
			return

		case s := <-h.register:
			h.subs[s] = struct{}{}
			h.count.Add(1)
			metrics.FanoutClients.WithLabelValues(s.transport).Inc()

		case s := <-h.unregister:
			h.remove(s)

		case msg := <-h.broadcast:
			for s := range h.subs {
				select {
				case s.send <- msg:
				default:
					h.dropped.Add(1)
				}
			}
		}
	}
}

func (h *Hub) remove(s *Subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
	h.count.Add(-1)
	metrics.FanoutClients.WithLabelValues(s.transport).Dec()
}

// Publish encodes {type, data} and queues it for every subscriber.
// It never blocks; when the hub is backed up the message is dropped.
func (h *Hub) Publish(msgType string, data any) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		logger.Warn("ws: encode failed", "type", msgType, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.dropped.Add(1)
	}
}

// Subscribe registers a subscriber. Call Unsubscribe when done.
// Returns nil after the hub has stopped.
func (h *Hub) Subscribe(transport string) *Subscriber {
	s := newSubscriber(transport)
	select {
	case h.register <- s:
		return s
	case <-h.done:
		return nil
	}
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// ClientCount returns the number of live subscribers.
func (h *Hub) ClientCount() int { return int(h.count.Load()) }

// Dropped returns how many per-subscriber deliveries were skipped.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ─── Websocket transport ──────────────────────────────────────────────────────

// Upgrade turns the request into a websocket subscriber. Clients only
// listen; anything they send is discarded.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithCtx(r.Context()).Warn("ws: upgrade failed", "error", err)
		return
	}

	s := h.Subscribe("websocket")
	if s == nil {
		conn.Close()
		return
	}
	go h.writePump(conn, s)
	go h.readPump(conn, s)
}

func (h *Hub) readPump(conn *websocket.Conn, s *Subscriber) {
	defer func() {
		h.Unsubscribe(s)
		conn.Close()
	}()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("ws: unexpected close", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
