// Package stream pushes receipt summaries to websocket subscribers.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/GoPolymarket/guardgate/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

const (
	EventSnapshot = "snapshot"
	EventReceipt  = "receipt"
)

// Event is one frame on the stream.
type Event struct {
	Type     string                 `json:"type"`
	Receipt  *model.ReceiptSummary  `json:"receipt,omitempty"`
	Receipts []model.ReceiptSummary `json:"receipts,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans receipts out to connected clients and keeps the most recent ones
// for late joiners. A client that cannot keep up is disconnected.
type Hub struct {
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	clients   map[*client]struct{}
	recent    []model.ReceiptSummary
	recentMax int
}

func NewHub(recentMax int) *Hub {
	if recentMax <= 0 {
		recentMax = 100
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:   make(map[*client]struct{}),
		recentMax: recentMax,
	}
}

func (h *Hub) Name() string { return "stream" }

// Insert broadcasts the receipt's summary. It never blocks on a client.
func (h *Hub) Insert(ctx context.Context, receipt *model.FillReceipt) error {
	summary := receipt.Summary()
	msg, err := json.Marshal(Event{Type: EventReceipt, Receipt: &summary})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, summary)
	if len(h.recent) > h.recentMax {
		h.recent = h.recent[len(h.recent)-h.recentMax:]
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logger.Warn("stream client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			h.dropLocked(c)
		}
	}
	return nil
}

// Recent returns a copy of the buffered summaries, oldest first.
func (h *Hub) Recent() []model.ReceiptSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.ReceiptSummary, len(h.recent))
	copy(out, h.recent)
	return out
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and sends a snapshot of recent receipts
// before any live event.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("stream upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	snapshot, err := json.Marshal(Event{Type: EventSnapshot, Receipts: append([]model.ReceiptSummary{}, h.recent...)})
	if err != nil {
		h.mu.Unlock()
		conn.Close()
		return
	}
	c.send <- snapshot
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// readLoop only watches for the peer going away; clients send nothing useful.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
