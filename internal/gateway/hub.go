// Package gateway fans candle window snapshots out to WebSocket clients.
// Every broadcast carries the whole window, so clients never need replay
// or gap tracking; a missed frame is healed by the next one.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"trafficpulse/internal/model"

	"github.com/gorilla/websocket"
)

// Frame is the wire envelope pushed to every client. TS is the end time of
// the newest candle in the window, in Unix seconds.
type Frame struct {
	Type     string         `json:"type"`
	Interval int64          `json:"interval"`
	TS       int64          `json:"ts"`
	Candles  []model.Candle `json:"candles"`
}

// Hub tracks connected clients and the latest encoded frame. A client
// joining between broadcasts gets the latest frame immediately; a client
// too slow to drain its queue drops frames rather than stalling the rest.
type Hub struct {
	interval int64
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  []byte

	// Optional hooks for metrics.
	OnBroadcast func(clients int)
	OnDropped   func()
	OnClients   func(n int)
}

// NewHub creates a Hub for windows of the given candle interval.
func NewHub(interval int64) *Hub {
	return &Hub{
		interval: interval,
		clients:  make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run consumes window snapshots and broadcasts each one. Blocks until ctx
// is cancelled or in is closed.
func (h *Hub) Run(ctx context.Context, in <-chan []model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case window, ok := <-in:
			if !ok {
				return
			}
			h.Broadcast(window)
		}
	}
}

// Broadcast encodes the window once and fans it out to every client.
func (h *Hub) Broadcast(window []model.Candle) {
	if len(window) == 0 {
		return
	}

	frame := Frame{
		Type:     "candles",
		Interval: h.interval,
		TS:       window[len(window)-1].TS.Unix(),
		Candles:  window,
	}
	buf, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[gateway] frame encode error: %v", err)
		return
	}

	h.mu.Lock()
	h.latest = buf
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- buf:
		default:
			if h.OnDropped != nil {
				h.OnDropped()
			}
		}
	}
	if h.OnBroadcast != nil {
		h.OnBroadcast(len(h.clients))
	}
}

// HandleWS upgrades the HTTP request and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}
	h.register(conn)
}

func (h *Hub) register(conn *websocket.Conn) *Client {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 16),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	latest := h.latest
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)
	if h.OnClients != nil {
		h.OnClients(count)
	}

	// Join snapshot: the freshly-made queue always has room for one frame.
	if latest != nil {
		client.send <- latest
	}

	go client.writePump()
	go client.readPump()
	return client
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	log.Printf("[gateway] ws client disconnected (%d total)", count)
	if h.OnClients != nil {
		h.OnClients(count)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LatestFrame returns the last broadcast frame, or nil before the first one.
func (h *Hub) LatestFrame() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}
