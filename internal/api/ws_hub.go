package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atmx/liquidation-engine/internal/events"
	"github.com/atmx/liquidation-engine/internal/metrics"
	"github.com/atmx/liquidation-engine/internal/model"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type   string                   `json:"type"`
	Record *model.LiquidationRecord `json:"record,omitempty"`
	Data   string                   `json:"data,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	sub  *events.Subscription
	send chan []byte // replies from the read pump
	done chan struct{}
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

// WSHub gives every connected client its own event bus subscription, so a
// slow client only drops its own events.
type WSHub struct {
	bus        *events.Bus
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	quit       chan struct{} // closed when Run returns
	mu         sync.RWMutex
}

// NewWSHub creates a hub that streams events from bus.
func NewWSHub(bus *events.Bus) *WSHub {
	return &WSHub{
		bus:        bus,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		quit:       make(chan struct{}),
	}
}

// Run tracks client registrations until ctx is cancelled, then disconnects
// every remaining client. Must be called in a goroutine.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			slog.Info("ws client connected", "total", total)

		case c := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, c)
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.WebSocketClients.Set(0)
			return
		}
	}
}

// Clients returns the number of registered clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so the client sees every
	// event published after its dial returns.
	sub := h.bus.Subscribe()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	c := &wsClient{
		conn: conn,
		sub:  sub,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	select {
	case h.register <- c:
	case <-h.quit:
		sub.Close()
		conn.Close()
		return
	}

	go h.readPump(c)
	go h.writePump(c)
}

// readPump detects disconnects and echoes client text frames.
func (h *WSHub) readPump(c *wsClient) {
	defer c.close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		reply, err := json.Marshal(WSMessage{Type: "echo", Data: string(data)})
		if err != nil {
			continue
		}
		select {
		case c.send <- reply:
		default:
			// Drop if buffer full to avoid blocking the read loop.
		}
	}
}

// writePump owns every write to the connection.
func (h *WSHub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sub.Close()
		c.conn.Close()
		select {
		case h.unregister <- c:
		case <-h.quit:
		}
	}()

	for {
		select {
		case <-c.done:
			return

		case ev, ok := <-c.sub.Events():
			if !ok {
				return
			}
			rec := ev.Record
			data, err := json.Marshal(WSMessage{Type: "liquidation", Record: &rec})
			if err != nil {
				continue
			}
			if !c.write(websocket.TextMessage, data) {
				return
			}

		case msg := <-c.send:
			if !c.write(websocket.TextMessage, msg) {
				return
			}

		case <-ticker.C:
			// Ping to keep the connection alive through proxies.
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *wsClient) write(kind int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, data) == nil
}
