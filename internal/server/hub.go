package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teemow/meetwise/internal/instrumentation"
	"github.com/teemow/meetwise/internal/logging"
	"github.com/teemow/meetwise/internal/session"
	calsync "github.com/teemow/meetwise/internal/sync"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = wsPongWait * 9 / 10
	wsMaxMessageSize = 4096
	wsSendBuffer     = 16
)

// Message types exchanged over the dashboard websocket.
const (
	MessageSnapshot   = "snapshot"
	MessageVisibility = "visibility"
	MessageRefresh    = "refresh"
	MessageError      = "error"
)

// wsMessage is the envelope for both directions.
type wsMessage struct {
	Type     string            `json:"type"`
	Snapshot *calsync.Snapshot `json:"snapshot,omitempty"`
	Visible  *bool             `json:"visible,omitempty"`
	Error    string            `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes scheduler snapshots to every connected dashboard and forwards
// visibility and refresh requests back to the scheduler.
type Hub struct {
	scheduler *calsync.Scheduler
	metrics   *instrumentation.Metrics
	logger    *slog.Logger

	clients    map[*wsClient]struct{}
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	mu         sync.Mutex
}

// NewHub creates a hub for scheduler. Call Run to start it.
func NewHub(scheduler *calsync.Scheduler, metrics *instrumentation.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		scheduler:  scheduler,
		metrics:    metrics,
		logger:     logging.WithComponent(logger, "hub"),
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte, wsSendBuffer),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast requests until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	cancel := h.scheduler.Subscribe(h.publish)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.metrics.IncrementDashboardConnections(ctx)
			h.logger.Debug("dashboard connected")
			if data, err := encodeSnapshot(h.scheduler.Snapshot()); err == nil {
				h.deliver(c, data)
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.metrics.DecrementDashboardConnections(ctx)
			h.logger.Debug("dashboard disconnected")

		case data := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				h.deliverLocked(c, data)
			}
			h.mu.Unlock()
		}
	}
}

// publish is the scheduler subscription. It never blocks; when the queue is
// full the snapshot is dropped because a newer one follows.
func (h *Hub) publish(snap calsync.Snapshot) {
	data, err := encodeSnapshot(snap)
	if err != nil {
		h.logger.Warn("failed to encode snapshot", logging.Err(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Debug("snapshot dropped, broadcast queue full")
	}
}

func (h *Hub) deliver(c *wsClient, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(c, data)
}

// deliverLocked drops clients that cannot keep up.
func (h *Hub) deliverLocked(c *wsClient, data []byte) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeWS upgrades a signed-in request and attaches it to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, _ session.Record) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, wsSendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(context.WithoutCancel(r.Context()))
}

func encodeSnapshot(snap calsync.Snapshot) ([]byte, error) {
	return json.Marshal(wsMessage{Type: MessageSnapshot, Snapshot: &snap})
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected websocket close", logging.Err(err))
			}
			return
		}
		c.handle(ctx, msg)
	}
}

func (c *wsClient) handle(ctx context.Context, msg wsMessage) {
	var err error
	switch msg.Type {
	case MessageVisibility:
		if msg.Visible == nil {
			c.reply("visibility message requires a visible field")
			return
		}
		err = c.hub.scheduler.SetVisible(ctx, *msg.Visible)
	case MessageRefresh:
		err = c.hub.scheduler.Refresh(ctx)
	default:
		c.reply("unknown message type " + msg.Type)
		return
	}
	if err != nil {
		c.reply(err.Error())
	}
}

func (c *wsClient) reply(text string) {
	data, err := json.Marshal(wsMessage{Type: MessageError, Error: text})
	if err != nil {
		return
	}
	c.hub.deliver(c, data)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
