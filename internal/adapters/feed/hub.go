package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/belay/internal/domain/types"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 64
	broadcastSize  = 256
)

// ErrHubClosed is returned by Publish after Close.
var ErrHubClosed = errors.New("feed hub closed")

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans messages out to WebSocket clients. A newly connected client
// first receives the latest state message.
type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	broadcast  chan hubMessage
	stop       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	logger     logger.Logger

	// owned by Run
	clients   map[*client]struct{}
	lastState []byte
}

type hubMessage struct {
	kind string
	data []byte
}

// HubOption applies a configuration option to the Hub.
type HubOption func(*Hub)

// WithHubLogger sets a custom logger.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin replaces the origin check of the upgrader.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// NewHub returns a hub; call Run to start it.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan hubMessage, broadcastSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("feed")
	}
	return h
}

// Run owns the client set until ctx is done or Close is called.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for c := range h.clients {
			h.drop(c)
		}
		metrics.UpdateFeedClients(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.UpdateFeedClients(len(h.clients))
			if h.lastState != nil {
				c.send <- h.lastState
			}
			h.logger.Debug(ctx, "display connected", logger.String("client", c.id))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				metrics.UpdateFeedClients(len(h.clients))
				h.logger.Debug(ctx, "display disconnected", logger.String("client", c.id))
			}
		case m := <-h.broadcast:
			if m.kind == types.MessageState {
				h.lastState = m.data
			}
			for c := range h.clients {
				select {
				case c.send <- m.data:
				default:
					metrics.RecordFeedDropped("websocket")
					h.drop(c)
				}
			}
			metrics.UpdateFeedClients(len(h.clients))
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
}

// Publish implements Publisher. The message is encoded once and queued for
// every client; a full broadcast buffer drops it.
func (h *Hub) Publish(_ context.Context, msg types.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	select {
	case <-h.stop:
		return ErrHubClosed
	default:
	}
	select {
	case h.broadcast <- hubMessage{kind: msg.Type, data: data}:
		metrics.RecordFeedPublished("websocket", msg.Type)
	default:
		metrics.RecordFeedDropped("websocket")
	}
	return nil
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() { close(h.stop) })
	return nil
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientSendSize)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards client input and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug(context.Background(), "websocket read failed", logger.Error(err))
			}
			return
		}
	}
}

// writePump sends queued messages and keeps the connection alive with pings.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
