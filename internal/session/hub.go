package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okian/duelarena/internal/domain/model"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/okian/duelarena/pkg/metrics"
)

const (
	defaultMaxMessageBytes = 4096
	defaultSendBuffer      = 256
)

// Handler receives connection lifecycle events and inbound frames. Handle
// is called from the connection's read loop, so frames of one connection
// are handled one at a time in arrival order.
type Handler interface {
	Connect(ctx context.Context, connectionID string)
	Handle(ctx context.Context, connectionID string, data []byte)
	Disconnect(ctx context.Context, connectionID string)
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub logger.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMaxMessageBytes limits the size of inbound frames.
func WithMaxMessageBytes(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.maxMessageBytes = int64(n)
		}
	}
}

// WithSendBuffer sets the per-connection outbound buffer.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithConnectionIDs overrides connection id generation.
func WithConnectionIDs(fn func() string) HubOption {
	return func(h *Hub) {
		if fn != nil {
			h.newID = fn
		}
	}
}

// WithOriginCheck overrides the websocket origin check. All origins are
// accepted by default.
func WithOriginCheck(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// Hub owns the open websocket connections and writes notifications to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	upgrader        websocket.Upgrader
	maxMessageBytes int64
	sendBuffer      int
	newID           func() string
	logger          logger.Logger

	wg sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		maxMessageBytes: defaultMaxMessageBytes,
		sendBuffer:      defaultSendBuffer,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("session").Named("hub")
	}
	return h
}

// Handler returns the websocket endpoint. Each accepted connection is
// announced to handler, fed its inbound frames and finally disconnected.
func (h *Hub) Handler(handler Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
			return
		}

		c := &client{
			id:      h.newID(),
			conn:    conn,
			hub:     h,
			handler: handler,
			send:    make(chan []byte, h.sendBuffer),
		}
		if !h.add(c) {
			_ = conn.Close()
			return
		}

		ctx := context.WithoutCancel(r.Context())
		h.logger.Debug(ctx, "connection opened",
			logger.String("connectionID", c.id),
			logger.String("remote", conn.RemoteAddr().String()),
		)

		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			c.writeLoop()
		}()
		go func() {
			defer h.wg.Done()
			handler.Connect(ctx, c.id)
			c.readLoop(ctx)
		}()
	})
}

// Deliver writes n to its connection's send buffer. It never blocks.
func (h *Hub) Deliver(_ context.Context, n model.Notification) error {
	data, err := json.Marshal(outbound{Type: n.Type, Payload: n.Payload})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[n.ConnectionID]
	if !ok {
		return ErrUnknownConnection
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their loops to finish.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	metrics.UpdateOpenConnections(len(h.clients))
	return true
}

// remove unregisters c and closes its send channel. Deliver holds the read
// lock while sending, so the channel is never written after close.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.id] != c {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	metrics.UpdateOpenConnections(len(h.clients))
}
