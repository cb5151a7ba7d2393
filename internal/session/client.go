package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/duelarena/pkg/logger"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long the peer may stay silent.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// client is one websocket connection.
type client struct {
	id      string
	conn    *websocket.Conn
	hub     *Hub
	handler Handler

	// send is closed by Hub.remove.
	send chan []byte
}

// readLoop feeds inbound frames to the handler until the connection fails.
func (c *client) readLoop(ctx context.Context) {
	defer func() {
		c.hub.remove(c)
		c.handler.Disconnect(ctx, c.id)
		_ = c.conn.Close()
		c.hub.logger.Debug(ctx, "connection closed", logger.String("connectionID", c.id))
	}()

	c.conn.SetReadLimit(c.hub.maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn(ctx, "unexpected close",
					logger.String("connectionID", c.id),
					logger.Error(err),
				)
			}
			return
		}
		c.handler.Handle(ctx, c.id, data)
	}
}

// writeLoop pumps the send buffer to the connection and keeps it alive with
// pings.
func (c *client) writeLoop() {
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
