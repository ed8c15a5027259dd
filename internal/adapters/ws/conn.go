// Package ws adapts gorilla websocket connections to the connection registry
// and the inbound router.
package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one upgraded socket. Send and Close are safe for concurrent use;
// Read must only be called from the owning read loop.
type Conn struct {
	ws       *websocket.Conn
	settings Settings

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(c *websocket.Conn, s Settings) *Conn {
	conn := &Conn{ws: c, settings: s, closed: make(chan struct{})}
	c.SetReadLimit(s.ReadLimit)
	_ = c.SetReadDeadline(time.Now().Add(s.PongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(s.PongWait))
	})
	return conn
}

// Send writes one text frame. A write that misses the deadline fails, which
// makes the registry drop the connection instead of blocking other targets.
func (c *Conn) Send(p []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Read returns the next data frame. Any frame received also counts as
// liveness and extends the read deadline.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, p, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	return p, nil
}

// Close sends a close frame and releases the socket. Repeated calls are no-ops.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.settings.WriteTimeout))
		err = c.ws.Close()
	})
	return err
}

// keepalive pings the peer until ctx ends or the connection closes. A failed
// ping closes the connection, which unblocks the read loop.
func (c *Conn) keepalive(ctx context.Context) {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-c.closed:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.settings.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					_ = c.Close()
				}
				return
			}
		}
	}
}
