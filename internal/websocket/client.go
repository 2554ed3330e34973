package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	keepAlive      = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// errDropped means the hub closed the client's queue.
var errDropped = errors.New("dropped by hub")

// Client is one subscriber connection. Frames from the peer are ignored; the
// hub owns send and closes it on Unregister.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Run serves the connection until the peer leaves, ctx ends or the hub drops
// the client. The welcome message, if any, is the first frame written.
func (c *Client) Run(ctx context.Context, welcome func() Message) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	if welcome != nil {
		c.hub.Send(c, welcome())
	}

	err := c.serve(c.conn.CloseRead(ctx))
	switch {
	case errors.Is(err, errDropped):
		c.conn.Close(ws.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled), isPeerClose(err):
		c.conn.CloseNow()
	default:
		c.hub.logger.Debug("websocket client closed", "error", err)
		c.conn.CloseNow()
	}
}

func (c *Client) serve(ctx context.Context) error {
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-c.send:
			if !ok {
				return errDropped
			}
			if err := c.write(ctx, data); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ticker.C:
			if err := c.ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *Client) write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, data)
}

func (c *Client) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Ping(ctx)
}

func isPeerClose(err error) bool {
	switch ws.CloseStatus(err) {
	case ws.StatusNormalClosure, ws.StatusGoingAway:
		return true
	}
	return false
}
