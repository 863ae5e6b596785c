package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one open calendar view of a member. Members only listen; frames
// sent by the browser are discarded.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	memberID int64
	send     chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, memberID int64) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		memberID: memberID,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Run serves the connection until the browser closes it or ctx ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// CloseRead answers pings and cancels ctx once the peer goes away.
	ctx = c.conn.CloseRead(ctx)

	status, reason := c.deliver(ctx)
	c.conn.Close(status, reason)
	c.hub.logger.Debug("websocket closed", "member_id", c.memberID, "status", status, "reason", reason)
}

// deliver forwards queued notifications and pings the browser so dead
// connections are noticed. It reports why delivery stopped.
func (c *Client) deliver(ctx context.Context) (ws.StatusCode, string) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return ws.StatusGoingAway, "unregistered"
			}
			if err := c.write(ctx, msg); err != nil {
				return ws.StatusInternalError, "write failed"
			}
		case <-ticker.C:
			if err := c.ping(ctx); err != nil {
				return ws.StatusPolicyViolation, "ping timeout"
			}
		case <-ctx.Done():
			return ws.StatusNormalClosure, ""
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}

func (c *Client) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Ping(ctx)
}
