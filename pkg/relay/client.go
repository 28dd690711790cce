package relay

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rescp17/roomShare/pkg/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Signaling frames are small; SDP bodies fit
	// comfortably in 64 KB.
	maxMessageSize = 64 * 1024

	// Outbound queue depth per connection. A member whose queue is full has
	// frames dropped rather than stalling the hub.
	sendQueueSize = 256
)

// Client wraps a single member connection. The identity is assigned by the
// relay at accept time; clients never choose their own.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// ID is the connection-scoped member identity.
	ID string

	// displayName and room are set by the hub when the join message is
	// processed. Only the hub goroutine touches them.
	displayName string
	room        string
	joined      bool

	// send carries pre-marshaled frames to the write pump.
	send chan []byte
}

// ReadPump pumps frames from the websocket connection to the hub. It runs in
// a per-connection goroutine; all reads happen here. A malformed frame ends
// the loop, closing only this connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Connection read failed", "member", c.ID, "error", err)
			}
			return
		}

		var msg signaling.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("Closing connection on malformed frame", "member", c.ID, "error", err)
			return
		}

		c.hub.inbound <- inboundFrame{client: c, msg: &msg, raw: raw}
	}
}

// WritePump pumps frames from the hub to the websocket connection and keeps
// the connection alive with pings. All writes happen here.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands a frame to the client's write pump without blocking. Frames
// to a stalled member are dropped; the next membership broadcast reconciles
// any state the member missed.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		slog.Warn("Dropping frame for slow member", "member", c.ID)
	}
}
