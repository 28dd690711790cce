package signaling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is a member's connection to the relay. It owns the websocket and
// serializes all reads and writes through its pumps; consumers receive
// everything after the handshake on Incoming.
type Client struct {
	conn *websocket.Conn

	id          string
	displayName string

	incoming chan *Message
	outgoing chan *Message
	done     chan struct{}

	closeOnce sync.Once
}

// Dial connects to the relay, completes the welcome/join handshake and starts
// the read and write pumps. serverURL is a ws:// or wss:// URL of the /ws
// endpoint.
func Dial(ctx context.Context, serverURL, displayName, roomName string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	c := &Client{
		conn:        conn,
		displayName: displayName,
		incoming:    make(chan *Message, 32),
		outgoing:    make(chan *Message, 32),
		done:        make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)

	// The relay speaks first: the welcome frame carries our assigned identity.
	conn.SetReadDeadline(time.Now().Add(writeWait))
	var welcome Message
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read welcome: %w", err)
	}
	if welcome.Type != TypeWelcome {
		conn.Close()
		return nil, fmt.Errorf("expected welcome, got %q", welcome.Type)
	}
	var payload WelcomePayload
	if err := welcome.UnmarshalPayload(&payload); err != nil {
		conn.Close()
		return nil, err
	}
	c.id = payload.ID

	join, err := NewMessage(TypeJoin, JoinPayload{DisplayName: displayName, Room: roomName})
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send join: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// ID returns the relay-assigned member identity.
func (c *Client) ID() string { return c.id }

// DisplayName returns the name this member joined with.
func (c *Client) DisplayName() string { return c.displayName }

// Incoming returns the channel of messages from the relay. It is closed when
// the connection drops.
func (c *Client) Incoming() <-chan *Message { return c.incoming }

// SendSignal sends an offer or answer addressed to receiverID.
func (c *Client) SendSignal(receiverID string, desc webrtc.SessionDescription) error {
	msg, err := NewMessage(TypeSignal, SignalPayload{
		SenderID:   c.id,
		ReceiverID: receiverID,
		Offer:      desc,
	})
	if err != nil {
		return err
	}
	return c.send(msg)
}

// SendCandidate sends one ICE candidate addressed to receiverID.
func (c *Client) SendCandidate(receiverID string, candidate webrtc.ICECandidateInit) error {
	msg, err := NewMessage(TypeCandidate, CandidatePayload{
		SenderID:   c.id,
		ReceiverID: receiverID,
		Candidate:  candidate,
	})
	if err != nil {
		return err
	}
	return c.send(msg)
}

func (c *Client) send(msg *Message) error {
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("relay connection closed")
	}
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
