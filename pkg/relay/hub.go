package relay

import (
	"context"
	"log/slog"

	"github.com/rescp17/roomShare/pkg/room"
	"github.com/rescp17/roomShare/pkg/signaling"
)

// inboundFrame pairs a parsed message with its originating client and the
// raw bytes, so routed frames can be forwarded verbatim.
type inboundFrame struct {
	client *Client
	msg    *signaling.Message
	raw    []byte
}

// Hub owns all relay state. A single goroutine (Run) processes registration,
// disconnects and inbound frames, so room membership is never observed
// half-applied.
type Hub struct {
	registry *room.Registry

	// clients maps member identity -> connection, joined or not.
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
}

func NewHub() *Hub {
	return &Hub{
		registry:   room.NewRegistry(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, 64),
	}
}

// Run is the hub's event loop. It exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case client := <-h.register:
			h.clients[client.ID] = client
			slog.Info("Member connected", "member", client.ID)
			h.sendWelcome(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client.ID]; !ok {
				continue
			}
			delete(h.clients, client.ID)
			close(client.send)

			if roomName, ok := h.registry.Leave(client.ID); ok {
				slog.Info("Member left room", "member", client.ID, "room", roomName)
				h.broadcastMembers(roomName)
			}

		case frame := <-h.inbound:
			h.route(frame)
		}
	}
}

func (h *Hub) route(frame inboundFrame) {
	switch frame.msg.Type {
	case signaling.TypeJoin:
		h.handleJoin(frame)

	case signaling.TypeSignal, signaling.TypeCandidate:
		h.forward(frame)

	default:
		slog.Warn("Unknown message type, closing connection",
			"member", frame.client.ID, "type", frame.msg.Type)
		frame.client.conn.Close()
	}
}

func (h *Hub) handleJoin(frame inboundFrame) {
	var payload signaling.JoinPayload
	if err := frame.msg.UnmarshalPayload(&payload); err != nil || payload.Room == "" {
		slog.Warn("Invalid join, closing connection", "member", frame.client.ID, "error", err)
		frame.client.conn.Close()
		return
	}

	previousRoom := frame.client.room
	frame.client.displayName = payload.DisplayName
	frame.client.room = payload.Room
	frame.client.joined = true

	h.registry.Join(payload.Room, frame.client.ID, payload.DisplayName)
	slog.Info("Member joined room",
		"member", frame.client.ID, "room", payload.Room, "name", payload.DisplayName)

	h.broadcastMembers(payload.Room)
	// Joining moves the member out of any previous room, whose remaining
	// members need the shrunk snapshot.
	if previousRoom != "" && previousRoom != payload.Room {
		h.broadcastMembers(previousRoom)
	}
}

// forward delivers a signal or candidate frame, byte-identical, to the single
// addressed recipient. Frames for disconnected recipients are dropped without
// notifying the sender; the next membership broadcast reconciles the peers.
func (h *Hub) forward(frame inboundFrame) {
	receiverID, err := frame.msg.ReceiverID()
	if err != nil {
		slog.Warn("Unroutable frame, closing connection", "member", frame.client.ID, "error", err)
		frame.client.conn.Close()
		return
	}

	recipient, ok := h.clients[receiverID]
	if !ok || !recipient.joined || recipient.room != frame.client.room {
		slog.Info("Dropping frame for absent recipient",
			"sender", frame.client.ID, "receiver", receiverID, "type", frame.msg.Type)
		return
	}

	recipient.enqueue(frame.raw)
}

// sendWelcome tells a freshly accepted client its assigned identity.
func (h *Hub) sendWelcome(client *Client) {
	msg, err := signaling.NewMessage(signaling.TypeWelcome, signaling.WelcomePayload{ID: client.ID})
	if err != nil {
		slog.Error("Failed to build welcome", "member", client.ID, "error", err)
		return
	}
	frame, err := msg.Encode()
	if err != nil {
		slog.Error("Failed to encode welcome", "member", client.ID, "error", err)
		return
	}
	client.enqueue(frame)
}

// broadcastMembers sends the room's full membership snapshot to every member
// of the room, the newly joined one included.
func (h *Hub) broadcastMembers(roomName string) {
	snapshot := h.registry.ListMembers(roomName)
	msg, err := signaling.NewMessage(signaling.TypeMembers, signaling.MembersPayload{Members: snapshot})
	if err != nil {
		slog.Error("Failed to build members broadcast", "room", roomName, "error", err)
		return
	}
	frame, err := msg.Encode()
	if err != nil {
		slog.Error("Failed to encode members broadcast", "room", roomName, "error", err)
		return
	}

	for _, member := range snapshot {
		if client, ok := h.clients[member.ID]; ok {
			client.enqueue(frame)
		}
	}
}
