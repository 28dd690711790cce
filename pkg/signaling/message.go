package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/rescp17/roomShare/pkg/room"
)

// Message is the envelope for every frame exchanged with the relay.
// The relay only ever inspects Type and, for routed kinds, the receiverId
// inside the payload; payload semantics belong to the clients.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	// TypeWelcome is sent by the relay as soon as a connection is accepted and
	// tells the client its assigned identity. Identities are never chosen by
	// clients.
	TypeWelcome = "welcome"
	// TypeJoin must be the first message a client sends after connecting.
	TypeJoin = "join"
	// TypeMembers carries the full membership snapshot of the client's room,
	// the client itself included.
	TypeMembers = "members"
	// TypeSignal carries an SDP offer or answer, unicast by receiverId.
	TypeSignal = "signal"
	// TypeCandidate carries one ICE candidate, unicast by receiverId.
	TypeCandidate = "candidate"
)

type WelcomePayload struct {
	ID string `json:"id"`
}

type JoinPayload struct {
	DisplayName string `json:"displayName"`
	Room        string `json:"room"`
}

type MembersPayload struct {
	Members []room.MemberSnapshot `json:"members"`
}

// SignalPayload carries one offer or answer between two members.
// The Offer field holds either type; the embedded SDP type disambiguates.
type SignalPayload struct {
	SenderID   string                    `json:"senderId"`
	ReceiverID string                    `json:"receiverId"`
	Offer      webrtc.SessionDescription `json:"offer"`
}

type CandidatePayload struct {
	SenderID   string                  `json:"senderId"`
	ReceiverID string                  `json:"receiverId"`
	Candidate  webrtc.ICECandidateInit `json:"candidate"`
}

// routed is the minimal view of a unicast payload the relay needs for routing.
type routed struct {
	ReceiverID string `json:"receiverId"`
}

// NewMessage marshals payload into an envelope of the given type.
func NewMessage(msgType string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return &Message{Type: msgType, Payload: raw}, nil
}

// Encode marshals the envelope into one wire frame.
func (m *Message) Encode() ([]byte, error) {
	frame, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Type, err)
	}
	return frame, nil
}

// UnmarshalPayload decodes the envelope's payload into v.
func (m *Message) UnmarshalPayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message of type %q has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}

// ReceiverID extracts the recipient identity from a routed (signal or
// candidate) message without touching the rest of the payload.
func (m *Message) ReceiverID() (string, error) {
	var r routed
	if err := json.Unmarshal(m.Payload, &r); err != nil {
		return "", fmt.Errorf("failed to extract receiverId: %w", err)
	}
	if r.ReceiverID == "" {
		return "", fmt.Errorf("message of type %q has no receiverId", m.Type)
	}
	return r.ReceiverID, nil
}
