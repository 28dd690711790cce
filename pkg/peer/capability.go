package peer

import (
	"github.com/pion/webrtc/v4"

	"github.com/rescp17/roomShare/pkg/transfer"
)

// Capability is the underlying point-to-point secure transport behind one
// peer link. The negotiation engine configures and drives it but does not
// implement it; the pion adapter below is the production implementation and
// tests substitute fakes.
type Capability interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	CreateDataChannel(label string) (transfer.DataChannel, error)

	OnICECandidate(f func(webrtc.ICECandidateInit))
	OnNegotiationNeeded(f func())
	OnDataChannel(f func(transfer.DataChannel))
	OnConnected(f func())

	Close() error
}

// CapabilityFactory creates one capability per peer link.
type CapabilityFactory func() (Capability, error)

// SignalSender carries negotiation messages to a remote member through the
// relay. Implemented by *signaling.Client.
type SignalSender interface {
	SendSignal(receiverID string, desc webrtc.SessionDescription) error
	SendCandidate(receiverID string, candidate webrtc.ICECandidateInit) error
}
