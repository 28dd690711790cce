package peer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"
)

// State is the lifecycle of one peer link, as seen from this side.
type State int

const (
	StateAbsent State = iota
	StateLinking
	StateUsable
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateLinking:
		return "linking"
	case StateUsable:
		return "usable"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Link is this side's mirror of one peer pairing. The remote member owns an
// independent mirror; the two coordinate only through relayed messages.
// All fields are owned by the engine's event loop; nothing here locks.
type Link struct {
	RemoteID   string
	RemoteName string

	cap   Capability
	state State

	// remoteDescSet gates candidate application: candidates arriving before
	// the remote description are buffered and flushed afterwards, in arrival
	// order. Applying them earlier would silently drop them.
	remoteDescSet bool

	// offerPending is true while our own offer is in flight, for glare
	// detection.
	offerPending bool

	pendingCandidates []webrtc.ICECandidateInit

	// deadline bounds negotiation. Zero until negotiation actually starts:
	// an idle link with no transfer never negotiates and must not time out.
	deadline time.Time
	timeout  time.Duration
}

func newLink(remoteID, remoteName string, capability Capability, timeout time.Duration) *Link {
	return &Link{
		RemoteID:   remoteID,
		RemoteName: remoteName,
		cap:        capability,
		state:      StateLinking,
		timeout:    timeout,
	}
}

// State returns the link's current state.
func (l *Link) State() State { return l.state }

// startOffer generates and sends an offer. Invoked when the capability
// raises negotiation-needed, i.e. this side initiated a transfer.
func (l *Link) startOffer(localID string, signals SignalSender) error {
	offer, err := l.cap.CreateOffer()
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := l.cap.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to apply local offer: %w", err)
	}
	if err := signals.SendSignal(l.RemoteID, offer); err != nil {
		return fmt.Errorf("failed to send offer: %w", err)
	}
	l.offerPending = true
	l.armDeadline()
	slog.Info("Sent offer", "local", localID, "remote", l.RemoteID)
	return nil
}

// yieldsOnGlare reports whether a remote offer must displace our pending
// one. The member with the smaller identity keeps its own offer; the larger
// one yields. The transport cannot take a remote offer once its own is
// applied, so the engine replaces the yielding side's transport before
// delivering the offer here.
func (l *Link) yieldsOnGlare(localID string, desc webrtc.SessionDescription) bool {
	return desc.Type == webrtc.SDPTypeOffer && l.offerPending && localID > l.RemoteID
}

// handleRemoteDescription applies an incoming offer or answer. For an offer
// it produces and sends an answer. An offer arriving while ours is pending
// is the glare case already decided by yieldsOnGlare: reaching this method
// with offerPending set means our offer stands and the remote one is ignored.
func (l *Link) handleRemoteDescription(localID string, desc webrtc.SessionDescription, signals SignalSender) error {
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		if l.offerPending {
			slog.Info("Glare: keeping own offer", "local", localID, "remote", l.RemoteID)
			return nil
		}

		if err := l.cap.SetRemoteDescription(desc); err != nil {
			return fmt.Errorf("failed to apply remote offer: %w", err)
		}
		l.remoteDescSet = true
		l.flushCandidates()
		l.armDeadline()

		answer, err := l.cap.CreateAnswer()
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
		if err := l.cap.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("failed to apply local answer: %w", err)
		}
		if err := signals.SendSignal(l.RemoteID, answer); err != nil {
			return fmt.Errorf("failed to send answer: %w", err)
		}
		return nil

	case webrtc.SDPTypeAnswer:
		if err := l.cap.SetRemoteDescription(desc); err != nil {
			return fmt.Errorf("failed to apply remote answer: %w", err)
		}
		l.offerPending = false
		l.remoteDescSet = true
		l.flushCandidates()
		return nil

	default:
		return fmt.Errorf("unexpected description type %q", desc.Type)
	}
}

// addRemoteCandidate applies a relayed candidate, or buffers it when no
// remote description has been set yet.
func (l *Link) addRemoteCandidate(candidate webrtc.ICECandidateInit) error {
	if !l.remoteDescSet {
		l.pendingCandidates = append(l.pendingCandidates, candidate)
		return nil
	}
	if err := l.cap.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("failed to add candidate: %w", err)
	}
	return nil
}

func (l *Link) flushCandidates() {
	for _, candidate := range l.pendingCandidates {
		if err := l.cap.AddICECandidate(candidate); err != nil {
			slog.Warn("Failed to apply buffered candidate", "remote", l.RemoteID, "error", err)
		}
	}
	l.pendingCandidates = nil
}

// markUsable records that the underlying transport connected.
func (l *Link) markUsable() {
	l.state = StateUsable
	l.deadline = time.Time{}
}

func (l *Link) armDeadline() {
	if l.deadline.IsZero() {
		l.deadline = time.Now().Add(l.timeout)
	}
}

// expired reports whether negotiation has been running past its deadline.
func (l *Link) expired(now time.Time) bool {
	return l.state == StateLinking && !l.deadline.IsZero() && now.After(l.deadline)
}

// close tears down the capability and moves the link to a terminal state.
func (l *Link) close(terminal State) {
	if l.state == StateClosed || l.state == StateFailed {
		return
	}
	if err := l.cap.Close(); err != nil {
		slog.Warn("Failed to close capability", "remote", l.RemoteID, "error", err)
	}
	l.state = terminal
}
