package peer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"

	"github.com/rescp17/roomShare/internal/app_events/member"
	"github.com/rescp17/roomShare/pkg/room"
	"github.com/rescp17/roomShare/pkg/transfer"
)

// EngineConfig holds the negotiation engine settings.
type EngineConfig struct {
	// LinkingTimeout bounds one negotiation attempt. A link whose exchange
	// stalls past this moves to failed and is recreated on the next
	// membership snapshot, or the next send, that still involves the remote.
	LinkingTimeout time.Duration
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{LinkingTimeout: 30 * time.Second}
}

func (c EngineConfig) Validate() error {
	if c.LinkingTimeout <= 0 {
		return errors.New("linking timeout must be positive")
	}
	return nil
}

// Engine owns every peer link of one member and drives their negotiation.
// All link state is mutated by the single Run loop; capability callbacks and
// the public Handle* methods only enqueue events, so membership changes,
// relayed signals and sub-channel events never race.
type Engine struct {
	localID     string
	displayName string

	signals       SignalSender
	newCapability CapabilityFactory
	inbound       *transfer.Manager
	uiMessages    chan<- tea.Msg
	cfg           EngineConfig

	links  map[string]*Link
	events chan event

	// members is the last snapshot, self excluded. It outlives failed links
	// so a transfer to a still-present member can recreate its link.
	members map[string]room.MemberSnapshot

	runCtx context.Context
}

type event interface{}

type membershipEvent struct{ members []room.MemberSnapshot }

type signalEvent struct {
	senderID string
	desc     webrtc.SessionDescription
}

type candidateEvent struct {
	senderID  string
	candidate webrtc.ICECandidateInit
}

type negotiationNeededEvent struct{ remoteID string }

type dataChannelEvent struct {
	remoteID string
	dc       transfer.DataChannel
}

type connectedEvent struct{ remoteID string }

type sendFileEvent struct {
	src      transfer.ByteSource
	fileName string
	targets  []string
}

func NewEngine(
	localID, displayName string,
	signals SignalSender,
	factory CapabilityFactory,
	inbound *transfer.Manager,
	uiMessages chan<- tea.Msg,
	cfg EngineConfig,
) *Engine {
	return &Engine{
		localID:       localID,
		displayName:   displayName,
		signals:       signals,
		newCapability: factory,
		inbound:       inbound,
		uiMessages:    uiMessages,
		cfg:           cfg,
		links:         make(map[string]*Link),
		events:        make(chan event, 64),
		members:       make(map[string]room.MemberSnapshot),
	}
}

// Run processes events until ctx is cancelled, then tears down every link.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.closeAll()
			return ctx.Err()
		case ev := <-e.events:
			e.handle(ev)
		case now := <-ticker.C:
			e.checkDeadlines(now)
		}
	}
}

// HandleMembership feeds a membership snapshot into the engine.
func (e *Engine) HandleMembership(members []room.MemberSnapshot) {
	e.events <- membershipEvent{members: members}
}

// HandleSignal feeds a relayed offer or answer into the engine.
func (e *Engine) HandleSignal(senderID string, desc webrtc.SessionDescription) {
	e.events <- signalEvent{senderID: senderID, desc: desc}
}

// HandleCandidate feeds a relayed ICE candidate into the engine.
func (e *Engine) HandleCandidate(senderID string, candidate webrtc.ICECandidateInit) {
	e.events <- candidateEvent{senderID: senderID, candidate: candidate}
}

// SendFile starts one outbound transfer per target link. An empty target
// list means every current peer. The first transfer on a fresh link is what
// triggers its negotiation.
func (e *Engine) SendFile(src transfer.ByteSource, fileName string, targets []string) {
	e.events <- sendFileEvent{src: src, fileName: fileName, targets: targets}
}

func (e *Engine) handle(ev event) {
	switch ev := ev.(type) {
	case membershipEvent:
		e.reconcileMembers(ev.members)

	case signalEvent:
		link, ok := e.links[ev.senderID]
		if !ok {
			slog.Warn("Dropping signal from unknown member", "sender", ev.senderID)
			return
		}
		if link.yieldsOnGlare(e.localID, ev.desc) {
			slog.Info("Glare: yielding to remote offer", "local", e.localID, "remote", ev.senderID)
			link, ok = e.resetLink(link)
			if !ok {
				return
			}
		}
		if err := link.handleRemoteDescription(e.localID, ev.desc, e.signals); err != nil {
			// A rejected description is not fatal: the link stays in linking,
			// eligible for the next negotiation attempt.
			slog.Warn("Negotiation message rejected", "remote", ev.senderID, "error", err)
		}

	case candidateEvent:
		link, ok := e.links[ev.senderID]
		if !ok {
			slog.Warn("Dropping candidate from unknown member", "sender", ev.senderID)
			return
		}
		if err := link.addRemoteCandidate(ev.candidate); err != nil {
			slog.Warn("Candidate rejected", "remote", ev.senderID, "error", err)
		}

	case negotiationNeededEvent:
		link, ok := e.links[ev.remoteID]
		if !ok {
			return
		}
		if err := link.startOffer(e.localID, e.signals); err != nil {
			slog.Warn("Failed to start negotiation", "remote", ev.remoteID, "error", err)
		}

	case dataChannelEvent:
		if _, ok := e.links[ev.remoteID]; !ok {
			slog.Warn("Dropping channel from unknown member", "sender", ev.remoteID)
			return
		}
		if err := e.inbound.Accept(ev.remoteID, ev.dc); err != nil {
			slog.Warn("Rejected inbound channel", "remote", ev.remoteID, "error", err)
		}

	case connectedEvent:
		link, ok := e.links[ev.remoteID]
		if !ok {
			return
		}
		link.markUsable()
		slog.Info("Peer link usable", "remote", ev.remoteID)
		e.emitLinkState(link)

	case sendFileEvent:
		e.startTransfers(ev)
	}
}

// reconcileMembers creates a link per newly seen member (self excluded) and
// tears down links whose member left the room.
func (e *Engine) reconcileMembers(members []room.MemberSnapshot) {
	present := make(map[string]room.MemberSnapshot, len(members))
	for _, m := range members {
		if m.ID != e.localID {
			present[m.ID] = m
		}
	}
	e.members = present

	for id, m := range present {
		if _, ok := e.links[id]; !ok {
			e.createLink(m)
		}
	}

	for id, link := range e.links {
		if _, ok := present[id]; !ok {
			e.closeLink(link, StateClosed)
		}
	}
}

func (e *Engine) createLink(m room.MemberSnapshot) {
	capability, err := e.newCapability()
	if err != nil {
		slog.Error("Failed to create capability", "remote", m.ID, "error", err)
		return
	}
	e.registerSinks(capability, m.ID)

	link := newLink(m.ID, m.DisplayName, capability, e.cfg.LinkingTimeout)
	e.links[m.ID] = link
	slog.Info("Peer link created", "remote", m.ID, "name", m.DisplayName)
	e.emitLinkState(link)
}

func (e *Engine) registerSinks(capability Capability, remoteID string) {
	capability.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		// Candidates are relayed immediately, no batching. This touches no
		// engine state, so it may run on the capability's goroutine.
		if err := e.signals.SendCandidate(remoteID, candidate); err != nil {
			slog.Warn("Failed to relay candidate", "remote", remoteID, "error", err)
		}
	})
	capability.OnNegotiationNeeded(func() {
		e.events <- negotiationNeededEvent{remoteID: remoteID}
	})
	capability.OnDataChannel(func(dc transfer.DataChannel) {
		// The transport starts delivering chunks the moment this callback
		// returns. Wrapping here, before the event loop runs Accept, is what
		// keeps a fast first chunk from landing on a channel with no handler.
		e.events <- dataChannelEvent{remoteID: remoteID, dc: transfer.NewBufferedChannel(dc)}
	})
	capability.OnConnected(func() {
		e.events <- connectedEvent{remoteID: remoteID}
	})
}

// resetLink replaces the link's transport with a fresh one, keeping buffered
// remote candidates. A glare loss needs this: the local offer already
// applied to the old transport cannot be displaced by the remote one, so the
// whole capability starts over and answers from a clean state.
func (e *Engine) resetLink(old *Link) (*Link, bool) {
	if err := old.cap.Close(); err != nil {
		slog.Warn("Failed to close capability", "remote", old.RemoteID, "error", err)
	}

	capability, err := e.newCapability()
	if err != nil {
		slog.Error("Failed to replace capability", "remote", old.RemoteID, "error", err)
		delete(e.links, old.RemoteID)
		return nil, false
	}
	e.registerSinks(capability, old.RemoteID)

	link := newLink(old.RemoteID, old.RemoteName, capability, e.cfg.LinkingTimeout)
	link.pendingCandidates = old.pendingCandidates
	e.links[old.RemoteID] = link
	return link, true
}

// closeLink tears down the link and abandons every in-flight inbound
// transfer riding on it. Partial files are discarded, not exposed.
func (e *Engine) closeLink(link *Link, terminal State) {
	link.close(terminal)
	e.inbound.AbandonPeer(link.RemoteID)
	delete(e.links, link.RemoteID)
	slog.Info("Peer link closed", "remote", link.RemoteID, "state", terminal.String())
	e.emitLinkState(link)
}

func (e *Engine) closeAll() {
	for _, link := range e.links {
		e.closeLink(link, StateClosed)
	}
}

func (e *Engine) checkDeadlines(now time.Time) {
	for _, link := range e.links {
		if link.expired(now) {
			slog.Warn("Negotiation timed out", "remote", link.RemoteID)
			e.closeLink(link, StateFailed)
		}
	}
}

func (e *Engine) startTransfers(ev sendFileEvent) {
	targets := ev.targets
	if len(targets) == 0 {
		for id := range e.members {
			targets = append(targets, id)
		}
	}

	label := transfer.Label{
		FileName: ev.fileName,
		FileSize: ev.src.Size(),
		Sender:   e.displayName,
	}
	encoded, err := label.Encode()
	if err != nil {
		slog.Error("Failed to encode transfer label", "file", ev.fileName, "error", err)
		return
	}

	for _, id := range targets {
		link, ok := e.links[id]
		if !ok {
			// A member whose link failed is still in the room; sending to it
			// again is what recreates the link, there is no other trigger
			// between two stable members.
			m, present := e.members[id]
			if !present {
				slog.Warn("Skipping transfer to absent peer", "remote", id, "file", ev.fileName)
				continue
			}
			e.createLink(m)
			if link, ok = e.links[id]; !ok {
				continue
			}
		}

		// Creating the channel raises negotiation-needed on a fresh link;
		// the session waits for the channel to open before streaming.
		dc, err := link.cap.CreateDataChannel(encoded)
		if err != nil {
			slog.Error("Failed to open transfer channel", "remote", id, "error", err)
			continue
		}

		session := transfer.NewSendSession(id, dc, ev.src, label, e.uiMessages)
		go func(remoteID string) {
			if err := session.Run(e.runCtx); err != nil {
				slog.Warn("Outbound transfer failed",
					"remote", remoteID, "file", label.FileName, "error", err)
			}
		}(id)
	}
}

func (e *Engine) emitLinkState(link *Link) {
	if e.uiMessages == nil {
		return
	}
	e.uiMessages <- member.LinkStateMsg{
		PeerID:   link.RemoteID,
		PeerName: link.RemoteName,
		State:    link.State().String(),
	}
}
