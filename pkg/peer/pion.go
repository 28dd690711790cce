package peer

import (
	"fmt"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"

	"github.com/rescp17/roomShare/pkg/transfer"
)

const receiveMTU uint = 1400

// Config holds the settings for creating peer capabilities.
type Config struct {
	ICEServers []webrtc.ICEServer
}

// API wraps a shared pion API instance. Using one API for all peer
// connections of a member keeps their setting engines consistent.
type API struct {
	api *webrtc.API
	cfg Config
}

func NewAPI(cfg Config) *API {
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	settings := webrtc.SettingEngine{}
	settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	settings.SetReceiveMTU(receiveMTU)

	return &API{
		api: webrtc.NewAPI(webrtc.WithSettingEngine(settings)),
		cfg: cfg,
	}
}

// NewCapability creates the capability for one peer link.
func (a *API) NewCapability() (Capability, error) {
	pc, err := a.api.NewPeerConnection(webrtc.Configuration{ICEServers: a.cfg.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	return &pionCapability{pc: pc}, nil
}

type pionCapability struct {
	pc *webrtc.PeerConnection
}

func (c *pionCapability) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionCapability) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionCapability) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionCapability) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionCapability) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionCapability) CreateDataChannel(label string) (transfer.DataChannel, error) {
	// nil init gives an ordered, reliable channel, which the transfer
	// protocol depends on.
	dc, err := c.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	return &pionDataChannel{dc: dc}, nil
}

func (c *pionCapability) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// pion signals end of gathering with a nil candidate; with trickle
		// ICE there is nothing to relay for it.
		if candidate != nil {
			f(candidate.ToJSON())
		}
	})
}

func (c *pionCapability) OnNegotiationNeeded(f func()) {
	c.pc.OnNegotiationNeeded(f)
}

func (c *pionCapability) OnDataChannel(f func(transfer.DataChannel)) {
	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		f(&pionDataChannel{dc: dc})
	})
}

func (c *pionCapability) OnConnected(f func()) {
	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateConnected {
			f()
		}
	})
}

func (c *pionCapability) Close() error {
	return c.pc.Close()
}

type pionDataChannel struct {
	dc *webrtc.DataChannel
}

func (d *pionDataChannel) Label() string { return d.dc.Label() }

func (d *pionDataChannel) StreamID() uint16 {
	if id := d.dc.ID(); id != nil {
		return *id
	}
	return 0
}

func (d *pionDataChannel) Send(data []byte) error { return d.dc.Send(data) }

func (d *pionDataChannel) BufferedAmount() uint64 { return d.dc.BufferedAmount() }

func (d *pionDataChannel) SetBufferedAmountLowThreshold(th uint64) {
	d.dc.SetBufferedAmountLowThreshold(th)
}

func (d *pionDataChannel) OnBufferedAmountLow(f func()) { d.dc.OnBufferedAmountLow(f) }

func (d *pionDataChannel) OnOpen(f func()) { d.dc.OnOpen(f) }

func (d *pionDataChannel) OnMessage(f func([]byte)) {
	d.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		f(msg.Data)
	})
}

func (d *pionDataChannel) Close() error { return d.dc.Close() }
