package discovery

import (
	"context"
	"net"
)

const (
	// ServiceType is the mDNS service type a relay announces itself under.
	ServiceType   = "_roomshare._tcp"
	DefaultDomain = "local"
)

// ServiceInfo identifies one relay instance on the local network.
type ServiceInfo struct {
	Name   string
	Type   string
	Domain string
	Addr   net.IP
	Port   int
}

// Result is one update from an ongoing browse: either the current set of
// relays or a browse failure.
type Result struct {
	Services []ServiceInfo
	Error    error
}

// Adapter announces a relay and browses for relays announced by others.
type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, serviceType string) <-chan Result
}
