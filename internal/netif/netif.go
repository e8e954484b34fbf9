package netif

import (
	"context"
	"net"
	"time"

	"github.com/cognipilot/dendrite/internal/logging"
)

// NetIf is the local-network enumeration and sweep facade the discovery
// engine and heartbeat loop depend on.
type NetIf struct {
	nl     Netlinker
	logger *logging.Logger
}

// New builds a NetIf backed by the host's netlink socket.
func New(logger *logging.Logger) *NetIf {
	if logger == nil {
		logger = logging.Default()
	}
	return &NetIf{nl: RealNetlinker(), logger: logger.WithComponent("netif")}
}

// NewWithNetlinker injects a Netlinker, for tests.
func NewWithNetlinker(nl Netlinker, logger *logging.Logger) *NetIf {
	if logger == nil {
		logger = logging.Default()
	}
	return &NetIf{nl: nl, logger: logger.WithComponent("netif")}
}

// Interfaces lists every local interface with its IPv4 subnet, if any,
// plus its live link-carrier state.
func (n *NetIf) Interfaces() ([]Interface, error) {
	ifaces, err := enumerate(n.nl)
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		if up, err := n.LinkUp(ifaces[i].Name); err == nil {
			ifaces[i].LinkUp = up
		}
	}
	return ifaces, nil
}

// Sweep performs one discovery sweep of subnet on iface and returns
// every peer that answered, with the given window (zero uses the
// package default of 2s). An IPv4 subnet is swept with ARP; an IPv6
// subnet is swept with NDP neighbor solicitation instead.
func (n *NetIf) Sweep(ctx context.Context, iface string, subnet *net.IPNet, window time.Duration) ([]Peer, error) {
	if subnet.IP.To4() == nil {
		return n.sweepV6(ctx, iface, subnet, window)
	}
	ch, err := ArpSweep(ctx, n.nl, iface, subnet, window)
	if err != nil {
		return nil, err
	}
	var peers []Peer
	for p := range ch {
		peers = append(peers, p)
	}
	return peers, nil
}

func (n *NetIf) sweepV6(ctx context.Context, iface string, subnet *net.IPNet, window time.Duration) ([]Peer, error) {
	targets, err := hostsInV6(subnet)
	if err != nil {
		return nil, err
	}
	ch, err := NdpSweep(ctx, iface, targets, window)
	if err != nil {
		return nil, err
	}
	var peers []Peer
	for p := range ch {
		peers = append(peers, p)
	}
	return peers, nil
}

// LinkUp reports whether iface is carrying link.
func (n *NetIf) LinkUp(iface string) (bool, error) {
	return LinkUp(n.nl, iface)
}

// Prober adapts NetIf into registry.NetworkProber by ARP-resolving a
// single address with a short, fixed window.
type Prober struct {
	netif *NetIf
	iface string
}

// NewProber builds a registry.NetworkProber that resolves addresses by
// ARP-querying them on iface.
func NewProber(netif *NetIf, iface string) *Prober {
	return &Prober{netif: netif, iface: iface}
}

// ResolveMAC ARPs for ip on the configured interface and returns the
// first MAC that answers within the probe's short window.
func (p *Prober) ResolveMAC(ctx context.Context, ip string) (string, bool) {
	addr := net.ParseIP(ip)
	if addr == nil || addr.To4() == nil {
		return "", false
	}
	host := &net.IPNet{IP: addr.To4(), Mask: net.CIDRMask(32, 32)}

	ch, err := ArpSweep(ctx, p.netif.nl, p.iface, host, 500*time.Millisecond)
	if err != nil {
		return "", false
	}
	for peer := range ch {
		if peer.IP.Equal(addr) {
			return peer.MAC.String(), true
		}
	}
	return "", false
}
