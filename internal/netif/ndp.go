package netif

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/mdlayher/ndp"
)

// NdpSweep solicits every address in targets on iface via IPv6 Neighbor
// Solicitation and streams back the peers that answer with a Neighbor
// Advertisement within window. This is the IPv6 counterpart to ArpSweep;
// unlike IPv4, there is no subnet-wide broadcast to enumerate targets
// from, so callers supply the candidate address list (e.g. from prior
// NDP cache hints or a configured range).
func NdpSweep(ctx context.Context, ifaceName string, targets []netip.Addr, window time.Duration) (<-chan Peer, error) {
	if window <= 0 {
		window = defaultArpWindow
	}

	sysIface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, ErrInterfaceUnavailable
	}

	conn, _, err := ndp.Listen(sysIface, ndp.LinkLocal)
	if err != nil {
		return nil, err
	}

	out := make(chan Peer, 64)
	deadline := time.Now().Add(window)
	conn.SetDeadline(deadline)

	go func() {
		defer close(out)
		defer conn.Close()

		for _, t := range targets {
			sol := &ndp.NeighborSolicitation{
				TargetAddress: t,
			}
			if err := conn.WriteTo(sol, nil, t); err != nil {
				continue
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, _, from, err := conn.ReadFrom()
			if err != nil {
				return
			}
			adv, ok := msg.(*ndp.NeighborAdvertisement)
			if !ok {
				continue
			}
			mac := linkLayerAddr(adv.Options)
			if mac == nil {
				continue
			}
			select {
			case out <- Peer{IP: from.AsSlice(), MAC: mac}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func linkLayerAddr(opts []ndp.Option) []byte {
	for _, o := range opts {
		if lla, ok := o.(*ndp.LinkLayerAddress); ok {
			return lla.Addr
		}
	}
	return nil
}

// maxNdpTargets bounds how many individual Neighbor Solicitations a
// sweep will send; an IPv6 /64 has no hope of enumeration, but the
// small administratively-assigned subnets this daemon targets do.
const maxNdpTargets = 4096

// hostsInV6 enumerates every address in subnet. Unlike ARP's hostsIn,
// IPv6 has no broadcast address to exclude, so the network address
// itself is a valid solicitation target and stays in the list. It
// refuses subnets with more than maxNdpTargets addresses rather than
// silently truncating the sweep.
func hostsInV6(subnet *net.IPNet) ([]netip.Addr, error) {
	ones, bits := subnet.Mask.Size()
	if bits != 128 {
		return nil, ErrSubnetTooLarge
	}
	hostBits := bits - ones
	count := uint64(1) << uint(hostBits)
	if hostBits > 63 || count > maxNdpTargets {
		return nil, ErrSubnetTooLarge
	}

	base, ok := netip.AddrFromSlice(subnet.IP.To16())
	if !ok {
		return nil, ErrSubnetTooLarge
	}

	out := make([]netip.Addr, 0, count)
	addr := base
	for i := uint64(0); i < count; i++ {
		out = append(out, addr)
		addr = addr.Next()
	}
	return out, nil
}
