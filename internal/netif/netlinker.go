package netif

import (
	"github.com/vishvananda/netlink"
)

// Netlinker is the narrow slice of netlink operations NetIf needs for
// enumeration: listing links and their addresses. Unlike a
// routing/firewall-facing abstraction, it has no route, rule, or link
// mutation methods — Dendrite only ever reads interface state.
type Netlinker interface {
	LinkList() ([]netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
}

type realNetlinker struct{}

// RealNetlinker returns a Netlinker backed by the host's netlink socket.
func RealNetlinker() Netlinker { return realNetlinker{} }

func (realNetlinker) LinkList() ([]netlink.Link, error) { return netlink.LinkList() }

func (realNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

// enumerate lists every interface nl knows about, paired with its
// primary IPv4 address when it has one.
func enumerate(nl Netlinker) ([]Interface, error) {
	links, err := nl.LinkList()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		iface := Interface{
			Name:   attrs.Name,
			Index:  attrs.Index,
			HWAddr: attrs.HardwareAddr,
			Up:     attrs.OperState == netlink.OperUp,
		}

		addrs, err := nl.AddrList(link, netlink.FAMILY_V4)
		if err == nil {
			for _, a := range addrs {
				if a.IP == nil || a.IP.To4() == nil {
					continue
				}
				ones, _ := a.IPNet.Mask.Size()
				iface.IPv4 = a.IP.To4()
				iface.PrefixLen = ones
				break
			}
		}
		out = append(out, iface)
	}
	return out, nil
}

// byName finds a single interface by name, surfacing
// ErrInterfaceUnavailable if it doesn't exist.
func byName(nl Netlinker, name string) (Interface, error) {
	ifaces, err := enumerate(nl)
	if err != nil {
		return Interface{}, err
	}
	for _, i := range ifaces {
		if i.Name == name {
			return i, nil
		}
	}
	return Interface{}, ErrInterfaceUnavailable
}
