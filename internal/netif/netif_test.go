package netif

import (
	"net"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

type mockNetlinker struct {
	mock.Mock
}

func (m *mockNetlinker) LinkList() ([]netlink.Link, error) {
	args := m.Called()
	return args.Get(0).([]netlink.Link), args.Error(1)
}

func (m *mockNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	args := m.Called(link, family)
	return args.Get(0).([]netlink.Addr), args.Error(1)
}

func fakeLink(name string, idx int, up bool) netlink.Link {
	state := netlink.OperDown
	if up {
		state = netlink.OperUp
	}
	return &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name, Index: idx, OperState: state}}
}

func TestEnumerateListsInterfacesWithIPv4(t *testing.T) {
	nl := &mockNetlinker{}
	eth0 := fakeLink("eth0", 2, true)
	lo := fakeLink("lo", 1, true)
	nl.On("LinkList").Return([]netlink.Link{lo, eth0}, nil)
	nl.On("AddrList", lo, netlink.FAMILY_V4).Return([]netlink.Addr{}, nil)
	nl.On("AddrList", eth0, netlink.FAMILY_V4).Return([]netlink.Addr{
		{IPNet: &net.IPNet{IP: net.ParseIP("192.168.1.10").To4(), Mask: net.CIDRMask(24, 32)}},
	}, nil)

	ifaces, err := enumerate(nl)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(ifaces) != 2 {
		t.Fatalf("expected 2 interfaces, got %d", len(ifaces))
	}

	var eth *Interface
	for i := range ifaces {
		if ifaces[i].Name == "eth0" {
			eth = &ifaces[i]
		}
	}
	if eth == nil {
		t.Fatal("eth0 not found")
	}
	if !eth.IPv4.Equal(net.ParseIP("192.168.1.10")) || eth.PrefixLen != 24 {
		t.Fatalf("unexpected address: %+v", eth)
	}
	if !eth.Up {
		t.Fatal("expected eth0 to be reported up")
	}
}

func TestByNameReturnsErrInterfaceUnavailable(t *testing.T) {
	nl := &mockNetlinker{}
	nl.On("LinkList").Return([]netlink.Link{fakeLink("eth0", 2, true)}, nil)
	nl.On("AddrList", mock.Anything, netlink.FAMILY_V4).Return([]netlink.Addr{}, nil)

	_, err := byName(nl, "eth9")
	if err != ErrInterfaceUnavailable {
		t.Fatalf("got %v, want ErrInterfaceUnavailable", err)
	}
}

func TestHostsInExcludesNetworkAndBroadcast(t *testing.T) {
	_, subnet, _ := net.ParseCIDR("192.168.1.0/29")
	hosts := hostsIn(subnet)
	// /29 has 8 addresses, 6 usable hosts
	if len(hosts) != 6 {
		t.Fatalf("expected 6 usable hosts, got %d", len(hosts))
	}
	if hosts[0].String() != "192.168.1.1" {
		t.Fatalf("first host should be .1, got %s", hosts[0])
	}
	if hosts[len(hosts)-1].String() != "192.168.1.6" {
		t.Fatalf("last host should be .6, got %s", hosts[len(hosts)-1])
	}
}

func TestHostsInSinglePointToPoint(t *testing.T) {
	_, subnet, _ := net.ParseCIDR("10.0.0.5/32")
	hosts := hostsIn(subnet)
	if len(hosts) != 1 || hosts[0].String() != "10.0.0.5" {
		t.Fatalf("expected exactly the /32 host, got %v", hosts)
	}
}

func TestArpFrameRoundTrip(t *testing.T) {
	f := arpFrame{
		op:        arpOpReply,
		senderMAC: net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		senderIP:  net.ParseIP("10.0.0.1").To4(),
		targetMAC: net.HardwareAddr{0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
		targetIP:  net.ParseIP("10.0.0.2").To4(),
	}
	encoded := encodeARP(f)
	decoded, ok := decodeARP(encoded)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded.op != f.op || decoded.senderMAC.String() != f.senderMAC.String() || decoded.targetMAC.String() != f.targetMAC.String() {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, f)
	}
	if !decoded.senderIP.Equal(f.senderIP) || !decoded.targetIP.Equal(f.targetIP) {
		t.Fatalf("ip round trip mismatch: %+v vs %+v", decoded, f)
	}
}

func TestDecodeARPRejectsShortFrame(t *testing.T) {
	if _, ok := decodeARP([]byte{1, 2, 3}); ok {
		t.Fatal("expected decode to reject a truncated frame")
	}
}

func TestHostsInV6EnumeratesSmallSubnet(t *testing.T) {
	_, subnet, _ := net.ParseCIDR("fd00::/125")
	hosts, err := hostsInV6(subnet)
	if err != nil {
		t.Fatalf("hostsInV6: %v", err)
	}
	if len(hosts) != 8 {
		t.Fatalf("expected 8 addresses, got %d", len(hosts))
	}
	if hosts[0].String() != "fd00::" {
		t.Fatalf("first address should be the network address, got %s", hosts[0])
	}
}

func TestHostsInV6RejectsOversizedSubnet(t *testing.T) {
	_, subnet, _ := net.ParseCIDR("fd00::/64")
	if _, err := hostsInV6(subnet); err != ErrSubnetTooLarge {
		t.Fatalf("got %v, want ErrSubnetTooLarge", err)
	}
}

func TestHostsInV6RejectsIPv4Subnet(t *testing.T) {
	_, subnet, _ := net.ParseCIDR("192.168.1.0/24")
	if _, err := hostsInV6(subnet); err != ErrSubnetTooLarge {
		t.Fatalf("got %v, want ErrSubnetTooLarge", err)
	}
}
