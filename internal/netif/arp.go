package netif

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/mdlayher/packet"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

const (
	arpHType        = 1      // ethernet
	arpPTypeIPv4    = 0x0800 // IPv4
	arpHLen         = 6
	arpPLen         = 4
	arpOpRequest    = 1
	arpOpReply      = 2
	arpFrameLen     = 28
	defaultArpWindow = 2 * time.Second
)

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

type arpFrame struct {
	op          uint16
	senderMAC   net.HardwareAddr
	senderIP    net.IP
	targetMAC   net.HardwareAddr
	targetIP    net.IP
}

func encodeARP(f arpFrame) []byte {
	b := make([]byte, arpFrameLen)
	binary.BigEndian.PutUint16(b[0:2], arpHType)
	binary.BigEndian.PutUint16(b[2:4], arpPTypeIPv4)
	b[4] = arpHLen
	b[5] = arpPLen
	binary.BigEndian.PutUint16(b[6:8], f.op)
	copy(b[8:14], f.senderMAC)
	copy(b[14:18], f.senderIP.To4())
	copy(b[18:24], f.targetMAC)
	copy(b[24:28], f.targetIP.To4())
	return b
}

func decodeARP(b []byte) (arpFrame, bool) {
	if len(b) < arpFrameLen {
		return arpFrame{}, false
	}
	if binary.BigEndian.Uint16(b[0:2]) != arpHType || binary.BigEndian.Uint16(b[2:4]) != arpPTypeIPv4 {
		return arpFrame{}, false
	}
	f := arpFrame{
		op:        binary.BigEndian.Uint16(b[6:8]),
		senderMAC: net.HardwareAddr(append([]byte(nil), b[8:14]...)),
		senderIP:  net.IP(append([]byte(nil), b[14:18]...)),
		targetMAC: net.HardwareAddr(append([]byte(nil), b[18:24]...)),
		targetIP:  net.IP(append([]byte(nil), b[24:28]...)),
	}
	return f, true
}

// arpSweepFilter restricts the raw socket to ARP replies, so the kernel
// drops everything else before it reaches userspace.
func arpSweepFilter() []bpf.RawInstruction {
	prog, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 6, Size: 2},                                      // ARP opcode
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: arpOpReply, SkipFalse: 1},
		bpf.RetConstant{Val: 65535},
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return nil
	}
	raw := make([]bpf.RawInstruction, len(prog))
	for i, ins := range prog {
		raw[i] = ins
	}
	return raw
}

// ArpSweep broadcasts an ARP request for every host in subnet on iface
// and streams back every reply received within window. Unresponsive
// addresses are simply omitted; no error is raised for them. The
// returned channel is closed once the window elapses or ctx is done.
func ArpSweep(ctx context.Context, nl Netlinker, ifaceName string, subnet *net.IPNet, window time.Duration) (<-chan Peer, error) {
	if window <= 0 {
		window = defaultArpWindow
	}

	iface, err := byName(nl, ifaceName)
	if err != nil {
		return nil, err
	}
	if !iface.Up {
		return nil, ErrInterfaceUnavailable
	}

	sysIface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, ErrInterfaceUnavailable
	}

	conn, err := packet.Listen(sysIface, packet.Datagram, int(htons(unix.ETH_P_ARP)), &packet.Config{Filter: arpSweepFilter()})
	if err != nil {
		if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}

	out := make(chan Peer, 64)

	var wg sync.WaitGroup
	wg.Add(2)

	deadline := time.Now().Add(window)
	conn.SetDeadline(deadline)

	go func() {
		defer wg.Done()
		buf := make([]byte, 128)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			frame, ok := decodeARP(buf[:n])
			if !ok || frame.op != arpOpReply {
				continue
			}
			select {
			case out <- Peer{IP: frame.senderIP, MAC: frame.senderMAC}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		defer conn.Close()

		req := arpFrame{
			op:        arpOpRequest,
			senderMAC: sysIface.HardwareAddr,
			senderIP:  iface.IPv4,
			targetMAC: net.HardwareAddr{0, 0, 0, 0, 0, 0},
		}
		dst := &packet.Addr{HardwareAddr: broadcastMAC}

		for _, target := range hostsIn(subnet) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(deadline.Sub(time.Now())):
				return
			default:
			}
			req.targetIP = target
			conn.WriteTo(encodeARP(req), dst)
		}

		select {
		case <-ctx.Done():
		case <-time.After(time.Until(deadline)):
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// hostsIn enumerates every usable host address in subnet, excluding the
// network and broadcast addresses for subnets larger than /31.
func hostsIn(subnet *net.IPNet) []net.IP {
	ones, bits := subnet.Mask.Size()
	if bits != 32 {
		return nil
	}
	base := binary.BigEndian.Uint32(subnet.IP.To4())
	count := uint32(1) << uint(32-ones)
	if count <= 2 {
		out := make([]net.IP, 0, count)
		for i := uint32(0); i < count; i++ {
			out = append(out, ipFromUint32(base+i))
		}
		return out
	}
	out := make([]net.IP, 0, count-2)
	for i := uint32(1); i < count-1; i++ {
		out = append(out, ipFromUint32(base+i))
	}
	return out
}

func ipFromUint32(v uint32) net.IP {
	b := make(net.IP, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}
