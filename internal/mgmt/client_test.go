package mgmt

import (
	"context"
	"net"
	"testing"
	"time"
)

// fakeDevice answers os_info and image_state normally, and responds to
// hdd_info with FlagNotSupported, mirroring a peer that doesn't implement
// the optional group.
func fakeDevice(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 65535)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			in, err := Decode(buf[:n])
			if err != nil {
				continue
			}

			var out Frame
			switch in.Group {
			case GroupOSInfo:
				payload, _ := encodePayload(OSInfo{Board: "mr_mcxn_t1", App: "optical-flow", Version: "1.0"})
				out = Frame{Op: OpResponse, Group: in.Group, Sequence: in.Sequence, ID: in.ID, Payload: payload}
			case GroupImage:
				payload, _ := encodePayload(ImageState{Images: []ImageSlot{{Slot: 0, Version: "1.0", Hash: "abc"}}})
				out = Frame{Op: OpResponse, Group: in.Group, Sequence: in.Sequence, ID: in.ID, Payload: payload}
			case GroupHddInfo:
				out = Frame{Op: OpResponse, Flags: FlagNotSupported, Group: in.Group, Sequence: in.Sequence, ID: in.ID}
			default:
				continue
			}
			raw, err := out.Encode()
			if err != nil {
				continue
			}
			conn.WriteTo(raw, addr)
		}
	}()

	return conn
}

func TestClientOSInfo(t *testing.T) {
	tr := newTestTransport(t)
	dev := fakeDevice(t)
	client := NewClient(tr)

	info, err := client.OSInfo(context.Background(), dev.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("OSInfo: %v", err)
	}
	if info.Board != "mr_mcxn_t1" || info.App != "optical-flow" {
		t.Fatalf("got %+v", info)
	}
}

func TestClientHddInfoNotSupportedIsNotAnError(t *testing.T) {
	tr := newTestTransport(t)
	dev := fakeDevice(t)
	client := NewClient(tr)

	_, supported, err := client.HddInfo(context.Background(), dev.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("HddInfo returned error for unsupported group: %v", err)
	}
	if supported {
		t.Fatal("expected supported=false")
	}
}

func TestClientUnreachableAfterRetries(t *testing.T) {
	tr := newTestTransport(t)
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer silent.Close()

	client := NewClient(tr).WithRetryPolicy(RetryPolicy{Timeout: 20 * time.Millisecond, Retries: 1, BaseBackoff: 5 * time.Millisecond})

	_, err = client.OSInfo(context.Background(), silent.LocalAddr().(*net.UDPAddr))
	if err == nil {
		t.Fatal("expected error")
	}
}
