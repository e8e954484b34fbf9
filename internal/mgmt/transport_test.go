package mgmt

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cognipilot/dendrite/internal/clock"
	"github.com/cognipilot/dendrite/internal/logging"
)

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := NewTransport("127.0.0.1:0", logging.New(logging.DefaultConfig()), clock.RealClock{})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

// echoPeer listens on its own UDP socket and echoes every datagram back
// as an OpResponse with the same sequence, after an optional per-call
// delay supplied by delayFor.
func echoPeer(t *testing.T, delayFor func(seq uint8) time.Duration) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen peer: %v", err)
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
			go func(in Frame, addr net.Addr) {
				if delayFor != nil {
					time.Sleep(delayFor(in.Sequence))
				}
				out := Frame{Op: OpResponse, Group: in.Group, Sequence: in.Sequence, ID: in.ID, Payload: in.Payload}
				raw, err := out.Encode()
				if err != nil {
					return
				}
				conn.WriteTo(raw, addr)
			}(in, addr)
		}
	}()

	return conn
}

func TestSendAndAwaitEchoRoundTrip(t *testing.T) {
	tr := newTestTransport(t)
	peer := echoPeer(t, nil)
	peerAddr := peer.LocalAddr().(*net.UDPAddr)

	payload, _ := encodePayload(map[string]int{"x": 1})
	frame := Frame{Op: OpRequest, Group: 5, ID: 1, Payload: payload}

	reply, err := tr.SendAndAwait(context.Background(), peerAddr, frame, time.Second)
	if err != nil {
		t.Fatalf("SendAndAwait: %v", err)
	}
	var out map[string]int
	if err := decodePayload(reply.Payload, &out); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if out["x"] != 1 {
		t.Fatalf("got %v, want x=1", out)
	}
}

func TestSendAndAwaitTimesOutWithoutReply(t *testing.T) {
	tr := newTestTransport(t)
	// A socket that never replies.
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer silent.Close()

	frame := Frame{Op: OpRequest, Group: 0, ID: 0}
	_, err = tr.SendAndAwait(context.Background(), silent.LocalAddr().(*net.UDPAddr), frame, 50*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

// TestSequenceCorrelationOutOfOrder mirrors the spec's end-to-end scenario
// #6: ten requests whose replies arrive in reverse order must each reach
// their own caller, never another's.
func TestSequenceCorrelationOutOfOrder(t *testing.T) {
	tr := newTestTransport(t)
	peer := echoPeer(t, func(seq uint8) time.Duration {
		// Later sequence numbers reply sooner, reversing arrival order.
		return time.Duration(10-int(seq)) * 5 * time.Millisecond
	})
	peerAddr := peer.LocalAddr().(*net.UDPAddr)

	var wg sync.WaitGroup
	results := make([]int, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload, _ := encodePayload(map[string]int{"n": i})
			frame := Frame{Op: OpRequest, Group: 1, ID: 1, Payload: payload}
			reply, err := tr.SendAndAwait(context.Background(), peerAddr, frame, 2*time.Second)
			if err != nil {
				errs[i] = err
				return
			}
			var out map[string]int
			if err := decodePayload(reply.Payload, &out); err != nil {
				errs[i] = err
				return
			}
			results[i] = out["n"]
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != i {
			t.Fatalf("caller %d got reply for %d, want %d", i, results[i], i)
		}
	}
}

func TestNoSequenceSpaceWhenSlotsExhausted(t *testing.T) {
	tr := newTestTransport(t)

	// Fill all 256 slots directly without releasing them.
	held := make([]uint8, 0, 256)
	for i := 0; i < 256; i++ {
		seq, _, err := tr.reserveSlot("1.2.3.4:1")
		if err != nil {
			t.Fatalf("reserveSlot %d: %v", i, err)
		}
		held = append(held, seq)
	}

	_, _, err := tr.reserveSlot("1.2.3.4:1")
	if err != ErrNoSequenceSpace {
		t.Fatalf("got %v, want ErrNoSequenceSpace", err)
	}

	for _, seq := range held {
		tr.releaseSlot(seq)
	}
}

func TestCloseUnblocksWaitingCallers(t *testing.T) {
	tr := newTestTransport(t)
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer silent.Close()

	errCh := make(chan error, 1)
	go func() {
		frame := Frame{Op: OpRequest}
		_, err := tr.SendAndAwait(context.Background(), silent.LocalAddr().(*net.UDPAddr), frame, 5*time.Second)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	tr.Close()

	select {
	case err := <-errCh:
		if err != ErrClosed && err != ErrTimeout {
			t.Fatalf("got %v, want ErrClosed or ErrTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendAndAwait did not return after Close")
	}
}
