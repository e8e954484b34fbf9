package mgmt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cognipilot/dendrite/internal/clock"
	"github.com/cognipilot/dendrite/internal/logging"
)

// ErrTimeout is returned by SendAndAwait when no reply arrives within the
// caller's timeout.
var ErrTimeout = errors.New("mgmt: timeout waiting for reply")

// ErrNoSequenceSpace is returned when all 256 sequence slots are already
// outstanding.
var ErrNoSequenceSpace = errors.New("mgmt: no sequence space available")

// ErrClosed is returned by SendAndAwait once the transport has been
// stopped.
var ErrClosed = errors.New("mgmt: transport closed")

// slot is a one-shot delivery point for a single outstanding request.
type slot struct {
	peer  string
	reply chan Frame
}

// Transport owns a single UDP socket, multiplexing outbound requests by
// sequence number and demultiplexing inbound datagrams back to their
// waiting caller. Sequence correlation is the only ordering guarantee:
// replies may arrive in any order relative to sends.
type Transport struct {
	conn   net.PacketConn
	logger *logging.Logger
	clock  clock.Clock

	mu       sync.Mutex
	slots    map[uint8]*slot
	nextSeq  uint8
	closed   bool

	wg sync.WaitGroup
}

// NewTransport binds a UDP socket on bind (e.g. ":1337") and starts its
// background receive loop.
func NewTransport(bind string, logger *logging.Logger, clk clock.Clock) (*Transport, error) {
	conn, err := net.ListenPacket("udp", bind)
	if err != nil {
		return nil, fmt.Errorf("mgmt: listen %s: %w", bind, err)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	t := &Transport{
		conn:   conn,
		logger: logger.WithComponent("mgmt-transport"),
		clock:  clk,
		slots:  make(map[uint8]*slot),
	}
	t.wg.Add(1)
	go t.receiveLoop()
	return t, nil
}

// LocalAddr returns the transport's bound local address.
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Close stops the receive loop and closes the socket. Any slots still
// waiting receive ErrClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for seq, s := range t.slots {
		close(s.reply)
		delete(t.slots, seq)
	}
	t.mu.Unlock()

	err := t.conn.Close()
	t.wg.Wait()
	return err
}

// SendAndAwait allocates the next free sequence number, encodes and sends
// frame to peer, and blocks until a matching reply arrives, ctx is
// cancelled, or timeout elapses.
func (t *Transport) SendAndAwait(ctx context.Context, peer *net.UDPAddr, frame Frame, timeout time.Duration) (Frame, error) {
	seq, s, err := t.reserveSlot(peer.String())
	if err != nil {
		return Frame{}, err
	}
	defer t.releaseSlot(seq)

	frame.Sequence = seq
	raw, err := frame.Encode()
	if err != nil {
		return Frame{}, fmt.Errorf("mgmt: encode frame: %w", err)
	}

	if _, err := t.conn.WriteTo(raw, peer); err != nil {
		return Frame{}, fmt.Errorf("mgmt: send to %s: %w", peer, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-s.reply:
		if !ok {
			return Frame{}, ErrClosed
		}
		return reply, nil
	case <-timer.C:
		return Frame{}, ErrTimeout
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// reserveSlot picks the next unused sequence number (wrapping mod 256,
// never reusing an outstanding one) and registers a delivery slot for it.
func (t *Transport) reserveSlot(peer string) (uint8, *slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, nil, ErrClosed
	}
	if len(t.slots) >= 256 {
		return 0, nil, ErrNoSequenceSpace
	}

	start := t.nextSeq
	seq := start
	for {
		if _, taken := t.slots[seq]; !taken {
			break
		}
		seq++
		if seq == start {
			return 0, nil, ErrNoSequenceSpace
		}
	}
	t.nextSeq = seq + 1

	s := &slot{peer: peer, reply: make(chan Frame, 1)}
	t.slots[seq] = s
	return seq, s, nil
}

func (t *Transport) releaseSlot(seq uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.slots, seq)
}

// receiveLoop reads datagrams and delivers them to the slot matching
// their sequence number, dropping silently on any mismatch or malformed
// frame.
func (t *Transport) receiveLoop() {
	defer t.wg.Done()

	buf := make([]byte, 65535)
	for {
		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return
			}
			t.logger.Warn("read error", "error", err)
			return
		}

		frame, err := Decode(buf[:n])
		if err != nil {
			t.logger.Debug("dropping malformed frame", "peer", addr, "error", err)
			continue
		}

		t.mu.Lock()
		s, ok := t.slots[frame.Sequence]
		if ok {
			delete(t.slots, frame.Sequence)
		}
		t.mu.Unlock()

		if !ok {
			t.logger.Debug("dropping unmatched frame", "peer", addr, "sequence", frame.Sequence)
			continue
		}
		if s.peer != addr.String() {
			// Sequence collision across peers; distrust it, caller times out.
			t.logger.Debug("dropping frame from unexpected peer", "expected", s.peer, "got", addr)
			continue
		}

		select {
		case s.reply <- frame:
		default:
		}
	}
}
