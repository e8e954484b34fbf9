// Package mgmt implements the MGMT device-management protocol: a
// length-prefixed CBOR-over-UDP framing with sequence-based request/response
// correlation, plus a typed client over the handful of request/response
// pairs Dendrite needs (os_info, image_state, hdd_info).
package mgmt

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// HeaderSize is the fixed size of a frame header in bytes: operation,
// flags, length (u16), group (u16), sequence, id.
const HeaderSize = 8

// Operation identifies the direction/kind of a frame.
type Operation uint8

const (
	OpRequest  Operation = 0
	OpResponse Operation = 1
	// OpError marks a response carrying an ErrorPayload instead of the
	// normal response payload for (group, id).
	OpError Operation = 2
)

// Flag bits in the frame header.
type Flags uint8

const (
	// FlagNotSupported is set by a peer responding to an unknown
	// (group, id) pair. Mapped to NotSupported, not an error, by the
	// client layer.
	FlagNotSupported Flags = 1 << 0
)

// ErrMalformedFrame is returned by Decode when a datagram is too short or
// its declared length does not match the bytes available.
var ErrMalformedFrame = errors.New("mgmt: malformed frame")

// Frame is one MGMT datagram: header plus raw CBOR payload bytes.
type Frame struct {
	Op       Operation
	Flags    Flags
	Group    uint16
	Sequence uint8
	ID       uint8
	Payload  []byte
}

// Encode serializes f into wire bytes. Payload is expected to already be
// CBOR-encoded.
func (f Frame) Encode() ([]byte, error) {
	if len(f.Payload) > 0xFFFF {
		return nil, fmt.Errorf("mgmt: payload too large: %d bytes", len(f.Payload))
	}
	buf := make([]byte, HeaderSize+len(f.Payload))
	buf[0] = byte(f.Op)
	buf[1] = byte(f.Flags)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(f.Payload)))
	binary.BigEndian.PutUint16(buf[4:6], f.Group)
	buf[6] = f.Sequence
	buf[7] = f.ID
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// Decode parses a datagram into a Frame. It returns ErrMalformedFrame for
// any datagram too short to contain a header or whose declared length
// disagrees with the bytes actually present; callers must log and drop
// rather than propagate these, per the transport's framing contract.
func Decode(data []byte) (Frame, error) {
	if len(data) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(data), HeaderSize)
	}
	length := binary.BigEndian.Uint16(data[2:4])
	if int(length) != len(data)-HeaderSize {
		return Frame{}, fmt.Errorf("%w: header says %d payload bytes, got %d", ErrMalformedFrame, length, len(data)-HeaderSize)
	}
	payload := make([]byte, length)
	copy(payload, data[HeaderSize:])
	return Frame{
		Op:       Operation(data[0]),
		Flags:    Flags(data[1]),
		Group:    binary.BigEndian.Uint16(data[4:6]),
		Sequence: data[6],
		ID:       data[7],
		Payload:  payload,
	}, nil
}

// encodePayload CBOR-encodes v for use as a Frame.Payload.
func encodePayload(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

// decodePayload CBOR-decodes a Frame.Payload into v.
func decodePayload(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
