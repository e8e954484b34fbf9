package mgmt

import (
	"bytes"
	"testing"
)

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{
		Op:       OpRequest,
		Flags:    0,
		Group:    100,
		Sequence: 42,
		ID:       7,
		Payload:  []byte{0xa1, 0x61, 0x61, 0x01}, // {"a": 1}
	}

	raw, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Op != f.Op || got.Flags != f.Flags || got.Group != f.Group ||
		got.Sequence != f.Sequence || got.ID != f.ID {
		t.Fatalf("header mismatch: got %+v, want %+v", got, f)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: got %x, want %x", got.Payload, f.Payload)
	}
}

func TestDecodeRejectsShortDatagram(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for short datagram")
	}
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	raw := make([]byte, HeaderSize)
	raw[2] = 0
	raw[3] = 5 // claims 5 payload bytes, none present
	_, err := Decode(raw)
	if err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestPayloadCodecRoundTrip(t *testing.T) {
	type sample struct {
		A string `cbor:"a"`
		B int    `cbor:"b"`
	}
	in := sample{A: "hello", B: 42}
	payload, err := encodePayload(in)
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	var out sample
	if err := decodePayload(payload, &out); err != nil {
		t.Fatalf("decodePayload: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}
