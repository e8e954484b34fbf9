package mgmt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Group/ID pairs for the request/response catalog this client speaks.
const (
	GroupOSInfo    uint16 = 0
	GroupImage     uint16 = 1
	GroupHddInfo   uint16 = 100
	idDefault      uint8  = 0
)

// ErrUnreachable is returned when a peer exhausts its retry budget
// without replying.
var ErrUnreachable = errors.New("mgmt: peer unreachable")

// ErrProtocolMismatch is returned when a peer's reply cannot be decoded
// as CBOR, or otherwise violates the frame contract for an operation it
// claims to support.
var ErrProtocolMismatch = errors.New("mgmt: protocol mismatch")

// OSInfo is the response payload for the os_info request.
type OSInfo struct {
	Bootloader string `cbor:"bootloader,omitempty"`
	HwRev      string `cbor:"hw_rev,omitempty"`
	Kernel     string `cbor:"kernel,omitempty"`
	OSName     string `cbor:"os_name,omitempty"`
	OSVersion  string `cbor:"os_version,omitempty"`
	BuildDate  string `cbor:"build_date,omitempty"`
	Board      string `cbor:"board,omitempty"`
	App        string `cbor:"app,omitempty"`
	Version    string `cbor:"version,omitempty"`
}

// ImageSlot describes one firmware image slot.
type ImageSlot struct {
	Slot    int    `cbor:"slot"`
	Version string `cbor:"version"`
	Hash    string `cbor:"hash"`
}

// ImageState is the response payload for the image_state request.
type ImageState struct {
	Images []ImageSlot `cbor:"images"`
}

// HddInfo is the response payload for the hdd_info request.
type HddInfo struct {
	URL string `cbor:"url"`
	Sha string `cbor:"sha"`
}

// RetryPolicy configures a request's retry/backoff behavior.
type RetryPolicy struct {
	Timeout    time.Duration
	Retries    int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy is one second per attempt, two retries, doubling
// backoff starting at 200ms between attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Timeout: time.Second, Retries: 2, BaseBackoff: 200 * time.Millisecond}
}

// Client is a typed wrapper over Transport implementing the MGMT
// request/response catalog.
type Client struct {
	transport *Transport
	policy    RetryPolicy
}

// NewClient wraps transport with the default retry policy.
func NewClient(transport *Transport) *Client {
	return &Client{transport: transport, policy: DefaultRetryPolicy()}
}

// WithRetryPolicy returns a copy of c using policy for subsequent calls.
func (c *Client) WithRetryPolicy(policy RetryPolicy) *Client {
	return &Client{transport: c.transport, policy: policy}
}

// call performs one request/response exchange with retry/backoff,
// mapping FlagNotSupported and OpError responses to (false, nil) so the
// caller can treat an optional operation as cleanly absent.
func (c *Client) call(ctx context.Context, peer *net.UDPAddr, group uint16, id uint8, req any, resp any) (supported bool, err error) {
	payload, err := encodePayload(req)
	if err != nil {
		return false, fmt.Errorf("mgmt: encode request: %w", err)
	}

	frame := Frame{Op: OpRequest, Group: group, ID: id, Payload: payload}

	backoff := c.policy.BaseBackoff
	var lastErr error
	for attempt := 0; attempt <= c.policy.Retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return false, ctx.Err()
			}
			backoff *= 2
		}

		reply, err := c.transport.SendAndAwait(ctx, peer, frame, c.policy.Timeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false, err
			}
			lastErr = err
			continue
		}

		if reply.Flags&FlagNotSupported != 0 {
			return false, nil
		}
		if reply.Op == OpError {
			return false, nil
		}
		if resp != nil {
			if err := decodePayload(reply.Payload, resp); err != nil {
				return false, fmt.Errorf("%w: %v", ErrProtocolMismatch, err)
			}
		}
		return true, nil
	}

	return false, fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}

// OSInfo issues the os_info request. A device is considered "probed" once
// this call succeeds.
func (c *Client) OSInfo(ctx context.Context, peer *net.UDPAddr) (OSInfo, error) {
	var out OSInfo
	supported, err := c.call(ctx, peer, GroupOSInfo, idDefault, struct{}{}, &out)
	if err != nil {
		return OSInfo{}, err
	}
	if !supported {
		return OSInfo{}, fmt.Errorf("%w: os_info", ErrProtocolMismatch)
	}
	return out, nil
}

// ImageState issues the image_state request.
func (c *Client) ImageState(ctx context.Context, peer *net.UDPAddr) (ImageState, error) {
	var out ImageState
	supported, err := c.call(ctx, peer, GroupImage, idDefault, struct{}{}, &out)
	if err != nil {
		return ImageState{}, err
	}
	if !supported {
		return ImageState{}, fmt.Errorf("%w: image_state", ErrProtocolMismatch)
	}
	return out, nil
}

// HddInfo issues the hdd_info request. Per spec, absence of support is
// not an error: the bool return is false with a nil error when the peer
// reports the group/id as unknown.
func (c *Client) HddInfo(ctx context.Context, peer *net.UDPAddr) (HddInfo, bool, error) {
	var out HddInfo
	supported, err := c.call(ctx, peer, GroupHddInfo, idDefault, struct{}{}, &out)
	if err != nil {
		return HddInfo{}, false, err
	}
	return out, supported, nil
}
