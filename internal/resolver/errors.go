package resolver

import "errors"

// ErrShaMismatch is returned when fetched bytes don't hash to the
// reported SHA. The bytes are discarded; the resolver falls back to any
// stale cached entry rather than trusting them.
var ErrShaMismatch = errors.New("resolver: sha mismatch")

// ErrUnresolved is returned when neither the network nor the cache can
// produce an HDD for (board, app).
var ErrUnresolved = errors.New("resolver: unresolved")
