package cache

import "errors"

// ErrCorrupt is returned by PutHDD when a file already stored under the
// target SHA fails verification against that SHA and rewriting it with
// the new bytes also fails. Freshly written files are not re-read and
// re-verified.
var ErrCorrupt = errors.New("cache: content failed verification after write")

// ErrManifestCorrupt describes an on-disk manifest that cannot be
// decoded. NewStore logs the decode failure, keeps the unreadable file as
// a ".bak" and falls back to a freshly rescanned manifest derived from the
// cache directory tree; it returns ErrManifestCorrupt (and fails) only
// when that rescan also fails.
var ErrManifestCorrupt = errors.New("cache: manifest corrupt")
