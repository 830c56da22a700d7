package graph

import "errors"

// ErrDataUnavailable is returned when the graph binary cannot be opened at all
// (missing file, permission error) — the caller should treat this as a
// deployment/ops problem, not a malformed-data one.
var ErrDataUnavailable = errors.New("graph data unavailable")

// ErrCorruptData is returned when a graph binary's structure fails
// validation (bad magic, unsupported version, CSR invariant violation).
var ErrCorruptData = errors.New("graph data corrupt")

// ErrChecksumMismatch is returned when a graph binary's trailing CRC32 does
// not match the computed checksum of its contents.
var ErrChecksumMismatch = errors.New("graph checksum mismatch")
