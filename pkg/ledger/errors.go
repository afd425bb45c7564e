// Package ledger implements the append-only publication ledger that makes
// the filename-immutability policy durable and auditable
package ledger

import "errors"

var (
	// ErrCorrupted indicates a corrupted ledger entry (CRC mismatch)
	ErrCorrupted = errors.New("ledger: corrupted entry")

	// ErrTruncated indicates a truncated ledger entry
	ErrTruncated = errors.New("ledger: truncated entry")

	// ErrClosed indicates an operation on a closed ledger
	ErrClosed = errors.New("ledger: closed")

	// ErrNoSegments indicates no ledger segment files exist
	ErrNoSegments = errors.New("ledger: no segments")

	// ErrNameReused indicates a publish of an already-published path with
	// different content. A published filename is never reused; a
	// replacement is a new file with a new creation-date suffix.
	ErrNameReused = errors.New("ledger: filename already published with different content")

	// ErrNotPublished indicates a relink recorded for a path with no
	// publication entry
	ErrNotPublished = errors.New("ledger: path was never published")
)
