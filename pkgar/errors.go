// Package pkgar implements the streaming archive builder and the
// transactional filesystem extractor built on top of pkgcore's format and
// verification primitives.
package pkgar

import (
	"errors"
	"fmt"
)

// Sentinel errors specific to the build/extract pipeline. Format and
// verification failures surface as pkgcore's own sentinels (wrapped with
// path/context here where useful); these extend the taxonomy with the
// transaction and streaming concerns §7 of the spec assigns to this layer.
var (
	// ErrLengthMismatch is returned when the bytes actually streamed for
	// an entry differ from its declared size.
	ErrLengthMismatch = errors.New("pkgar: length mismatch")

	// ErrUnsupportedMode is returned when an entry's mode kind is
	// neither a regular file nor a symlink.
	ErrUnsupportedMode = errors.New("pkgar: unsupported mode")

	// ErrInvalidPath is returned when an entry's path, joined to its base
	// directory, would resolve outside that directory.
	ErrInvalidPath = errors.New("pkgar: invalid path")
)

// FailedCommitError reports a transaction that stopped partway through
// Commit or Abort. Changed actions already took effect; Remaining actions
// are still queued and will be retried by a subsequent Commit/Abort call.
type FailedCommitError struct {
	Changed   int
	Remaining int
	Cause     error
}

func (e *FailedCommitError) Error() string {
	return fmt.Sprintf("pkgar: transaction failed after %d action(s), %d remaining: %v", e.Changed, e.Remaining, e.Cause)
}

func (e *FailedCommitError) Unwrap() error {
	return e.Cause
}
