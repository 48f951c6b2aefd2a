package pkgcore

import "errors"

// Sentinel errors for the format and verification rules in §4.1-§4.2 of the
// spec this package implements. Callers compare with errors.Is; wrapped
// forms carry path/context via fmt.Errorf("...: %w", ...).
var (
	// ErrTruncated is returned when a buffer ends before a required
	// header, entry, or data slice could be read.
	ErrTruncated = errors.New("pkgcore: truncated")

	// ErrInvalidSignature is returned when the header's Ed25519
	// signature does not verify under the supplied public key.
	ErrInvalidSignature = errors.New("pkgcore: invalid signature")

	// ErrInvalidKey is returned when the header's embedded public key
	// does not match the key the verifier was invoked with.
	ErrInvalidKey = errors.New("pkgcore: public key mismatch")

	// ErrInvalidBlake3 is returned when a computed BLAKE3 digest does
	// not match the stored one, for either the entry table or a file's
	// content.
	ErrInvalidBlake3 = errors.New("pkgcore: blake3 mismatch")

	// ErrInvalidMode names an entry whose mode kind bits match neither
	// ModeFile nor ModeSymlink. Nothing in pkgcore returns it; the pkgar
	// extractor and Verify report such entries with pkgar.ErrUnsupportedMode.
	ErrInvalidMode = errors.New("pkgcore: invalid mode")

	// ErrInvalidPathComponent is returned when an entry path contains a
	// ".", "..", an absolute root, or an empty segment.
	ErrInvalidPathComponent = errors.New("pkgcore: invalid path component")

	// ErrPathTooLong is returned when a relative path is 256 bytes or
	// longer (it must fit, NUL-terminated, in Entry.Path).
	ErrPathTooLong = errors.New("pkgcore: path too long")

	// ErrOverflow is returned when 64-bit arithmetic overflows while
	// computing offsets or sizes.
	ErrOverflow = errors.New("pkgcore: arithmetic overflow")

	// ErrNotSupported is returned for an unrecognized packaging value in
	// the header flags.
	ErrNotSupported = errors.New("pkgcore: unsupported packaging")
)
