// Package pkgcore implements the on-disk layout of a pkgar archive: the
// signed header, the entry table, and the rules that verify both against
// the data region. It does not touch the filesystem; see the pkgar package
// for the builder and transactional extractor built on top of it.
package pkgcore

import "crypto/ed25519"

const (
	// HeaderSize is the packed size of Header: 64 (signature) + 32
	// (public key) + 32 (blake3) + 4 (count) + 4 (flags).
	HeaderSize = 64 + 32 + 32 + 4 + 4

	// EntrySize is the packed size of Entry: 32 (blake3) + 8 (offset) +
	// 8 (size) + 4 (mode) + 256 (path).
	EntrySize = 32 + 8 + 8 + 4 + 256

	// PathFieldSize is the width of Entry.Path, including its mandatory
	// trailing NUL.
	PathFieldSize = 256

	// PublicKeySize and SignatureSize mirror ed25519's sizes, named
	// locally so callers don't need to import crypto/ed25519 just to
	// size a buffer.
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
)

// Mode kind bits, per POSIX st_mode.
const (
	ModeKindMask = 0o170000
	ModeFile     = 0o100000
	ModeSymlink  = 0o120000
	ModePerm     = 0o007777
)

// Mode is a Unix mode bitset: low 12 bits permissions, high bits kind.
type Mode uint32

// Kind returns the kind bits (ModeFile or ModeSymlink; any other value is
// not valid in an archive entry).
func (m Mode) Kind() uint32 {
	return uint32(m) & ModeKindMask
}

// Perm returns the permission bits.
func (m Mode) Perm() uint32 {
	return uint32(m) & ModePerm
}

// IsFile reports whether m designates a regular file.
func (m Mode) IsFile() bool {
	return m.Kind() == ModeFile
}

// IsSymlink reports whether m designates a symbolic link.
func (m Mode) IsSymlink() bool {
	return m.Kind() == ModeSymlink
}
