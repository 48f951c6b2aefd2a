package pkgcore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path"
	"strings"
)

// Entry describes one file or symlink in the archive: its content digest,
// its position in the data region, its mode, and its relative path.
type Entry struct {
	Blake3 [32]byte
	Offset uint64
	Size   uint64
	Mode   Mode
	Path   [PathFieldSize]byte
}

// Pack serializes e to its on-disk little-endian layout.
func (e *Entry) Pack() []byte {
	buf := make([]byte, EntrySize)
	copy(buf[0:32], e.Blake3[:])
	binary.LittleEndian.PutUint64(buf[32:40], e.Offset)
	binary.LittleEndian.PutUint64(buf[40:48], e.Size)
	binary.LittleEndian.PutUint32(buf[48:52], uint32(e.Mode))
	copy(buf[52:52+PathFieldSize], e.Path[:])
	return buf
}

// Unpack parses an EntrySize-byte buffer into e.
func (e *Entry) Unpack(data []byte) error {
	if len(data) != EntrySize {
		return fmt.Errorf("pkgcore: invalid entry size: %d: %w", len(data), ErrTruncated)
	}
	copy(e.Blake3[:], data[0:32])
	e.Offset = binary.LittleEndian.Uint64(data[32:40])
	e.Size = binary.LittleEndian.Uint64(data[40:48])
	e.Mode = Mode(binary.LittleEndian.Uint32(data[48:52]))
	copy(e.Path[:], data[52:52+PathFieldSize])
	return nil
}

// PathBytes returns the path, truncated at its first NUL.
func (e *Entry) PathBytes() []byte {
	if i := bytes.IndexByte(e.Path[:], 0); i >= 0 {
		return e.Path[:i]
	}
	return e.Path[:]
}

// PathString returns PathBytes as a string.
func (e *Entry) PathString() string {
	return string(e.PathBytes())
}

// SetPath stores relative as the entry's path, failing with
// ErrPathTooLong if it (plus its NUL terminator) would not fit, or
// ErrInvalidPathComponent if it has a non-normal component.
func (e *Entry) SetPath(relative string) error {
	if err := CheckRelativePath(relative); err != nil {
		return err
	}
	if len(relative) >= PathFieldSize {
		return fmt.Errorf("pkgcore: path %q: %w", relative, ErrPathTooLong)
	}
	var buf [PathFieldSize]byte
	copy(buf[:], relative)
	e.Path = buf
	return nil
}

// CheckRelativePath enforces that path is strictly relative: every
// component must be "normal" — no ".", "..", empty segments, or absolute
// roots.
func CheckRelativePath(p string) error {
	if p == "" {
		return fmt.Errorf("pkgcore: empty path: %w", ErrInvalidPathComponent)
	}
	if path.IsAbs(p) {
		return fmt.Errorf("pkgcore: absolute path %q: %w", p, ErrInvalidPathComponent)
	}
	for _, component := range strings.Split(p, "/") {
		switch component {
		case "", ".", "..":
			return fmt.Errorf("pkgcore: path %q has non-normal component %q: %w", p, component, ErrInvalidPathComponent)
		}
	}
	return nil
}
