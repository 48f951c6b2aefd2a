package pkgcore

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed-size record at the start of every archive. It is
// signed from byte 64 onward; Signature covers every byte that follows it.
type Header struct {
	Signature [SignatureSize]byte
	PublicKey [PublicKeySize]byte
	Blake3    [32]byte
	Count     uint32
	Flags     HeaderFlags
}

// Pack serializes h to its on-disk little-endian layout. Like
// PSPFIndex.Pack in the teacher codebase, every field is written at an
// explicit byte offset rather than relying on the compiler's in-memory
// struct layout, so the result is portable regardless of host alignment.
func (h *Header) Pack() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:64], h.Signature[:])
	copy(buf[64:96], h.PublicKey[:])
	copy(buf[96:128], h.Blake3[:])
	binary.LittleEndian.PutUint32(buf[128:132], h.Count)
	binary.LittleEndian.PutUint32(buf[132:136], uint32(h.Flags))
	return buf
}

// Unpack parses a HeaderSize-byte buffer into h. The buffer must be exactly
// HeaderSize bytes; callers that have a longer slice should reslice first.
func (h *Header) Unpack(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("pkgcore: invalid header size: %d: %w", len(data), ErrTruncated)
	}
	copy(h.Signature[:], data[0:64])
	copy(h.PublicKey[:], data[64:96])
	copy(h.Blake3[:], data[96:128])
	h.Count = binary.LittleEndian.Uint32(data[128:132])
	h.Flags = HeaderFlags(binary.LittleEndian.Uint32(data[132:136]))
	return nil
}

// EntryTableSize returns the byte length of the entry table this header
// declares, failing with ErrOverflow if it would not fit in a uint64.
func (h *Header) EntryTableSize() (uint64, error) {
	count := uint64(h.Count)
	size := count * EntrySize
	if count != 0 && size/count != EntrySize {
		return 0, ErrOverflow
	}
	return size, nil
}

// TotalHeadSize returns HeaderSize plus the entry table size.
func (h *Header) TotalHeadSize() (uint64, error) {
	entries, err := h.EntryTableSize()
	if err != nil {
		return 0, err
	}
	total := entries + HeaderSize
	if total < entries {
		return 0, ErrOverflow
	}
	return total, nil
}
