package pkgcore

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"lukechampine.com/blake3"
)

// VerifyHeader parses and authenticates the header at the start of buf.
// It checks that buf's first HeaderSize bytes carry a valid Ed25519
// signature over bytes [64:HeaderSize) under pkey, and that the header's
// embedded public key equals pkey. It does not touch the entry table or
// data region.
func VerifyHeader(buf []byte, pkey ed25519.PublicKey) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("pkgcore: header needs %d bytes, got %d: %w", HeaderSize, len(buf), ErrTruncated)
	}

	signed := buf[:HeaderSize]
	if !ed25519.Verify(pkey, signed[64:], signed[:64]) {
		return nil, ErrInvalidSignature
	}

	header := new(Header)
	if err := header.Unpack(signed); err != nil {
		return nil, err
	}
	if !bytes.Equal(header.PublicKey[:], pkey) {
		return nil, ErrInvalidKey
	}
	return header, nil
}

// VerifyEntries hashes the packed entry table that follows a verified
// header and compares it against header.Blake3, returning the typed entry
// slice on success. buf must hold at least the entry table's declared
// length, starting at its first byte (i.e. with the header already
// stripped).
func (h *Header) VerifyEntries(buf []byte) ([]Entry, error) {
	size, err := h.EntryTableSize()
	if err != nil {
		return nil, err
	}
	if uint64(len(buf)) < size {
		return nil, fmt.Errorf("pkgcore: entry table needs %d bytes, got %d: %w", size, len(buf), ErrTruncated)
	}
	table := buf[:size]

	sum := blake3.Sum256(table)
	if !bytes.Equal(sum[:], h.Blake3[:]) {
		return nil, ErrInvalidBlake3
	}

	entries := make([]Entry, h.Count)
	for i := range entries {
		start := i * EntrySize
		if err := entries[i].Unpack(table[start : start+EntrySize]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// HashEntryTable returns the BLAKE3 digest of a packed entry table, as
// stored in Header.Blake3 by the builder.
func HashEntryTable(entries []Entry) [32]byte {
	buf := make([]byte, 0, len(entries)*EntrySize)
	for i := range entries {
		buf = append(buf, entries[i].Pack()...)
	}
	return blake3.Sum256(buf)
}
