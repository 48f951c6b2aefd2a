package pkgcore

import (
	"crypto/ed25519"
	"fmt"
	"io"
)

// Source is a read-at-offset view over an archive's data region, shared by
// the buffer, file and URL backends. Callers obtain one by parsing a
// header first (ReadHeader), then reading each entry's bytes through
// ReadData. Implementations are not safe for concurrent use.
type Source interface {
	// ReadHeader verifies and caches the archive's header and entry
	// table under pkey. It must be called once before any other method.
	ReadHeader(pkey ed25519.PublicKey) (*Header, error)

	// Header returns the header cached by ReadHeader. It panics if
	// called before ReadHeader succeeds.
	Header() *Header

	// Entries returns the entry table cached by ReadHeader.
	Entries() []Entry

	// ReadAt fills buf with bytes from the data region starting at
	// offset (an offset into DATA, not into the whole archive). It
	// returns the number of bytes read; a short read at end of data
	// returns a smaller count and a nil error, mirroring io.ReaderAt
	// only loosely since pkgar treats EOF as zero-fill-free truncation.
	ReadAt(offset uint64, buf []byte) (int, error)

	// InitDataRead prepares the source to read entries' uncompressed
	// bytes. It must be called once, after ReadHeader and before any
	// ReadData call, so that a compressed source can position a
	// streaming decoder at the start of the data region.
	InitDataRead() error

	// ReadData fills buf with up to the entry's remaining uncompressed
	// content, starting at innerOffset within the entry's decoded byte
	// stream (not entry.Size, which for a compressed entry is the
	// on-disk span rather than the decoded length). Sources that
	// decompress on the fly require innerOffset to be reached by
	// strictly forward reads within a single entry.
	ReadData(entry Entry, innerOffset uint64, buf []byte) (int, error)
}

// baseSource holds the state common to every Source implementation: the
// cached header/entries and the compression codec selected by the
// header's flags.
type baseSource struct {
	header  *Header
	entries []Entry
	codec   codec
}

func (b *baseSource) Header() *Header {
	if b.header == nil {
		panic("pkgcore: Header called before ReadHeader")
	}
	return b.header
}

func (b *baseSource) Entries() []Entry {
	return b.entries
}

func (b *baseSource) verifyAndCache(headBuf []byte, pkey ed25519.PublicKey) (*Header, error) {
	header, err := VerifyHeader(headBuf, pkey)
	if err != nil {
		return nil, err
	}
	tableSize, err := header.EntryTableSize()
	if err != nil {
		return nil, err
	}
	if uint64(len(headBuf)) < HeaderSize+tableSize {
		return nil, ErrTruncated
	}
	entries, err := header.VerifyEntries(headBuf[HeaderSize:])
	if err != nil {
		return nil, err
	}

	c, err := newCodec(header.Flags.Packaging())
	if err != nil {
		return nil, err
	}

	b.header = header
	b.entries = entries
	b.codec = c
	return header, nil
}

// rawReadAtFunc reads raw (still-possibly-compressed) data-region bytes,
// matching the signature each concrete Source already exposes as ReadAt.
type rawReadAtFunc func(offset uint64, buf []byte) (int, error)

// offsetReader presents sequential io.Reader semantics over a
// rawReadAtFunc, starting at a fixed offset and advancing with each Read —
// exactly the access pattern the LZMA2 decoder needs (§4.4: backward
// seeking within an entry is not supported).
type offsetReader struct {
	readAt rawReadAtFunc
	offset uint64
}

func (r *offsetReader) Read(buf []byte) (int, error) {
	n, err := r.readAt(r.offset, buf)
	r.offset += uint64(n)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

// entryCursor remembers the decoder positioned over the entry currently
// being read, so consecutive forward ReadData calls against the same entry
// resume the same stream instead of restarting the decoder. size is the
// decoded (uncompressed) byte count the reader will yield in total, which
// for LZMA2 differs from entry.Size (the on-disk, compressed span).
type entryCursor struct {
	offset uint64 // entry.Offset, identifies which entry this cursor serves
	reader io.Reader
	pos    uint64
	size   uint64
}

// readData implements the shared forward-only, possibly-decompressing
// read path described in §4.3-§4.4, given the concrete Source's raw
// ReadAt. cursor is the calling Source's persistent per-instance cursor
// slot.
func (b *baseSource) readData(readAt rawReadAtFunc, cursor *entryCursor, entry Entry, innerOffset uint64, buf []byte) (int, error) {
	if cursor.reader == nil || cursor.offset != entry.Offset || innerOffset < cursor.pos {
		raw := &offsetReader{readAt: readAt, offset: entry.Offset}
		reader, size, err := b.codec.newEntryReader(raw, entry.Size)
		if err != nil {
			return 0, err
		}
		cursor.offset = entry.Offset
		cursor.reader = reader
		cursor.size = size
		cursor.pos = 0
	}

	if innerOffset >= cursor.size {
		return 0, nil
	}

	if innerOffset > cursor.pos {
		skip := innerOffset - cursor.pos
		n, err := io.CopyN(io.Discard, cursor.reader, int64(skip))
		cursor.pos += uint64(n)
		if err != nil {
			return 0, fmt.Errorf("pkgcore: skipping to offset %d: %w", innerOffset, err)
		}
	}

	max := cursor.size - innerOffset
	if uint64(len(buf)) > max {
		buf = buf[:max]
	}
	n, err := cursor.reader.Read(buf)
	cursor.pos += uint64(n)
	if err == io.EOF {
		err = nil
	}
	return n, err
}
