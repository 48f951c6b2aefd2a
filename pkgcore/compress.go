package pkgcore

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
	"lukechampine.com/blake3"
)

// DefaultDictSize is pkgar's base LZMA2 dictionary size; the archive format
// uses DefaultDictSize<<3 (a preset-5-equivalent 8 MiB window).
const DefaultDictSize = 1 << 20

// lzma2DictCap is the dictionary capacity pkgar actually configures both
// its encoder and decoder with.
const lzma2DictCap = DefaultDictSize << 3

// lengthPrefixSize is the width of the little-endian uncompressed-length
// prefix that precedes every LZMA2 entry in the data region.
const lengthPrefixSize = 8

// codec adapts the data region to a packaging mode. It mirrors the
// Apply/Reverse adapter shape used for GZIP/BZIP2 in the teacher codebase,
// but wired to pkgar's two packaging modes instead of a composable codec
// chain: the archive format has exactly one on/off compression bit, not an
// arbitrary operation chain.
type codec interface {
	// encodeEntry streams exactly declaredSize bytes of uncompressed
	// content from r into w, computing their BLAKE3 digest as it goes.
	// It returns the number of bytes written to w (the entry's on-disk
	// size) and the content hash.
	encodeEntry(w io.Writer, r io.Reader, declaredSize uint64, buf []byte) (onDiskSize uint64, hash [32]byte, err error)

	// newEntryReader returns a reader over one entry's uncompressed
	// bytes, given raw sequential access to the data region starting at
	// the entry's offset, plus the number of uncompressed bytes that
	// reader will yield. For LZMA2 that decoded length is read off the
	// entry's own length prefix and differs from entrySize (the on-disk,
	// compressed span); callers must size reads against the returned
	// length, not entrySize.
	newEntryReader(raw io.Reader, entrySize uint64) (io.Reader, uint64, error)
}

// EncodeEntryData streams declaredSize bytes of uncompressed content from r
// into w under the given packaging mode, returning the number of bytes
// written to w (the entry's on-disk size) and the BLAKE3 digest of the
// uncompressed content. It is the builder-facing entry point to this
// package's codec adapters.
func EncodeEntryData(packaging Packaging, w io.Writer, r io.Reader, declaredSize uint64, buf []byte) (uint64, [32]byte, error) {
	c, err := newCodec(packaging)
	if err != nil {
		return 0, [32]byte{}, err
	}
	return c.encodeEntry(w, r, declaredSize, buf)
}

func newCodec(p Packaging) (codec, error) {
	switch p {
	case PackagingUncompressed:
		return uncompressedCodec{}, nil
	case PackagingLZMA2:
		return lzma2Codec{}, nil
	default:
		return nil, fmt.Errorf("pkgcore: packaging %d: %w", p, ErrNotSupported)
	}
}

// uncompressedCodec passes entry bytes through unchanged.
type uncompressedCodec struct{}

func (uncompressedCodec) encodeEntry(w io.Writer, r io.Reader, declaredSize uint64, buf []byte) (uint64, [32]byte, error) {
	hasher := blake3.New(32, nil)
	var written uint64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			written += uint64(n)
			hasher.Write(buf[:n])
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, [32]byte{}, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, [32]byte{}, rerr
		}
	}
	if written != declaredSize {
		return written, [32]byte{}, fmt.Errorf("pkgcore: streamed %d bytes, declared %d", written, declaredSize)
	}
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return written, sum, nil
}

func (uncompressedCodec) newEntryReader(raw io.Reader, entrySize uint64) (io.Reader, uint64, error) {
	return io.LimitReader(raw, int64(entrySize)), entrySize, nil
}

// lzma2Codec compresses each entry as an independent LZMA2 stream, preceded
// by an 8-byte little-endian uncompressed length (§3, §4.4).
type lzma2Codec struct{}

func (lzma2Codec) encodeEntry(w io.Writer, r io.Reader, declaredSize uint64, buf []byte) (uint64, [32]byte, error) {
	var prefix [lengthPrefixSize]byte
	binary.LittleEndian.PutUint64(prefix[:], declaredSize)
	if _, err := w.Write(prefix[:]); err != nil {
		return 0, [32]byte{}, err
	}

	counter := &countingWriter{w: w}
	lw, err := lzma.Writer2Config{DictCap: lzma2DictCap}.NewWriter2(counter)
	if err != nil {
		return 0, [32]byte{}, fmt.Errorf("pkgcore: creating lzma2 writer: %w", err)
	}

	hasher := blake3.New(32, nil)
	var written uint64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			written += uint64(n)
			hasher.Write(buf[:n])
			if _, werr := lw.Write(buf[:n]); werr != nil {
				return 0, [32]byte{}, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, [32]byte{}, rerr
		}
	}
	if err := lw.Close(); err != nil {
		return 0, [32]byte{}, fmt.Errorf("pkgcore: closing lzma2 writer: %w", err)
	}
	if written != declaredSize {
		return 0, [32]byte{}, fmt.Errorf("pkgcore: streamed %d bytes, declared %d", written, declaredSize)
	}

	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return lengthPrefixSize + counter.n, sum, nil
}

func (lzma2Codec) newEntryReader(raw io.Reader, entrySize uint64) (io.Reader, uint64, error) {
	if entrySize < lengthPrefixSize {
		return nil, 0, fmt.Errorf("pkgcore: lzma2 entry too short for length prefix: %w", ErrTruncated)
	}
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(raw, prefix[:]); err != nil {
		return nil, 0, err
	}
	declaredSize := binary.LittleEndian.Uint64(prefix[:])

	compressed := io.LimitReader(raw, int64(entrySize-lengthPrefixSize))
	lr, err := lzma.Reader2Config{DictCap: lzma2DictCap}.NewReader2(compressed)
	if err != nil {
		return nil, 0, fmt.Errorf("pkgcore: creating lzma2 reader: %w", err)
	}
	return io.LimitReader(lr, int64(declaredSize)), declaredSize, nil
}

// countingWriter counts bytes written through it, so the LZMA2 encoder can
// report the on-disk size of the compressed stream it produced.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}
