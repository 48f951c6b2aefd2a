package pkgar

import (
	"io"

	"github.com/provide-io/pkgar/pkgcore"
	"lukechampine.com/blake3"
)

// EntryReader streams one entry's decompressed bytes out of a source,
// grounded on pkgar's ext.rs EntryReader. Source.ReadData already accounts
// for the archive's packaging mode, so everything downstream of EntryReader
// sees plain uncompressed bytes regardless of how the archive stores them.
type EntryReader struct {
	src   pkgcore.Source
	entry pkgcore.Entry
	pos   uint64
}

// NewEntryReader returns a reader over entry's content in src.
func NewEntryReader(src pkgcore.Source, entry pkgcore.Entry) *EntryReader {
	return &EntryReader{src: src, entry: entry}
}

func (r *EntryReader) Read(buf []byte) (int, error) {
	n, err := r.src.ReadData(r.entry, r.pos, buf)
	r.pos += uint64(n)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

// copyAndHash streams read into write through buf, returning the number of
// bytes copied and their BLAKE3 digest. It is the extractor- and
// verifier-side analogue of pkgar's copy_and_hash: the compression codec
// has already been applied by the time bytes reach it, so this only ever
// touches plain bytes. The builder hashes through pkgcore.EncodeEntryData
// instead.
func copyAndHash(read io.Reader, write io.Writer, buf []byte) (uint64, [32]byte, error) {
	hasher := blake3.New(32, nil)
	var written uint64
	for {
		n, rerr := read.Read(buf)
		if n > 0 {
			written += uint64(n)
			hasher.Write(buf[:n])
			if write != nil {
				if _, werr := write.Write(buf[:n]); werr != nil {
					return written, [32]byte{}, werr
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, [32]byte{}, rerr
		}
	}
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return written, sum, nil
}
