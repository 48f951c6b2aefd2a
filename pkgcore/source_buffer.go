package pkgcore

import "crypto/ed25519"

// BufferSource is a Source backed by an in-memory archive (head and data
// regions in a single byte slice), grounded on pkgar-core's PackageBuf.
type BufferSource struct {
	baseSource
	buf        []byte
	dataOffset uint64
	cursor     entryCursor
}

// NewBufferSource wraps buf, which must contain the full archive: HEADER ‖
// ENTRY TABLE ‖ DATA.
func NewBufferSource(buf []byte) *BufferSource {
	return &BufferSource{buf: buf}
}

func (s *BufferSource) ReadHeader(pkey ed25519.PublicKey) (*Header, error) {
	header, err := s.verifyAndCache(s.buf, pkey)
	if err != nil {
		return nil, err
	}
	total, err := header.TotalHeadSize()
	if err != nil {
		return nil, err
	}
	s.dataOffset = total
	return header, nil
}

func (s *BufferSource) ReadAt(offset uint64, buf []byte) (int, error) {
	start := s.dataOffset + offset
	if start >= uint64(len(s.buf)) {
		return 0, nil
	}
	end := start + uint64(len(buf))
	if end > uint64(len(s.buf)) {
		end = uint64(len(s.buf))
	}
	n := copy(buf, s.buf[start:end])
	return n, nil
}

func (s *BufferSource) InitDataRead() error {
	return nil
}

func (s *BufferSource) ReadData(entry Entry, innerOffset uint64, buf []byte) (int, error) {
	return s.readData(s.ReadAt, &s.cursor, entry, innerOffset, buf)
}
