package pkgcore

import (
	"crypto/ed25519"
	"io"
	"os"
)

// FileSource is a Source backed by a seekable regular file, grounded on
// the buffered sequential-read style of format_2025.Reader. It tracks the
// file's current offset so that sequential entry reads (the extractor's
// normal access pattern) avoid a redundant seek per call.
type FileSource struct {
	baseSource
	file       *os.File
	dataOffset uint64
	pos        int64
	cursor     entryCursor
}

// NewFileSource opens path for reading.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{file: f, pos: -1}, nil
}

// Close releases the underlying file handle.
func (s *FileSource) Close() error {
	return s.file.Close()
}

func (s *FileSource) ReadHeader(pkey ed25519.PublicKey) (*Header, error) {
	headBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(io.NewSectionReader(s.file, 0, HeaderSize), headBuf); err != nil {
		return nil, err
	}
	header := new(Header)
	if err := header.Unpack(headBuf); err != nil {
		return nil, err
	}
	tableSize, err := header.EntryTableSize()
	if err != nil {
		return nil, err
	}

	full := make([]byte, HeaderSize+tableSize)
	if _, err := io.ReadFull(io.NewSectionReader(s.file, 0, int64(len(full))), full); err != nil {
		return nil, err
	}

	verified, err := s.verifyAndCache(full, pkey)
	if err != nil {
		return nil, err
	}
	total, err := verified.TotalHeadSize()
	if err != nil {
		return nil, err
	}
	s.dataOffset = total
	return verified, nil
}

func (s *FileSource) ReadAt(offset uint64, buf []byte) (int, error) {
	abs := int64(s.dataOffset + offset)
	if s.pos != abs {
		if _, err := s.file.Seek(abs, io.SeekStart); err != nil {
			return 0, err
		}
	}
	n, err := s.file.Read(buf)
	s.pos = abs + int64(n)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (s *FileSource) InitDataRead() error {
	_, err := s.file.Seek(int64(s.dataOffset), io.SeekStart)
	s.pos = int64(s.dataOffset)
	return err
}

func (s *FileSource) ReadData(entry Entry, innerOffset uint64, buf []byte) (int, error) {
	return s.readData(s.ReadAt, &s.cursor, entry, innerOffset, buf)
}
