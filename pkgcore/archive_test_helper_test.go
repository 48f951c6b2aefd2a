package pkgcore

import (
	"bytes"
	"crypto/ed25519"
)

// testFile describes one entry to bake into a test archive.
type testFile struct {
	path    string
	content []byte
	mode    Mode
}

// sliceAppender is an io.Writer that appends to the slice behind ptr.
type sliceAppender struct {
	ptr *[]byte
}

func (s sliceAppender) Write(p []byte) (int, error) {
	*s.ptr = append(*s.ptr, p...)
	return len(p), nil
}

// buildTestArchive packs files into a minimal, correctly-signed archive
// buffer under the given packaging mode, without going through the pkgar
// package (which depends on pkgcore, not the other way around).
func buildTestArchive(priv ed25519.PrivateKey, pub ed25519.PublicKey, packaging Packaging, files []testFile) ([]byte, error) {
	var data []byte
	entries := make([]Entry, len(files))
	buf := make([]byte, 4096)

	for i, f := range files {
		before := len(data)
		onDisk, hash, err := EncodeEntryData(packaging, sliceAppender{&data}, bytes.NewReader(f.content), uint64(len(f.content)), buf)
		if err != nil {
			return nil, err
		}
		e := Entry{Blake3: hash, Offset: uint64(before), Size: onDisk, Mode: f.mode}
		if err := e.SetPath(f.path); err != nil {
			return nil, err
		}
		entries[i] = e
	}

	header := &Header{
		Blake3: HashEntryTable(entries),
		Count:  uint32(len(entries)),
		Flags:  NewHeaderFlags(DataVersionCurrent, ArchIndependent, packaging),
	}
	copy(header.PublicKey[:], pub)
	packed := header.Pack()
	sig := ed25519.Sign(priv, packed[64:])
	copy(header.Signature[:], sig)

	out := header.Pack()
	for i := range entries {
		out = append(out, entries[i].Pack()...)
	}
	out = append(out, data...)
	return out, nil
}
