package pkgar

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/pkgar/pkgcore"
)

const defaultBuilderBufSize = 4 << 20 // 4 MiB, matching the teacher's streaming buffer size.

type entryKind uint8

const (
	entryKindFile entryKind = iota
	entryKindReader
	entryKindSymlink
)

// builderEntry is the Go rendering of original_source's BuilderEntry enum.
// Go has no sum types, so the variant lives in kind and only the fields
// that variant uses are populated.
type builderEntry struct {
	kind   entryKind
	source string    // entryKindFile: filesystem path to read from.
	reader io.Reader // entryKindReader: already-open content.
	link   string    // entryKindSymlink: the link's destination text.
	target string    // archive-relative path, every kind.
	mode   pkgcore.Mode
}

// Option configures a Builder at construction time.
type Option func(*Builder)

// WithPackaging selects the data region's compression discipline. The
// default is pkgcore.PackagingUncompressed.
func WithPackaging(p pkgcore.Packaging) Option {
	return func(b *Builder) { b.packaging = p }
}

// WithArchitecture narrows the archive to a specific target. The default
// is pkgcore.ArchIndependent.
func WithArchitecture(a pkgcore.Architecture) Option {
	return func(b *Builder) { b.arch = a }
}

// WithLogger overrides the builder's logger. The default discards output.
func WithLogger(l hclog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithModeOverride forces every file AddDir discovers to carry perm's
// permission bits in the archive, instead of whatever the source
// filesystem reports. Symlinks are unaffected. Useful for reproducible
// builds where the working tree's permissions are not meaningful.
func WithModeOverride(perm os.FileMode) Option {
	return func(b *Builder) {
		p := perm.Perm()
		b.modeOverride = &p
	}
}

// Builder accumulates entries and streams them into a signed archive,
// grounded on original_source/pkgar/src/builder.rs's PackageBuilder.
type Builder struct {
	priv         ed25519.PrivateKey
	pub          ed25519.PublicKey
	packaging    pkgcore.Packaging
	arch         pkgcore.Architecture
	entries      []builderEntry
	logger       hclog.Logger
	modeOverride *os.FileMode
}

// NewBuilder creates a Builder that will sign its archive with priv.
func NewBuilder(priv ed25519.PrivateKey, opts ...Option) *Builder {
	b := &Builder{
		priv:   priv,
		pub:    priv.Public().(ed25519.PublicKey),
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddFile queues the file at sourcePath to be stored under target with
// the given permission bits.
func (b *Builder) AddFile(sourcePath, target string, perm os.FileMode) error {
	if err := pkgcore.CheckRelativePath(target); err != nil {
		return err
	}
	b.entries = append(b.entries, builderEntry{
		kind:   entryKindFile,
		source: sourcePath,
		target: target,
		mode:   pkgcore.Mode(pkgcore.ModeFile) | pkgcore.Mode(perm.Perm()),
	})
	return nil
}

// AddFileReader queues r's remaining content to be stored under target.
// Because the archive format needs an entry's size before it can be
// compressed, r is buffered into memory in full before streaming begins —
// the same tradeoff the teacher accepts for its small in-memory assets.
func (b *Builder) AddFileReader(r io.Reader, target string, perm os.FileMode) error {
	if err := pkgcore.CheckRelativePath(target); err != nil {
		return err
	}
	b.entries = append(b.entries, builderEntry{
		kind:   entryKindReader,
		reader: r,
		target: target,
		mode:   pkgcore.Mode(pkgcore.ModeFile) | pkgcore.Mode(perm.Perm()),
	})
	return nil
}

// AddSymlink queues a symlink under target whose destination is link.
func (b *Builder) AddSymlink(target, link string, perm os.FileMode) error {
	if err := pkgcore.CheckRelativePath(target); err != nil {
		return err
	}
	b.entries = append(b.entries, builderEntry{
		kind:   entryKindSymlink,
		link:   link,
		target: target,
		mode:   pkgcore.Mode(pkgcore.ModeSymlink) | pkgcore.Mode(perm.Perm()),
	})
	return nil
}

// AddDir walks root and queues every regular file and symlink found under
// it, in deterministic lexicographic path order. Symlinks are not
// followed during the walk; any entry that is neither a regular file, a
// directory, nor a symlink is rejected with ErrUnsupportedMode.
func (b *Builder) AddDir(root string) error {
	type found struct {
		relPath string
		absPath string
		info    os.FileInfo
	}
	var collected []found

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case info.IsDir():
			return nil
		case info.Mode()&os.ModeSymlink != 0, info.Mode().IsRegular():
			collected = append(collected, found{relPath: rel, absPath: p, info: info})
			return nil
		default:
			return fmt.Errorf("pkgar: %s: %w", p, ErrUnsupportedMode)
		}
	})
	if err != nil {
		return err
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].relPath < collected[j].relPath
	})

	for _, f := range collected {
		if f.info.Mode()&os.ModeSymlink != 0 {
			dest, err := os.Readlink(f.absPath)
			if err != nil {
				return err
			}
			if err := b.AddSymlink(f.relPath, dest, f.info.Mode().Perm()); err != nil {
				return err
			}
			continue
		}
		perm := f.info.Mode().Perm()
		if b.modeOverride != nil {
			perm = *b.modeOverride
		}
		if err := b.AddFile(f.absPath, f.relPath, perm); err != nil {
			return err
		}
	}
	return nil
}

// openEntry returns a reader over e's content and its declared size. The
// caller is responsible for closing the returned closer when non-nil.
func openEntry(e builderEntry) (io.Reader, io.Closer, uint64, error) {
	switch e.kind {
	case entryKindFile:
		f, err := os.Open(e.source)
		if err != nil {
			return nil, nil, 0, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, nil, 0, err
		}
		return f, f, uint64(info.Size()), nil
	case entryKindReader:
		data, err := io.ReadAll(e.reader)
		if err != nil {
			return nil, nil, 0, err
		}
		return bytes.NewReader(data), nil, uint64(len(data)), nil
	case entryKindSymlink:
		return strings.NewReader(e.link), nil, uint64(len(e.link)), nil
	default:
		return nil, nil, 0, fmt.Errorf("pkgar: unknown builder entry kind %d: %w", e.kind, ErrUnsupportedMode)
	}
}

// buildEntries streams every queued entry's content into data in queue
// order, returning finalized pkgcore.Entry records whose Offset fields are
// relative to baseOffset. Both WriteArchive and WriteParts pass 0: entry
// offsets are always DATA-relative, never absolute file offsets, matching
// how Source implementations read them back.
func (b *Builder) buildEntries(data io.Writer, baseOffset uint64) ([]pkgcore.Entry, error) {
	buf := make([]byte, defaultBuilderBufSize)
	entries := make([]pkgcore.Entry, len(b.entries))
	offset := baseOffset

	for i, be := range b.entries {
		r, closer, size, err := openEntry(be)
		if err != nil {
			return nil, fmt.Errorf("pkgar: opening %q: %w", be.target, err)
		}

		onDiskSize, hash, err := pkgcore.EncodeEntryData(b.packaging, data, r, size, buf)
		if closer != nil {
			closer.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("pkgar: encoding %q: %w", be.target, err)
		}

		entry := pkgcore.Entry{
			Blake3: hash,
			Offset: offset,
			Size:   onDiskSize,
			Mode:   be.mode,
		}
		if err := entry.SetPath(be.target); err != nil {
			return nil, err
		}
		entries[i] = entry
		offset += onDiskSize

		b.logger.Debug("encoded entry", "path", be.target, "size", size, "on_disk_size", onDiskSize)
	}
	return entries, nil
}

// sealHeader signs a header over entries, returning the packed
// header+table bytes ready to write.
func (b *Builder) sealHeader(entries []pkgcore.Entry) []byte {
	tableBuf := make([]byte, 0, len(entries)*pkgcore.EntrySize)
	for i := range entries {
		tableBuf = append(tableBuf, entries[i].Pack()...)
	}

	header := &pkgcore.Header{
		Blake3: pkgcore.HashEntryTable(entries),
		Count:  uint32(len(entries)),
		Flags:  pkgcore.NewHeaderFlags(pkgcore.DataVersionCurrent, b.arch, b.packaging),
	}
	copy(header.PublicKey[:], b.pub)

	packed := header.Pack()
	sig := ed25519.Sign(b.priv, packed[64:])
	copy(header.Signature[:], sig)

	return append(header.Pack(), tableBuf...)
}

// headSize returns the combined-archive byte offset at which the data
// region begins, for the entry count currently queued.
func (b *Builder) headSize() uint64 {
	return uint64(pkgcore.HeaderSize) + uint64(len(b.entries))*uint64(pkgcore.EntrySize)
}

// WriteArchive writes a single combined archive (HEADER ‖ ENTRY TABLE ‖
// DATA) to w, returning its total size. w must support seeking because
// the header and entry table are only known once the data region has been
// streamed and hashed.
func (b *Builder) WriteArchive(w io.WriteSeeker) (int64, error) {
	headSize := b.headSize()
	if _, err := w.Seek(int64(headSize), io.SeekStart); err != nil {
		return 0, err
	}

	// entry.Offset is always DATA-relative (offset 0 is the first byte
	// after the header+table), matching how BufferSource/FileSource read
	// it back as dataOffset+entry.Offset; WriteParts relies on the same
	// convention.
	entries, err := b.buildEntries(w, 0)
	if err != nil {
		return 0, err
	}
	dataSize := uint64(0)
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		dataSize = last.Offset + last.Size
	}

	head := b.sealHeader(entries)
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := w.Write(head); err != nil {
		return 0, err
	}

	return int64(headSize + dataSize), nil
}

// WriteParts writes the split .pkgar_head/.pkgar_data layout: head gets
// the signed header and entry table, data gets the raw data region
// starting at offset 0. Neither writer needs to support seeking.
func (b *Builder) WriteParts(head io.Writer, data io.Writer) (headSize, dataSize int64, err error) {
	entries, err := b.buildEntries(data, 0)
	if err != nil {
		return 0, 0, err
	}
	dataSize = 0
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		dataSize = int64(last.Offset + last.Size)
	}

	headBuf := b.sealHeader(entries)
	if _, err := head.Write(headBuf); err != nil {
		return 0, 0, err
	}
	return int64(len(headBuf)), dataSize, nil
}
