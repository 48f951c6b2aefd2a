package pkgar

import (
	"io"
	"os"

	"lukechampine.com/blake3"

	"github.com/provide-io/pkgar/pkgcore"
)

// DriftKind classifies how an installed path diverges from its archive
// entry.
type DriftKind uint8

const (
	DriftMissing DriftKind = iota
	DriftWrongType
	DriftModeMismatch
	DriftSizeMismatch
	DriftHashMismatch
)

func (k DriftKind) String() string {
	switch k {
	case DriftMissing:
		return "missing"
	case DriftWrongType:
		return "wrong-type"
	case DriftModeMismatch:
		return "mode-mismatch"
	case DriftSizeMismatch:
		return "size-mismatch"
	case DriftHashMismatch:
		return "hash-mismatch"
	default:
		return "unknown"
	}
}

// Drift reports one path that no longer matches what the archive declares.
type Drift struct {
	Path string
	Kind DriftKind
}

// Verify re-hashes every file and symlink an archive installed under
// basedir and compares it against the archive's declared mode, size and
// BLAKE3 digest, reporting every divergence it finds. It does not modify
// the filesystem or the transaction log; this is a read-only supplement
// to Transaction, for detecting drift after installation (a package
// manager's "has this file been tampered with or modified" check).
func Verify(src pkgcore.Source, basedir string) ([]Drift, error) {
	var drifts []Drift
	buf := make([]byte, defaultBuilderBufSize)
	// entry.Size is the on-disk (possibly LZMA2-compressed) byte count, not
	// the installed file's length, so a size check against the decompressed
	// file on disk only makes sense for uncompressed archives (§9's size-vs-
	// blake3 split).
	checkSize := src.Header().Flags.Packaging() == pkgcore.PackagingUncompressed

	for _, entry := range src.Entries() {
		relative := entry.PathString()
		target, err := resolveTarget(basedir, relative)
		if err != nil {
			return nil, err
		}

		info, err := os.Lstat(target)
		if err != nil {
			if os.IsNotExist(err) {
				drifts = append(drifts, Drift{Path: relative, Kind: DriftMissing})
				continue
			}
			return nil, err
		}

		switch entry.Mode.Kind() {
		case pkgcore.ModeFile:
			if !info.Mode().IsRegular() {
				drifts = append(drifts, Drift{Path: relative, Kind: DriftWrongType})
				continue
			}
			if uint32(info.Mode().Perm()) != entry.Mode.Perm() {
				drifts = append(drifts, Drift{Path: relative, Kind: DriftModeMismatch})
			}

			f, err := os.Open(target)
			if err != nil {
				return nil, err
			}
			size, hash, err := copyAndHash(f, io.Discard, buf)
			f.Close()
			if err != nil {
				return nil, err
			}
			if checkSize && size != entry.Size {
				drifts = append(drifts, Drift{Path: relative, Kind: DriftSizeMismatch})
				continue
			}
			if hash != entry.Blake3 {
				drifts = append(drifts, Drift{Path: relative, Kind: DriftHashMismatch})
			}

		case pkgcore.ModeSymlink:
			if info.Mode()&os.ModeSymlink == 0 {
				drifts = append(drifts, Drift{Path: relative, Kind: DriftWrongType})
				continue
			}
			dest, err := os.Readlink(target)
			if err != nil {
				return nil, err
			}
			if checkSize && uint64(len(dest)) != entry.Size {
				drifts = append(drifts, Drift{Path: relative, Kind: DriftSizeMismatch})
				continue
			}
			if blake3.Sum256([]byte(dest)) != entry.Blake3 {
				drifts = append(drifts, Drift{Path: relative, Kind: DriftHashMismatch})
			}

		default:
			return nil, ErrUnsupportedMode
		}
	}
	return drifts, nil
}
