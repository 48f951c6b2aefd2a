package pkgar

import (
	"bytes"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/provide-io/pkgar/pkgcore"
)

func buildArchiveSource(t *testing.T, b *Builder) (*pkgcore.BufferSource, ed25519.PublicKey) {
	t.Helper()
	pub := b.pub
	w := &memWriteSeeker{}
	if _, err := b.WriteArchive(w); err != nil {
		t.Fatal(err)
	}
	src := pkgcore.NewBufferSource(w.Bytes())
	if _, err := src.ReadHeader(pub); err != nil {
		t.Fatal(err)
	}
	return src, pub
}

func TestInstallThenExtractRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv)
	if err := b.AddFileReader(bytes.NewReader([]byte("hello\n")), "a/b.txt", 0o644); err != nil {
		t.Fatal(err)
	}
	if err := b.AddSymlink("a/c", "b.txt", 0o777); err != nil {
		t.Fatal(err)
	}
	src, _ := buildArchiveSource(t, b)

	dir := t.TempDir()
	tx := NewTransaction(nil)
	if err := tx.Install(src, dir); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "a", "b.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello\n" {
		t.Errorf("a/b.txt content = %q, want %q", got, "hello\n")
	}

	link, err := os.Readlink(filepath.Join(dir, "a", "c"))
	if err != nil {
		t.Fatal(err)
	}
	if link != "b.txt" {
		t.Errorf("a/c symlink target = %q, want %q", link, "b.txt")
	}
}

func TestInstallThenExtractRoundTripLZMA2(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv, WithPackaging(pkgcore.PackagingLZMA2))
	content := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 256)
	if err := b.AddFileReader(bytes.NewReader(content), "big.txt", 0o644); err != nil {
		t.Fatal(err)
	}
	src, _ := buildArchiveSource(t, b)

	entries := src.Entries()
	if entries[0].Size >= uint64(len(content)) {
		t.Fatalf("on-disk size %d is not smaller than the uncompressed content %d; this entry won't exercise truncation-prone decoding", entries[0].Size, len(content))
	}

	dir := t.TempDir()
	tx := NewTransaction(nil)
	if err := tx.Install(src, dir); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "big.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("extracted %d bytes, want %d (lzma2 decode truncated against the compressed on-disk size instead of the decoded length)", len(got), len(content))
	}
}

func TestInstallRejectsEscapingEntry(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	// Craft an entry with an escaping path directly, bypassing the
	// builder's own CheckRelativePath guard, the way a hand-crafted
	// malicious archive would.
	b := NewBuilder(priv)
	if err := b.AddFileReader(bytes.NewReader([]byte("x")), "ok", 0o644); err != nil {
		t.Fatal(err)
	}
	src, _ := buildArchiveSource(t, b)

	entries := src.Entries()
	// Entry.SetPath itself rejects a non-normal path, so a malicious
	// entry like this can only arise from a hand-crafted archive; write
	// the raw path bytes directly, bypassing that guard, the way a
	// forged archive would reach the extractor.
	var rawPath [pkgcore.PathFieldSize]byte
	copy(rawPath[:], "../escape")
	entries[0].Path = rawPath

	dir := t.TempDir()
	tx := NewTransaction(nil)
	if err := tx.Install(src, dir); err == nil {
		t.Error("Install with an escaping entry path: expected an error, got nil")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape")); !os.IsNotExist(err) {
		t.Error("escaping entry was written outside the target directory")
	}
}

func TestInstallAbortsOnHashMismatch(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv)
	if err := b.AddFileReader(bytes.NewReader([]byte("original")), "f", 0o644); err != nil {
		t.Fatal(err)
	}
	src, _ := buildArchiveSource(t, b)

	// Shrink the entry's declared size so only its first 3 bytes are
	// streamed; their digest cannot match the entry's BLAKE3, forcing
	// installEntry's hash check.
	entries := src.Entries()
	entries[0].Size = 3

	dir := t.TempDir()
	tx := NewTransaction(nil)
	if err := tx.Install(src, dir); err == nil {
		t.Fatal("Install with a corrupted entry: expected an error, got nil")
	}

	matches, err := filepath.Glob(filepath.Join(dir, ".pkgar.*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("abort left %v behind, want no .pkgar.* stages", matches)
	}
}

func TestInstallThenRemoveLeavesDirectoryClean(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv)
	if err := b.AddFileReader(bytes.NewReader([]byte("x")), "a/b.txt", 0o644); err != nil {
		t.Fatal(err)
	}
	src, _ := buildArchiveSource(t, b)

	dir := t.TempDir()
	installTx := NewTransaction(nil)
	if err := installTx.Install(src, dir); err != nil {
		t.Fatal(err)
	}
	if _, err := installTx.Commit(); err != nil {
		t.Fatal(err)
	}

	removeTx := NewTransaction(nil)
	if err := removeTx.Remove(src, dir); err != nil {
		t.Fatal(err)
	}
	if _, err := removeTx.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "a", "b.txt")); !os.IsNotExist(err) {
		t.Error("file still present after remove")
	}
}
