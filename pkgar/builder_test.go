package pkgar

import (
	"bytes"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/provide-io/pkgar/pkgcore"
)

func TestBuilderWriteArchiveRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
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

	w := &memWriteSeeker{}
	size, err := b.WriteArchive(w)
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(len(w.Bytes())) {
		t.Errorf("reported size %d != written bytes %d", size, len(w.Bytes()))
	}

	src := pkgcore.NewBufferSource(w.Bytes())
	header, err := src.ReadHeader(pub)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if header.Count != 2 {
		t.Fatalf("header.Count = %d, want 2", header.Count)
	}

	paths, err := List(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[0] != "a/b.txt" || paths[1] != "a/c" {
		t.Fatalf("List() = %v, want [a/b.txt a/c]", paths)
	}

	entries := src.Entries()
	if entries[0].Size != 6 {
		t.Errorf("a/b.txt entry size = %d, want 6", entries[0].Size)
	}
	if !entries[1].Mode.IsSymlink() {
		t.Errorf("a/c entry mode is not a symlink")
	}
}

func TestBuilderEmptyDirectory(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv)
	if err := b.AddDir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	w := &memWriteSeeker{}
	if _, err := b.WriteArchive(w); err != nil {
		t.Fatal(err)
	}

	src := pkgcore.NewBufferSource(w.Bytes())
	header, err := src.ReadHeader(pub)
	if err != nil {
		t.Fatal(err)
	}
	if header.Count != 0 {
		t.Errorf("header.Count = %d, want 0", header.Count)
	}
}

func TestBuilderZeroByteFile(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv)
	if err := b.AddFileReader(bytes.NewReader(nil), "empty", 0o644); err != nil {
		t.Fatal(err)
	}

	w := &memWriteSeeker{}
	if _, err := b.WriteArchive(w); err != nil {
		t.Fatal(err)
	}

	src := pkgcore.NewBufferSource(w.Bytes())
	pub := priv.Public().(ed25519.PublicKey)
	if _, err := src.ReadHeader(pub); err != nil {
		t.Fatal(err)
	}
	entries := src.Entries()
	if entries[0].Size != 0 {
		t.Errorf("empty file entry size = %d, want 0", entries[0].Size)
	}
}

func TestBuilderRejectsEscapingPath(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv)
	if err := b.AddFileReader(bytes.NewReader([]byte("x")), "../escape", 0o644); err == nil {
		t.Error("AddFileReader with a path escaping the archive root: expected an error, got nil")
	}
}

func TestBuilderAddDirIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	must(os.WriteFile(filepath.Join(dir, "a", "z.txt"), []byte("z"), 0o644))
	must(os.WriteFile(filepath.Join(dir, "a", "m.txt"), []byte("m"), 0o644))
	must(os.WriteFile(filepath.Join(dir, "top.txt"), []byte("t"), 0o644))

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv)
	if err := b.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	w := &memWriteSeeker{}
	if _, err := b.WriteArchive(w); err != nil {
		t.Fatal(err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	src := pkgcore.NewBufferSource(w.Bytes())
	if _, err := src.ReadHeader(pub); err != nil {
		t.Fatal(err)
	}
	paths, err := List(src)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a/m.txt", "a/z.txt", "top.txt"}
	if len(paths) != len(want) {
		t.Fatalf("List() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestBuilderWithModeOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv, WithModeOverride(0o640))
	if err := b.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	w := &memWriteSeeker{}
	if _, err := b.WriteArchive(w); err != nil {
		t.Fatal(err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	src := pkgcore.NewBufferSource(w.Bytes())
	if _, err := src.ReadHeader(pub); err != nil {
		t.Fatal(err)
	}
	entries := src.Entries()
	if entries[0].Mode.Perm() != 0o640 {
		t.Errorf("entry perm = %o, want 0640 (override should win over the file's own 0600)", entries[0].Mode.Perm())
	}
}

func TestBuilderWriteParts(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(priv)
	if err := b.AddFileReader(bytes.NewReader([]byte("split me")), "f", 0o644); err != nil {
		t.Fatal(err)
	}

	var head, data bytes.Buffer
	headSize, dataSize, err := b.WriteParts(&head, &data)
	if err != nil {
		t.Fatal(err)
	}
	if headSize != int64(pkgcore.HeaderSize+pkgcore.EntrySize) {
		t.Errorf("headSize = %d, want %d", headSize, pkgcore.HeaderSize+pkgcore.EntrySize)
	}
	if dataSize != int64(len("split me")) {
		t.Errorf("dataSize = %d, want %d", dataSize, len("split me"))
	}

	pub := priv.Public().(ed25519.PublicKey)
	combined := append(append([]byte{}, head.Bytes()...), data.Bytes()...)
	src := pkgcore.NewBufferSource(combined)
	if _, err := src.ReadHeader(pub); err != nil {
		t.Fatalf("reassembled split archive failed to verify: %v", err)
	}
}
