package restore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/manifest"
)

func newStore(t *testing.T) *cas.Store {
	t.Helper()
	s, err := cas.New(filepath.Join(t.TempDir(), "store"), 3)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRestoreWholeTreeByteIdentical(t *testing.T) {
	store := newStore(t)
	h1, err := store.PutIfAbsent([]byte("hello "))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := store.PutIfAbsent([]byte("world"))
	if err != nil {
		t.Fatal(err)
	}

	m := &manifest.Manifest{
		Version: manifest.Version,
		Files: []manifest.FileRecord{
			{RelPath: "empty.txt", Bytes: 0, ChunkHashes: nil},
			{RelPath: "sub/greeting.txt", Bytes: 11, ChunkHashes: []string{h1, h2}},
		},
	}

	dest := t.TempDir()
	res, err := Restore(store, m, dest, Options{Verify: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesWritten != 2 {
		t.Fatalf("expected 2 files written, got %d", res.FilesWritten)
	}

	got, err := os.ReadFile(filepath.Join(dest, "sub", "greeting.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("hello world")) {
		t.Errorf("expected byte-identical restore, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "empty.txt")); err != nil {
		t.Errorf("expected empty.txt to be created: %v", err)
	}
	if res.OriginalSHA256 == "" {
		t.Error("expected verify to populate OriginalSHA256")
	}
}

func TestRestoreRefusesPathEscape(t *testing.T) {
	store := newStore(t)
	m := &manifest.Manifest{
		Version: manifest.Version,
		Files: []manifest.FileRecord{
			{RelPath: "../escape.txt", Bytes: 0},
		},
	}
	dest := t.TempDir()
	if _, err := Restore(store, m, dest, Options{}); err == nil {
		t.Fatal("expected path escape to be refused")
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no bytes written under dest, found %v", entries)
	}
}

func TestRestoreRefusesPathEscapeAfterSafeEntries(t *testing.T) {
	store := newStore(t)
	h, err := store.PutIfAbsent([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	// "aaa.txt" sorts before the escaping entry; if validation happened
	// per-record interleaved with writes, this file would already be on
	// disk by the time the escape is detected.
	m := &manifest.Manifest{
		Version: manifest.Version,
		Files: []manifest.FileRecord{
			{RelPath: "aaa.txt", Bytes: 1, ChunkHashes: []string{h}},
			{RelPath: "../escape.txt", Bytes: 0},
		},
	}
	dest := t.TempDir()
	if _, err := Restore(store, m, dest, Options{}); err == nil {
		t.Fatal("expected path escape to be refused")
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no bytes written under dest, found %v", entries)
	}
}

func TestPickRestoresOnlySelectedPrefix(t *testing.T) {
	store := newStore(t)
	h, err := store.PutIfAbsent([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	m := &manifest.Manifest{
		Version: manifest.Version,
		Files: []manifest.FileRecord{
			{RelPath: "src/lib/x.rs", Bytes: 1, ChunkHashes: []string{h}},
			{RelPath: "src/other.rs", Bytes: 1, ChunkHashes: []string{h}},
		},
	}
	dest := t.TempDir()
	res, err := Restore(store, m, dest, Options{Selector: "src/lib"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesWritten != 1 {
		t.Fatalf("expected exactly 1 file from pick, got %d", res.FilesWritten)
	}
	if _, err := os.Stat(filepath.Join(dest, "src", "lib", "x.rs")); err != nil {
		t.Errorf("expected picked file present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "src", "other.rs")); !os.IsNotExist(err) {
		t.Error("expected unselected file to be absent")
	}
}

func TestPickUnknownSelectorFails(t *testing.T) {
	store := newStore(t)
	m := &manifest.Manifest{Version: manifest.Version}
	if _, err := Restore(store, m, t.TempDir(), Options{Selector: "nope"}); err == nil {
		t.Fatal("expected error for selector matching nothing")
	}
}
