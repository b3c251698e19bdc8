package saveorch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rinne-snap/rinne/internal/layout"
	"github.com/rinne-snap/rinne/internal/manifest"
)

func writeRepoFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	abs := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSaveEmptyAndSmallFile(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "a.txt", nil)
	writeRepoFile(t, root, "b.bin", []byte{1, 2, 3})

	res, err := Save(context.Background(), root, "main", Options{})
	if err != nil {
		t.Fatal(err)
	}

	var a, b *manifest.FileRecord
	for i := range res.Manifest.Files {
		switch res.Manifest.Files[i].RelPath {
		case "a.txt":
			a = &res.Manifest.Files[i]
		case "b.bin":
			b = &res.Manifest.Files[i]
		}
	}
	if a == nil || b == nil {
		t.Fatalf("expected both files in manifest, got %+v", res.Manifest.Files)
	}
	if a.Bytes != 0 || len(a.ChunkHashes) != 0 {
		t.Errorf("expected empty file to have no chunks, got %+v", a)
	}
	if b.Bytes != 3 || len(b.ChunkHashes) != 1 {
		t.Errorf("expected 3-byte file to have 1 chunk, got %+v", b)
	}

	if res.Meta.HashAlgorithm != "sha256" {
		t.Errorf("expected default hash mode sha256, got %s", res.Meta.HashAlgorithm)
	}

	lay := layout.New(root)
	if _, err := os.Stat(lay.MetaPath("main", res.SnapshotID)); err != nil {
		t.Errorf("expected meta.json to exist: %v", err)
	}
	if _, err := os.Stat(lay.NotePath("main", res.SnapshotID)); err != nil {
		t.Errorf("expected note.md to exist: %v", err)
	}
}

func TestSaveManifestFilesSorted(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "z.txt", []byte("z"))
	writeRepoFile(t, root, "a.txt", []byte("a"))
	writeRepoFile(t, root, "m.txt", []byte("m"))

	res, err := Save(context.Background(), root, "main", Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(res.Manifest.Files); i++ {
		if res.Manifest.Files[i-1].RelPath >= res.Manifest.Files[i].RelPath {
			t.Fatalf("manifest files not sorted: %v", res.Manifest.Files)
		}
	}
}

func TestSaveDedupSharedChunk(t *testing.T) {
	root := t.TempDir()
	payload := bytes.Repeat([]byte{0xAB}, 10<<20)
	writeRepoFile(t, root, "x.bin", payload)
	writeRepoFile(t, root, "y.bin", payload)

	res, err := Save(context.Background(), root, "main", Options{
		MinChunk: 1 << 20,
		AvgChunk: 4 << 20,
		MaxChunk: 8 << 20,
	})
	if err != nil {
		t.Fatal(err)
	}

	var xHashes, yHashes []string
	for _, f := range res.Manifest.Files {
		switch f.RelPath {
		case "x.bin":
			xHashes = f.ChunkHashes
		case "y.bin":
			yHashes = f.ChunkHashes
		}
	}
	shared := false
	for _, h := range xHashes {
		for _, h2 := range yHashes {
			if h == h2 {
				shared = true
			}
		}
	}
	if !shared {
		t.Error("expected identical-content files to share at least one chunk hash")
	}
}

func TestSaveIncrementalNoChangeReusesCache(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "a.txt", []byte("hello world"))

	res1, err := Save(context.Background(), root, "main", Options{})
	if err != nil {
		t.Fatal(err)
	}
	res2, err := Save(context.Background(), root, "main", Options{})
	if err != nil {
		t.Fatal(err)
	}

	if res1.Meta.SnapshotHash != res2.Meta.SnapshotHash {
		t.Errorf("expected identical snapshot_hash across unchanged saves, got %s vs %s",
			res1.Meta.SnapshotHash, res2.Meta.SnapshotHash)
	}
}

func TestSaveHashNoneSkipsHash(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "a.txt", []byte("content"))

	res, err := Save(context.Background(), root, "main", Options{HashMode: HashNone})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.HashAlgorithm != "skip" || res.Meta.SnapshotHash != "SKIP" {
		t.Errorf("expected skip hash mode, got %+v", res.Meta)
	}
}

func TestSaveSourceRootReadsElsewhereWritesIntoRepoRoot(t *testing.T) {
	repoRoot := t.TempDir()
	source := t.TempDir()
	writeRepoFile(t, source, "imported.txt", []byte("from elsewhere"))

	res, err := Save(context.Background(), repoRoot, "main", Options{SourceRoot: source})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Manifest.Files) != 1 || res.Manifest.Files[0].RelPath != "imported.txt" {
		t.Fatalf("expected one file imported.txt, got %+v", res.Manifest.Files)
	}
	lay := layout.New(repoRoot)
	if _, err := os.Stat(lay.MetaPath("main", res.SnapshotID)); err != nil {
		t.Errorf("expected snapshot metadata under repoRoot, got %v", err)
	}
}

func TestSaveProgressReportsEveryFile(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "a.txt", []byte("a"))
	writeRepoFile(t, root, "b.txt", []byte("b"))

	var calls []int
	_, err := Save(context.Background(), root, "main", Options{
		Progress: func(done, total int) { calls = append(calls, done) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected one progress call per file, got %v", calls)
	}
}
