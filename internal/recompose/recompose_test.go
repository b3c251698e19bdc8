package recompose

import (
	"testing"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/manifest"
	"github.com/rinne-snap/rinne/internal/snaphash"
)

func TestMergeLeftmostWins(t *testing.T) {
	a := &manifest.Manifest{Files: []manifest.FileRecord{
		{RelPath: "shared.txt", Bytes: 3, ChunkHashes: []string{"aa"}},
		{RelPath: "only-a.txt", Bytes: 1, ChunkHashes: []string{"bb"}},
	}}
	b := &manifest.Manifest{Files: []manifest.FileRecord{
		{RelPath: "shared.txt", Bytes: 9, ChunkHashes: []string{"cc"}},
		{RelPath: "only-b.txt", Bytes: 2, ChunkHashes: []string{"dd"}},
	}}

	merged := Merge([]*manifest.Manifest{a, b})

	if len(merged.Files) != 3 {
		t.Fatalf("expected 3 merged files, got %d", len(merged.Files))
	}
	byPath := make(map[string]manifest.FileRecord)
	for _, f := range merged.Files {
		byPath[f.RelPath] = f
	}
	if byPath["shared.txt"].ChunkHashes[0] != "aa" {
		t.Fatalf("expected leftmost source to win for shared.txt, got %+v", byPath["shared.txt"])
	}
	if _, ok := byPath["only-b.txt"]; !ok {
		t.Fatal("expected only-b.txt to survive the merge")
	}
}

func TestHashMatchesDirectFold(t *testing.T) {
	store, err := cas.New(t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}
	h1, err := store.PutIfAbsent([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}

	m := &manifest.Manifest{Files: []manifest.FileRecord{
		{RelPath: "a.txt", Bytes: 5, ChunkHashes: []string{h1}},
	}}

	got, err := Hash(store, m)
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Fatal("expected non-empty hash")
	}
	direct := snaphash.NewFolder()
	direct.Add(snaphash.FileDigestBytes("a.txt", []byte("hello")))
	if want := direct.Sum(); got != want {
		t.Fatalf("expected Hash to match the direct fold: got %s want %s", got, want)
	}

	got2, err := Hash(store, m)
	if err != nil {
		t.Fatal(err)
	}
	if got != got2 {
		t.Fatal("expected Hash to be deterministic across calls")
	}
}
