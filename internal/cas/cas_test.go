package cas

import (
	"bytes"
	"io"
	"os"
	"sync"
	"testing"
)

func TestPutIfAbsentRoundTrip(t *testing.T) {
	s, err := New(t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}

	data := []byte("hello, rinne")
	hex, err := s.PutIfAbsent(data)
	if err != nil {
		t.Fatal(err)
	}
	if hex != Hash(data) {
		t.Fatalf("hash mismatch: got %s want %s", hex, Hash(data))
	}
	if !s.Exists(hex) {
		t.Fatal("expected blob to exist after PutIfAbsent")
	}

	r, err := s.OpenRead(hex)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %q want %q", got, data)
	}
}

func TestPutIfAbsentIdempotent(t *testing.T) {
	s, err := New(t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("repeat me")
	h1, err := s.PutIfAbsent(data)
	if err != nil {
		t.Fatal(err)
	}
	info1, err := os.Stat(s.PathFor(h1))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.PutIfAbsent(data)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hash, got %s vs %s", h1, h2)
	}
	info2, err := os.Stat(s.PathFor(h2))
	if err != nil {
		t.Fatal(err)
	}
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Fatal("second PutIfAbsent should not have rewritten the blob")
	}
}

func TestPutIfAbsentConcurrentSameHash(t *testing.T) {
	s, err := New(t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}
	data := bytes.Repeat([]byte("x"), 4096)

	const n = 16
	hashes := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			hashes[i], errs[i] = s.PutIfAbsent(data)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
		if hashes[i] != hashes[0] {
			t.Fatalf("hash mismatch across goroutines: %s vs %s", hashes[i], hashes[0])
		}
	}
	if !s.Exists(hashes[0]) {
		t.Fatal("expected blob to exist after concurrent PutIfAbsent")
	}
}

func TestWalkFindsStoredBlobs(t *testing.T) {
	s, err := New(t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{}
	for _, s1 := range []string{"a", "b", "c"} {
		h, err := s.PutIfAbsent([]byte(s1))
		if err != nil {
			t.Fatal(err)
		}
		want[h] = true
	}

	got := map[string]bool{}
	if err := s.Walk(func(hex string) error {
		got[hex] = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d blobs, want %d", len(got), len(want))
	}
	for h := range want {
		if !got[h] {
			t.Fatalf("missing blob %s from Walk", h)
		}
	}
}

func TestDeleteRemovesBlob(t *testing.T) {
	s, err := New(t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}
	h, err := s.PutIfAbsent([]byte("ephemeral"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(h); err != nil {
		t.Fatal(err)
	}
	if s.Exists(h) {
		t.Fatal("expected blob to be gone after Delete")
	}
	// Deleting again must be a no-op, not an error.
	if err := s.Delete(h); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}
