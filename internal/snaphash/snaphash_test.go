package snaphash

import "testing"

func TestOfInvariantUnderFileOrder(t *testing.T) {
	files := []struct {
		RelPath string
		Content []byte
	}{
		{"b.txt", []byte("second")},
		{"a.txt", []byte("first")},
	}
	reordered := []struct {
		RelPath string
		Content []byte
	}{
		{"a.txt", []byte("first")},
		{"b.txt", []byte("second")},
	}

	if Of(files) != Of(reordered) {
		t.Fatal("snapshot hash must not depend on input slice order")
	}
}

func TestOfChangesWithContent(t *testing.T) {
	a := []struct {
		RelPath string
		Content []byte
	}{{"a.txt", []byte("v1")}}
	b := []struct {
		RelPath string
		Content []byte
	}{{"a.txt", []byte("v2")}}

	if Of(a) == Of(b) {
		t.Fatal("expected different hashes for different content")
	}
}

func TestOfStableAcrossCalls(t *testing.T) {
	files := []struct {
		RelPath string
		Content []byte
	}{
		{"dir/x.bin", []byte{1, 2, 3}},
		{"dir/y.bin", []byte{4, 5, 6}},
		{"top.txt", []byte("hello")},
	}
	if Of(files) != Of(files) {
		t.Fatal("hash must be stable across repeated calls on the same input")
	}
}

func TestEmptyFileDigest(t *testing.T) {
	d1 := FileDigestBytes("empty.txt", nil)
	d2 := FileDigestBytes("empty.txt", []byte{})
	if d1 != d2 {
		t.Fatal("nil and empty slice content should hash identically")
	}
}
