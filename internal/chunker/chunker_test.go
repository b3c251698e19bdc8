package chunker

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"
)

func concatChunks(t *testing.T, data []byte, min, avg, max uint64) [][]byte {
	t.Helper()
	c, err := New(bytes.NewReader(data), min, avg, max)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var out [][]byte
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		cp := make([]byte, len(chunk.Data))
		copy(cp, chunk.Data)
		out = append(out, cp)
	}
	return out
}

func TestChunkerReconstructsInput(t *testing.T) {
	data := make([]byte, 5*1024*1024)
	if _, err := rand.Read(data); err != nil {
		t.Fatal(err)
	}

	chunks := concatChunks(t, data, 64*1024, 256*1024, 1024*1024)

	var got bytes.Buffer
	for _, c := range chunks {
		if uint64(len(c)) > 1024*1024 {
			t.Fatalf("chunk exceeds max: %d", len(c))
		}
		got.Write(c)
	}
	if !bytes.Equal(got.Bytes(), data) {
		t.Fatal("reconstructed data does not match input")
	}
}

func TestChunkerDeterministic(t *testing.T) {
	data := make([]byte, 2*1024*1024)
	if _, err := rand.Read(data); err != nil {
		t.Fatal(err)
	}

	a := concatChunks(t, data, 16*1024, 64*1024, 256*1024)
	b := concatChunks(t, data, 16*1024, 64*1024, 256*1024)

	if len(a) != len(b) {
		t.Fatalf("chunk count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkerSharedPrefixDedup(t *testing.T) {
	prefix := make([]byte, 3*1024*1024)
	if _, err := rand.Read(prefix); err != nil {
		t.Fatal(err)
	}
	suffixA := bytes.Repeat([]byte{0xAA}, 1024)
	suffixB := bytes.Repeat([]byte{0xBB}, 2048)

	a := concatChunks(t, append(append([]byte{}, prefix...), suffixA...), 64*1024, 256*1024, 1024*1024)
	b := concatChunks(t, append(append([]byte{}, prefix...), suffixB...), 64*1024, 256*1024, 1024*1024)

	shared := 0
	for i := 0; i < len(a) && i < len(b); i++ {
		if bytes.Equal(a[i], b[i]) {
			shared++
		} else {
			break
		}
	}
	if shared == 0 {
		t.Fatal("expected at least one identical leading chunk across inputs sharing a prefix")
	}
}

func TestNewRejectsInvalidParams(t *testing.T) {
	cases := []struct {
		min, avg, max uint64
	}{
		{0, 10, 20},
		{10, 0, 20},
		{10, 20, 0},
		{20, 10, 30},
		{10, 5, 30},
		{10, 40, 30},
	}
	for _, c := range cases {
		if _, err := New(bytes.NewReader(nil), c.min, c.avg, c.max); err != ErrInvalidParams {
			t.Errorf("New(%d,%d,%d): got %v, want ErrInvalidParams", c.min, c.avg, c.max, err)
		}
	}
}

func TestEmptyInput(t *testing.T) {
	c, err := New(bytes.NewReader(nil), 64, 256, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF for empty input, got %v", err)
	}
}
