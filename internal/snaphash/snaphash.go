// Package snaphash computes the canonical, chunk-boundary-independent
// snapshot hash: a per-file digest over path, size and plaintext content,
// folded across all files in path order.
package snaphash

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"sort"
	"strconv"
)

// FileDigest computes the per-file digest over
// relPath || "\n" || sizeText || "\n" || plaintext, reading the plaintext
// from r (which must yield exactly size bytes).
func FileDigest(relPath string, size int64, r io.Reader) ([32]byte, error) {
	h := sha256.New()
	h.Write([]byte(relPath))
	h.Write([]byte("\n"))
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte("\n"))
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// FileDigestBytes is FileDigest specialized for in-memory plaintext.
func FileDigestBytes(relPath string, content []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(relPath))
	h.Write([]byte("\n"))
	h.Write([]byte(strconv.FormatInt(int64(len(content)), 10)))
	h.Write([]byte("\n"))
	h.Write(content)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// FileDigester streams plaintext bytes into a per-file digest without
// requiring the caller to buffer the whole file, so callers that already
// write the bytes elsewhere (e.g. RestoreEngine writing to disk) can tee
// into it via io.MultiWriter.
type FileDigester struct {
	h hash.Hash
}

// NewFileDigester starts a per-file digest for relPath/size; content bytes
// must then be written to it in order via Write.
func NewFileDigester(relPath string, size int64) *FileDigester {
	h := sha256.New()
	h.Write([]byte(relPath))
	h.Write([]byte("\n"))
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte("\n"))
	return &FileDigester{h: h}
}

func (d *FileDigester) Write(p []byte) (int, error) { return d.h.Write(p) }

// Sum finalises and returns the digest. Call once, after all content has
// been written.
func (d *FileDigester) Sum() [32]byte {
	var out [32]byte
	copy(out[:], d.h.Sum(nil))
	return out
}

// Folder accumulates per-file digests in path order and folds them into
// the final snapshot hash. Callers must add digests in ascending path
// order; Folder does not sort for them since the orchestrator already
// walks files in sorted order.
type Folder struct {
	h hash.Hash
}

// NewFolder returns an empty Folder ready to accept per-file digests.
func NewFolder() *Folder {
	return &Folder{h: sha256.New()}
}

// Add folds one file's digest into the running snapshot hash. digests must
// be added in the same path-sorted order used elsewhere in the manifest.
func (f *Folder) Add(digest [32]byte) {
	f.h.Write(digest[:])
}

// Sum returns the final, uppercase-free (lowercase hex) snapshot hash.
func (f *Folder) Sum() string {
	return hex.EncodeToString(f.h.Sum(nil))
}

// Of computes the snapshot hash over a fixed set of (relPath, content)
// pairs in one call, sorting a copy by path first so the input order does
// not matter; a convenience for verify/tests.
func Of(files []struct {
	RelPath string
	Content []byte
}) string {
	sorted := make([]struct {
		RelPath string
		Content []byte
	}, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RelPath < sorted[j].RelPath })

	folder := NewFolder()
	for _, f := range sorted {
		folder.Add(FileDigestBytes(f.RelPath, f.Content))
	}
	return folder.Sum()
}
