// Package cas implements the content-addressable store: compressed blobs
// keyed by the SHA-256 of their plaintext bytes, fanned out two levels deep
// under store/<hh>/<hh>/<hex>.zst, published atomically from a temp file
// that is hard-linked (or, where links are unavailable, renamed) into place.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Store is a content-addressable blob store rooted at a directory.
type Store struct {
	root  string
	level int
}

// New opens (creating if needed) a CAS rooted at dir, compressing with the
// given zstd level, clamped to the supported range 3-9 so callers don't
// need to special-case defaults.
func New(dir string, level int) (*Store, error) {
	if level < 3 {
		level = 3
	}
	if level > 9 {
		level = 9
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cas root: %w", err)
	}
	return &Store{root: dir, level: level}, nil
}

// Hash returns the lowercase hex SHA-256 of b. Exposed so callers that
// already have the plaintext in memory (e.g. the restore-time verifier)
// don't need to round-trip it through PutIfAbsent.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// PathFor returns the deterministic on-disk path for hex, under
// store/<hh>/<hh>/<hex>.zst. hex must already be lowercase.
func (s *Store) PathFor(hex string) string {
	return filepath.Join(s.root, hex[0:2], hex[2:4], hex+".zst")
}

// Exists reports whether hex is present in the store.
func (s *Store) Exists(hex string) bool {
	_, err := os.Stat(s.PathFor(hex))
	return err == nil
}

// PutIfAbsent stores b (compressed) under the hex SHA-256 of its plaintext
// bytes and returns that hash. If the blob already exists it is left
// untouched and no write occurs. Safe for concurrent callers writing the
// same hash: losers of the rename race discard their temp file and accept
// the winner's.
func (s *Store) PutIfAbsent(b []byte) (string, error) {
	hexHash := Hash(b)
	dest := s.PathFor(hexHash)
	if _, err := os.Stat(dest); err == nil {
		return hexHash, nil
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cas fan-out dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create cas temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(s.level)))
	if err != nil {
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(b); err != nil {
		enc.Close()
		return "", fmt.Errorf("compress chunk: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("flush zstd encoder: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close cas temp file: %w", err)
	}

	// Link never replaces an existing name, so the first writer to publish
	// wins and later writers keep its blob; the deferred cleanup removes
	// our temp name either way.
	linkErr := os.Link(tmpPath, dest)
	if linkErr == nil || os.IsExist(linkErr) {
		return hexHash, nil
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		// Another writer may have won the race between our Stat and our
		// Rename; if the destination now exists, that's success for us.
		if _, statErr := os.Stat(dest); statErr == nil {
			return hexHash, nil
		}
		return "", fmt.Errorf("publish cas blob: %w", err)
	}
	cleanup = false
	return hexHash, nil
}

// OpenRead returns a decompressing reader for the blob named hex. The
// caller must Close the returned reader.
func (s *Store) OpenRead(hex string) (io.ReadCloser, error) {
	f, err := os.Open(s.PathFor(hex))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cas: chunk %s not found: %w", hex, err)
		}
		return nil, fmt.Errorf("open cas blob %s: %w", hex, err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd decoder for %s: %w", hex, err)
	}
	return &decodingReadCloser{dec: dec, f: f}, nil
}

type decodingReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (d *decodingReadCloser) Read(p []byte) (int, error) { return d.dec.Read(p) }

func (d *decodingReadCloser) Close() error {
	d.dec.Close()
	return d.f.Close()
}

// Delete removes the blob named hex. Used only by GC's sweep phase.
func (s *Store) Delete(hex string) error {
	if err := os.Remove(s.PathFor(hex)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cas blob %s: %w", hex, err)
	}
	return nil
}

// Walk calls fn once for every 64-hex-char blob name present in the store,
// used by GC's sweep phase to enumerate candidates for deletion.
func (s *Store) Walk(fn func(hex string) error) error {
	return filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		const suffix = ".zst"
		if len(name) != 64+len(suffix) || name[64:] != suffix {
			return nil
		}
		hex := name[:64]
		if !isHex64(hex) {
			return nil
		}
		return fn(hex)
	})
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
