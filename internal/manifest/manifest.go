// Package manifest defines the on-disk snapshot manifest schema and its
// atomic write/read: indent-JSON written to a temp file and renamed into
// place.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Version is the manifest schema version written by this implementation.
const Version = "cas:2"

// FileRecord describes one file captured in a snapshot.
type FileRecord struct {
	RelPath     string   `json:"relPath"`
	Bytes       int64    `json:"bytes"`
	ChunkHashes []string `json:"chunkHashes"`
}

// Manifest is the full on-disk description of a snapshot's logical
// contents: an ordered file list with per-file chunk-hash lists, plus the
// directories captured alongside them.
type Manifest struct {
	Version           string       `json:"version"`
	Root              string       `json:"root"`
	OriginalSHA256    string       `json:"originalSha256"`
	TotalBytes        int64        `json:"totalBytes"`
	AvgChunk          int64        `json:"avgChunk"`
	MinChunk          int64        `json:"minChunk"`
	MaxChunk          int64        `json:"maxChunk"`
	CompressionLevel  int          `json:"compressionLevel"`
	FileCount         int          `json:"fileCount"`
	Files             []FileRecord `json:"files"`
	Dirs              []string     `json:"dirs"`
}

// SortFiles orders Files ascending by path, byte-lexicographic.
func (m *Manifest) SortFiles() {
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].RelPath < m.Files[j].RelPath })
}

// Validate checks that every non-empty file has at least one chunk hash
// and every chunk hash is 64 lowercase hex characters.
func (m *Manifest) Validate() error {
	if !strings.HasPrefix(m.Version, "cas:") {
		return fmt.Errorf("manifest: unsupported version %q", m.Version)
	}
	for _, f := range m.Files {
		if f.Bytes > 0 && len(f.ChunkHashes) == 0 {
			return fmt.Errorf("manifest: file %q has no chunk hashes but size %d", f.RelPath, f.Bytes)
		}
		for _, h := range f.ChunkHashes {
			if !isLowerHex64(h) {
				return fmt.Errorf("manifest: file %q has malformed chunk hash %q", f.RelPath, h)
			}
		}
	}
	return nil
}

func isLowerHex64(s string) bool {
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

// WriteAtomic marshals m as indented JSON and publishes it to path via a
// temp-file-then-rename, matching the CAS/layer-manifest atomicity idiom
// used throughout this codebase.
func WriteAtomic(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close manifest temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish manifest: %w", err)
	}
	return nil
}

// Load reads the manifest at path and rejects one whose version lacks the
// "cas:" prefix; it does not run Validate. Unknown fields are
// ignored by encoding/json's default decoding, so older manifests stay
// readable as the schema grows.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if !strings.HasPrefix(m.Version, "cas:") {
		return nil, fmt.Errorf("manifest %s: unsupported version %q", path, m.Version)
	}
	return &m, nil
}

// Meta is the completion marker written alongside a manifest.
type Meta struct {
	Version       int    `json:"version"`
	HashAlgorithm string `json:"hashAlgorithm"`
	SnapshotHash  string `json:"snapshotHash"`
	FileCount     int64  `json:"fileCount"`
	TotalBytes    int64  `json:"totalBytes"`
}

// WriteMetaAtomic writes meta.json for a snapshot via the same
// temp-then-rename idiom as WriteAtomic.
func WriteMetaAtomic(path string, m *Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create meta dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".meta-*.tmp")
	if err != nil {
		return fmt.Errorf("create meta temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write meta: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close meta temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish meta: %w", err)
	}
	return nil
}

// LoadMeta reads meta.json for a snapshot.
func LoadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return &m, nil
}
