// Package restore implements RestoreEngine: materialising a manifest
// (whole tree or a "pick" sub-path) into a destination directory.
package restore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/manifest"
	"github.com/rinne-snap/rinne/internal/rinneerr"
	"github.com/rinne-snap/rinne/internal/snaphash"
)

// Options configures a restore.
type Options struct {
	// Selector restricts the restore to one file or a directory prefix
	// within the manifest ("pick"). Empty means the whole tree.
	Selector string
	// Verify recomputes original_sha256 after materialisation, using the
	// same folding procedure as SnapshotHasher but over plaintext chunks
	// rather than source files.
	Verify bool
}

// Result reports what a restore materialised.
type Result struct {
	FilesWritten   int
	BytesWritten   int64
	OriginalSHA256 string
}

// Restore materialises m into dest according to opts.
func Restore(store *cas.Store, m *manifest.Manifest, dest string, opts Options) (*Result, error) {
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return nil, rinneerr.New(rinneerr.KindInput, "restore: resolve destination", err)
	}
	if err := os.MkdirAll(destAbs, 0o755); err != nil {
		return nil, rinneerr.IO("restore: create destination", err)
	}

	records := selectRecords(m.Files, opts.Selector)
	if opts.Selector != "" && len(records) == 0 {
		return nil, rinneerr.New(rinneerr.KindMissing, "restore: selector matched nothing",
			fmt.Errorf("no manifest entries under %q", opts.Selector))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RelPath < records[j].RelPath })

	// Resolve and validate every destination path before writing any bytes:
	// a manifest entry that would escape dest must abort the whole restore
	// even if it sorts after entries that are individually safe.
	outPaths := make([]string, len(records))
	for i, rec := range records {
		outPath, err := safeJoin(destAbs, rec.RelPath)
		if err != nil {
			return nil, rinneerr.New(rinneerr.KindInput, "restore: path safety", err)
		}
		outPaths[i] = outPath
	}

	result := &Result{}
	folder := snaphash.NewFolder()

	for i, rec := range records {
		outPath := outPaths[i]
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return nil, rinneerr.IO("restore: create parent dir", err)
		}

		written, digest, err := materialiseFile(store, outPath, rec)
		if err != nil {
			return nil, err
		}
		result.FilesWritten++
		result.BytesWritten += written
		if opts.Verify {
			folder.Add(digest)
		}
	}

	if opts.Verify {
		result.OriginalSHA256 = folder.Sum()
	}
	return result, nil
}

// materialiseFile writes one file's chunks to outPath in order (an empty
// ChunkHashes list produces an empty file) and returns the bytes written
// plus the SnapshotHasher-style per-file digest.
func materialiseFile(store *cas.Store, outPath string, rec manifest.FileRecord) (int64, [32]byte, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return 0, [32]byte{}, rinneerr.IO("restore: create output file", err)
	}
	defer out.Close()

	digester := snaphash.NewFileDigester(rec.RelPath, rec.Bytes)
	var written int64
	for _, h := range rec.ChunkHashes {
		rc, err := store.OpenRead(h)
		if err != nil {
			return 0, [32]byte{}, rinneerr.New(rinneerr.KindMissing, "restore: missing chunk", err)
		}
		n, copyErr := io.Copy(io.MultiWriter(out, digester), rc)
		rc.Close()
		written += n
		if copyErr != nil {
			return 0, [32]byte{}, rinneerr.IO("restore: write chunk", copyErr)
		}
	}
	return written, digester.Sum(), nil
}

// selectRecords returns the manifest file records under selector, or all
// of them if selector is empty.
func selectRecords(files []manifest.FileRecord, selector string) []manifest.FileRecord {
	if selector == "" {
		return append([]manifest.FileRecord(nil), files...)
	}
	selector = strings.TrimSuffix(selector, "/")
	var out []manifest.FileRecord
	for _, f := range files {
		if f.RelPath == selector || strings.HasPrefix(f.RelPath, selector+"/") {
			out = append(out, f)
		}
	}
	return out
}

// safeJoin joins rel onto root and refuses any path that would resolve
// outside root.
func safeJoin(root, rel string) (string, error) {
	if rel == "" || strings.Contains(rel, "\x00") {
		return "", fmt.Errorf("invalid relative path %q", rel)
	}
	cleanRel := filepath.Clean(filepath.FromSlash(rel))
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) || filepath.IsAbs(cleanRel) {
		return "", fmt.Errorf("path %q escapes destination root", rel)
	}
	joined := filepath.Join(root, cleanRel)
	rootWithSep := root + string(filepath.Separator)
	if joined != root && !strings.HasPrefix(joined, rootWithSep) {
		return "", fmt.Errorf("path %q escapes destination root", rel)
	}
	return joined, nil
}
