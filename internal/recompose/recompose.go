// Package recompose builds a new manifest by merging the file lists of
// several existing manifests, left-most source wins per path, without
// re-reading or re-chunking any working tree.
package recompose

import (
	"io"
	"sort"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/manifest"
	"github.com/rinne-snap/rinne/internal/rinneerr"
	"github.com/rinne-snap/rinne/internal/snaphash"
)

// Merge combines sources into one manifest: for each relative path that
// appears in more than one source, the record from the earliest (lowest
// index) source wins. Chunk hashes are carried over unchanged, so every
// chunk a merged file references must already exist in the CAS the merged
// manifest will be read against.
func Merge(sources []*manifest.Manifest) *manifest.Manifest {
	byPath := make(map[string]manifest.FileRecord)
	dirSet := make(map[string]bool)

	for _, src := range sources {
		for _, f := range src.Files {
			if _, ok := byPath[f.RelPath]; !ok {
				byPath[f.RelPath] = f
			}
		}
		for _, d := range src.Dirs {
			dirSet[d] = true
		}
	}

	files := make([]manifest.FileRecord, 0, len(byPath))
	var totalBytes int64
	for _, f := range byPath {
		files = append(files, f)
		totalBytes += f.Bytes
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	return &manifest.Manifest{
		Version:    manifest.Version,
		FileCount:  len(files),
		TotalBytes: totalBytes,
		Files:      files,
		Dirs:       dirs,
	}
}

// Hash recomputes the SnapshotHasher digest for m by streaming each file's
// chunks straight out of the CAS (no intermediate materialisation), the
// same canonical fold SaveOrchestrator and RestoreEngine use.
func Hash(store *cas.Store, m *manifest.Manifest) (string, error) {
	folder := snaphash.NewFolder()
	for _, f := range m.Files {
		digester := snaphash.NewFileDigester(f.RelPath, f.Bytes)
		for _, h := range f.ChunkHashes {
			rc, err := store.OpenRead(h)
			if err != nil {
				return "", rinneerr.New(rinneerr.KindMissing, "recompose: missing chunk", err)
			}
			_, err = io.Copy(digester, rc)
			rc.Close()
			if err != nil {
				return "", rinneerr.IO("recompose: read chunk", err)
			}
		}
		folder.Add(digester.Sum())
	}
	return folder.Sum(), nil
}
