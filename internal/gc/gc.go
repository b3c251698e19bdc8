// Package gc implements GC + RefCount: a two-phase analyse-then-sweep pass
// over manifests and the CAS.
package gc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/rinneerr"
)

// Options configures a GC run.
type Options struct {
	// DryRun reports unreferenced chunks without deleting them.
	DryRun bool
}

// Result summarises one GC run.
type Result struct {
	ReferencedChunks int
	DeletedChunks    int
	DeletedBytes     int64
	Deleted          []string
}

// rawManifest is the minimal shape GC needs, read independently of the
// manifest package's stricter Validate so an unrelated schema drift in one
// manifest doesn't abort the whole sweep.
type rawManifest struct {
	Version string `json:"version"`
	Files   []struct {
		ChunkHashes []string `json:"chunkHashes"`
	} `json:"files"`
}

// Analyse walks every ".json" manifest under manifestsDir and returns a
// hash (normalised to uppercase) to reference count map.
func Analyse(manifestsDir string) (map[string]int, error) {
	counts := make(map[string]int)
	entries, err := os.ReadDir(manifestsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return counts, nil
		}
		return nil, rinneerr.IO("gc: list manifests", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(manifestsDir, e.Name()))
		if err != nil {
			return nil, rinneerr.IO("gc: read manifest", err)
		}
		var m rawManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, rinneerr.New(rinneerr.KindIntegrity, "gc: parse manifest", err)
		}
		if !strings.HasPrefix(m.Version, "cas:") {
			continue
		}
		for _, f := range m.Files {
			for _, h := range f.ChunkHashes {
				counts[strings.ToUpper(h)]++
			}
		}
	}
	return counts, nil
}

// Sweep deletes (or, in dry-run, only reports) every CAS chunk absent from
// counts. counts is keyed by uppercase hex, as Analyse returns it.
func Sweep(store *cas.Store, counts map[string]int, opts Options) (*Result, error) {
	result := &Result{ReferencedChunks: len(counts)}
	err := store.Walk(func(hex string) error {
		if counts[strings.ToUpper(hex)] > 0 {
			return nil
		}
		result.Deleted = append(result.Deleted, hex)
		size := int64(0)
		if info, statErr := os.Stat(store.PathFor(hex)); statErr == nil {
			size = info.Size()
		}
		if opts.DryRun {
			result.DeletedBytes += size
			return nil
		}
		if err := store.Delete(hex); err != nil {
			return fmt.Errorf("delete chunk %s: %w", hex, err)
		}
		result.DeletedChunks++
		result.DeletedBytes += size
		return nil
	})
	if err != nil {
		return nil, rinneerr.IO("gc: sweep", err)
	}
	return result, nil
}

// Run performs Analyse then Sweep in sequence, the shape tidy uses.
func Run(store *cas.Store, manifestsDir string, opts Options) (*Result, error) {
	counts, err := Analyse(manifestsDir)
	if err != nil {
		return nil, err
	}
	return Sweep(store, counts, opts)
}
