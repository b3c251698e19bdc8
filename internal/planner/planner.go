// Package planner enumerates a working tree into the deterministic,
// path-sorted list of files and directories that SaveOrchestrator feeds
// into the chunking pipeline, applying ignore.Engine exclusions and always
// skipping the repository control directory.
package planner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rinne-snap/rinne/internal/ignore"
)

// ControlDirName is the repository control directory, always excluded.
const ControlDirName = ".rinne"

// Entry is one planned filesystem object.
type Entry struct {
	RelPath string // slash-separated, no leading slash
	IsDir   bool
	// IsSymlink marks an entry whose content is its link target string
	// rather than the bytes of whatever it points at. Size and ModTime
	// describe that link target string, not the target file.
	IsSymlink  bool
	LinkTarget string
	Size       int64
	ModTime    int64 // unix nanoseconds
}

// Plan is the ordered, deterministic output of a walk: Files and Dirs are
// each sorted ascending by RelPath.
type Plan struct {
	Files []Entry
	Dirs  []string
}

// Walk enumerates root, excluding ControlDirName and anything rejected by
// ignoreEngine (which may be nil to mean "exclude nothing").
func Walk(root string, ignoreEngine *ignore.Engine) (*Plan, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat repo root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repo root %q is not a directory", root)
	}

	plan := &Plan{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ControlDirName {
				return filepath.SkipDir
			}
			if ignoreEngine.Excluded(rel, true) {
				return filepath.SkipDir
			}
			plan.Dirs = append(plan.Dirs, rel)
			return nil
		}

		if ignoreEngine.Excluded(rel, false) {
			return nil
		}

		// Symlinks are snapshotted by their link target string, not by
		// following the link: Size/ModTime here describe that string so
		// SaveOrchestrator chunks and hashes exactly the bytes recorded.
		// Other special files (sockets, devices, fifos) are skipped.
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			linkInfo, err := d.Info()
			if err != nil {
				return fmt.Errorf("lstat %s: %w", path, err)
			}
			plan.Files = append(plan.Files, Entry{
				RelPath:    rel,
				IsSymlink:  true,
				LinkTarget: target,
				Size:       int64(len(target)),
				ModTime:    linkInfo.ModTime().UnixNano(),
			})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		plan.Files = append(plan.Files, Entry{
			RelPath: rel,
			Size:    fi.Size(),
			ModTime: fi.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(plan.Files, func(i, j int) bool { return plan.Files[i].RelPath < plan.Files[j].RelPath })
	sort.Strings(plan.Dirs)
	return plan, nil
}

// SplitParent returns the slash-separated parent directory of rel, or ""
// for a top-level entry.
func SplitParent(rel string) string {
	i := strings.LastIndexByte(rel, '/')
	if i < 0 {
		return ""
	}
	return rel[:i]
}
