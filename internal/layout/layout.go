// Package layout maps a repository root to the set of absolute paths the
// core reads or writes under <repo>/.rinne.
package layout

import "path/filepath"

// Layout is a pure value describing every path under <repo>/.rinne that the
// core cares about.
type Layout struct {
	RepoRoot string
	RinneDir string
}

// New returns the Layout rooted at repoRoot.
func New(repoRoot string) Layout {
	return Layout{RepoRoot: repoRoot, RinneDir: filepath.Join(repoRoot, ".rinne")}
}

func (l Layout) ConfigDir() string   { return filepath.Join(l.RinneDir, "config") }
func (l Layout) ConfigFile() string  { return filepath.Join(l.ConfigDir(), "config.yaml") }
func (l Layout) SnapshotsDir() string { return filepath.Join(l.RinneDir, "snapshots") }
func (l Layout) CurrentFile() string { return filepath.Join(l.SnapshotsDir(), "current") }
func (l Layout) StoreDir() string    { return filepath.Join(l.RinneDir, "store") }
func (l Layout) ManifestsDir() string {
	return filepath.Join(l.StoreDir(), "manifests")
}
func (l Layout) TempDir() string { return filepath.Join(l.RinneDir, "temp") }
func (l Layout) LogsDir() string { return filepath.Join(l.RinneDir, "logs") }

func (l Layout) SpacesDir() string { return filepath.Join(l.SnapshotsDir(), "space") }

func (l Layout) SpaceDir(space string) string {
	return filepath.Join(l.SpacesDir(), space)
}

func (l Layout) FileMetaDBPath(space string) string {
	return filepath.Join(l.SpaceDir(space), "filemeta.db")
}

func (l Layout) SnapshotDir(space, id string) string {
	return filepath.Join(l.SpaceDir(space), id)
}

func (l Layout) MetaPath(space, id string) string {
	return filepath.Join(l.SnapshotDir(space, id), "meta.json")
}

func (l Layout) NotePath(space, id string) string {
	return filepath.Join(l.SnapshotDir(space, id), "note.md")
}

func (l Layout) PayloadDir(space, id string) string {
	return filepath.Join(l.SnapshotDir(space, id), "snapshots")
}

func (l Layout) ManifestPath(id string) string {
	return filepath.Join(l.ManifestsDir(), id+".json")
}

func (l Layout) LockPath(space string) string {
	return filepath.Join(l.SpaceDir(space), ".lock")
}
