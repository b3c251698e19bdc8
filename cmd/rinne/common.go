package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rinne-snap/rinne/internal/config"
	"github.com/rinne-snap/rinne/internal/ignore"
	"github.com/rinne-snap/rinne/internal/layout"
	"github.com/rinne-snap/rinne/internal/manifest"
	"github.com/rinne-snap/rinne/internal/rinneerr"
	"github.com/rinne-snap/rinne/internal/snapshotid"
	"github.com/rinne-snap/rinne/internal/space"
)

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// repoLayout resolves the repository root rinne operates against: the
// current working directory, unless overridden by --repo.
func repoLayout(root string) (layout.Layout, error) {
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return layout.Layout{}, rinneerr.IO("resolve working directory", err)
		}
	}
	return layout.New(root), nil
}

// loadSpaceName resolves the effective space: an explicit --space flag wins,
// otherwise the repository's current space from config, otherwise
// space.DefaultName.
func loadSpaceName(lay layout.Layout, explicit string) (string, error) {
	if explicit != "" {
		if !space.NameValid(explicit) {
			return "", rinneerr.New(rinneerr.KindInput, "resolve space", fmt.Errorf("invalid space name %q", explicit))
		}
		return explicit, nil
	}
	cfg, err := config.Load(lay.ConfigFile())
	if err != nil {
		return "", rinneerr.IO("load config", err)
	}
	if cfg.CurrentSpace != "" {
		return cfg.CurrentSpace, nil
	}
	return space.DefaultName, nil
}

// withSpaceLock runs fn while holding the cooperative lock for sp, so that
// save/tidy/gc/recompose/import never run concurrently against one space.
func withSpaceLock(lay layout.Layout, sp string, fn func() error) error {
	dir := lay.SpaceDir(sp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rinneerr.IO("create space dir", err)
	}
	lock, err := space.Acquire(lay.LockPath(sp), sp, space.DefaultTTL)
	if err != nil {
		return rinneerr.New(rinneerr.KindConflict, "acquire space lock", err)
	}
	defer lock.Release()
	return fn()
}

// fail prints err to stderr as "rinne <cmd>: <err>" and exits with the
// error's taxonomy-derived code.
func fail(cmdName string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "rinne %s: %v\n", cmdName, err)
	os.Exit(rinneerr.CodeOf(err))
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rinne %s [flags]\n\n", name)
		fs.PrintDefaults()
	}
	return fs
}

// compressionLevelFor maps the --compact family of flags onto a zstd level
// for SaveOrchestrator's Options.CompressionLevel.
func compressionLevelFor(full, speed bool) int {
	switch {
	case full:
		return 9
	case speed:
		return 3
	default:
		return 6
	}
}

// loadIgnoreEngine merges .rinneignore at the repository root with any
// --exclude flags given on the command line.
func loadIgnoreEngine(repoRoot string, excludes []string) (*ignore.Engine, error) {
	rules := append([]string(nil), excludes...)
	raw, err := os.ReadFile(filepath.Join(repoRoot, ".rinneignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return ignore.New(rules...), nil
		}
		return nil, rinneerr.IO("read .rinneignore", err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return ignore.New(rules...), nil
}

// listSnapshotIDs lists the snapshot ids under a space in chronological
// order. SnapshotId is lexicographically monotone with creation order, so a
// plain string sort recovers it.
func listSnapshotIDs(lay layout.Layout, sp string) ([]string, error) {
	entries, err := os.ReadDir(lay.SpaceDir(sp))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rinneerr.IO("list snapshots", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// resolveSnapshotID picks the target snapshot for restore/pick/verify: an
// explicit id wins, otherwise --back N counts backward from the latest
// snapshot (0 is the latest itself).
func resolveSnapshotID(lay layout.Layout, sp, explicitID string, back int) (string, error) {
	if explicitID != "" {
		return explicitID, nil
	}
	ids, err := listSnapshotIDs(lay, sp)
	if err != nil {
		return "", err
	}
	idx := len(ids) - 1 - back
	if idx < 0 || idx >= len(ids) {
		return "", rinneerr.New(rinneerr.KindMissing, "resolve snapshot", fmt.Errorf("space %q has no snapshot %d back from latest", sp, back))
	}
	return ids[idx], nil
}

type snapshotWriteResult struct {
	id         string
	fileCount  int
	totalBytes int64
}

// writeRecomposedSnapshot allocates a fresh snapshot id and publishes a
// manifest/meta/note triple for a merge produced outside the normal
// SaveOrchestrator walk.
func writeRecomposedSnapshot(lay layout.Layout, sp string, merged *manifest.Manifest, hash, note string) (*snapshotWriteResult, error) {
	id, err := snapshotid.New(time.Now().UTC())
	if err != nil {
		return nil, rinneerr.IO("recompose: allocate snapshot id", err)
	}

	merged.OriginalSHA256 = hash
	if err := merged.Validate(); err != nil {
		return nil, rinneerr.New(rinneerr.KindIntegrity, "recompose: validate merged manifest", err)
	}
	if err := manifest.WriteAtomic(lay.ManifestPath(id), merged); err != nil {
		return nil, rinneerr.IO("recompose: write manifest", err)
	}

	meta := &manifest.Meta{
		Version:       1,
		HashAlgorithm: "sha256",
		SnapshotHash:  hash,
		FileCount:     int64(merged.FileCount),
		TotalBytes:    merged.TotalBytes,
	}
	if err := writeNoteFile(lay.NotePath(sp, id), note); err != nil {
		return nil, &rinneerr.NoteWriteError{Err: err}
	}
	if err := manifest.WriteMetaAtomic(lay.MetaPath(sp, id), meta); err != nil {
		return nil, &rinneerr.MetaWriteError{Err: err}
	}

	return &snapshotWriteResult{id: id, fileCount: merged.FileCount, totalBytes: merged.TotalBytes}, nil
}

func writeNoteFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

func parseTimestampFlag(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", value, err)
	}
	return t, nil
}
