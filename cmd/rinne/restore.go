package main

import (
	"fmt"
	"os"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/manifest"
	"github.com/rinne-snap/rinne/internal/restore"
)

func runRestore(args []string) error {
	fs := newFlagSet("restore")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	spaceFlag := fs.String("space", "", "Space to restore from (default: current space)")
	idFlag := fs.String("id", "", "Snapshot id (default: resolved via --back)")
	back := fs.Int("back", 0, "Snapshots back from the latest (0 = latest)")
	to := fs.String("to", "", "Destination directory (required)")
	hydrate := fs.Bool("hydrate", false, "Materialise into the snapshot's own payload dir for reuse")
	ephemeral := fs.Bool("hydrate-ephemeral", false, "Materialise into a scratch dir and remove it afterward")
	purge := fs.Bool("purge", false, "Remove an ephemeral hydration dir even on error")
	verify := fs.Bool("verify", false, "Recompute original_sha256 after restoring")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)
	setupLogging(*debug)

	if *to == "" && !*hydrate && !*ephemeral {
		return fmt.Errorf("restore: one of --to, --hydrate, or --hydrate-ephemeral is required")
	}

	lay, err := repoLayout(*repoFlag)
	if err != nil {
		return err
	}
	sp, err := loadSpaceName(lay, *spaceFlag)
	if err != nil {
		return err
	}
	id, err := resolveSnapshotID(lay, sp, *idFlag, *back)
	if err != nil {
		return err
	}

	m, err := manifest.Load(lay.ManifestPath(id))
	if err != nil {
		return fmt.Errorf("restore: load manifest: %w", err)
	}
	store, err := cas.New(lay.StoreDir(), 0)
	if err != nil {
		return fmt.Errorf("restore: open cas: %w", err)
	}

	dest := *to
	ephemeralDir := ""
	switch {
	case *hydrate:
		dest = lay.PayloadDir(sp, id)
	case *ephemeral:
		if err := os.MkdirAll(lay.TempDir(), 0o755); err != nil {
			return fmt.Errorf("restore: create temp dir: %w", err)
		}
		scratch, err := os.MkdirTemp(lay.TempDir(), "restore-*")
		if err != nil {
			return fmt.Errorf("restore: create scratch dir: %w", err)
		}
		dest = scratch
		ephemeralDir = scratch
	}

	result, err := restore.Restore(store, m, dest, restore.Options{Verify: *verify})
	if ephemeralDir != "" && (err == nil || *purge) {
		defer os.RemoveAll(ephemeralDir)
	}
	if err != nil {
		return err
	}

	fmt.Printf("restored %s to %s (%d files, %d bytes)\n", id, dest, result.FilesWritten, result.BytesWritten)
	if *verify {
		fmt.Printf("recomputed original_sha256=%s\n", result.OriginalSHA256)
	}
	return nil
}
