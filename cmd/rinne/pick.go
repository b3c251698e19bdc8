package main

import (
	"fmt"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/manifest"
	"github.com/rinne-snap/rinne/internal/restore"
)

func runPick(args []string) error {
	fs := newFlagSet("pick")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	spaceFlag := fs.String("space", "", "Space to pick from (default: current space)")
	idFlag := fs.String("id", "", "Snapshot id (default: resolved via --back)")
	back := fs.Int("back", 0, "Snapshots back from the latest (0 = latest)")
	out := fs.String("to", "", "Destination directory (required)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)
	setupLogging(*debug)

	selector := fs.Arg(0)
	if selector == "" {
		return fmt.Errorf("pick: a selector (file or sub-path) is required")
	}
	if *out == "" {
		return fmt.Errorf("pick: --to is required")
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
		return fmt.Errorf("pick: load manifest: %w", err)
	}
	store, err := cas.New(lay.StoreDir(), 0)
	if err != nil {
		return fmt.Errorf("pick: open cas: %w", err)
	}

	result, err := restore.Restore(store, m, *out, restore.Options{Selector: selector})
	if err != nil {
		return err
	}

	fmt.Printf("picked %s from %s into %s (%d files, %d bytes)\n", selector, id, *out, result.FilesWritten, result.BytesWritten)
	return nil
}
