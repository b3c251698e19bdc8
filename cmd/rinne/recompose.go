package main

import (
	"fmt"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/manifest"
	"github.com/rinne-snap/rinne/internal/recompose"
)

// runRecompose merges several existing snapshots' manifests (leftmost --src
// wins per path) into a new snapshot under the current space, without
// touching any working tree.
func runRecompose(args []string) error {
	fs := newFlagSet("recompose")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	spaceFlag := fs.String("space", "", "Space to write the recomposed snapshot into (default: current space)")
	message := fs.String("m", "", "Note recorded alongside the recomposed snapshot")
	var srcIDs stringList
	fs.Var(&srcIDs, "src", "Source snapshot id (repeatable, leftmost wins per path)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)
	setupLogging(*debug)

	if len(srcIDs.values) == 0 {
		return fmt.Errorf("recompose: at least one --src snapshot id is required")
	}

	lay, err := repoLayout(*repoFlag)
	if err != nil {
		return err
	}
	sp, err := loadSpaceName(lay, *spaceFlag)
	if err != nil {
		return err
	}

	var sources []*manifest.Manifest
	for _, id := range srcIDs.values {
		m, err := manifest.Load(lay.ManifestPath(id))
		if err != nil {
			return fmt.Errorf("recompose: load source manifest %s: %w", id, err)
		}
		sources = append(sources, m)
	}

	store, err := cas.New(lay.StoreDir(), 0)
	if err != nil {
		return fmt.Errorf("recompose: open cas: %w", err)
	}

	var result *snapshotWriteResult
	err = withSpaceLock(lay, sp, func() error {
		merged := recompose.Merge(sources)
		hash, err := recompose.Hash(store, merged)
		if err != nil {
			return err
		}
		result, err = writeRecomposedSnapshot(lay, sp, merged, hash, *message)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("recomposed %s from %d sources (%d files, %d bytes)\n", result.id, len(srcIDs.values), result.fileCount, result.totalBytes)
	return nil
}
