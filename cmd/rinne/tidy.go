package main

import (
	"fmt"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/tidy"
)

func runTidy(args []string) error {
	fs := newFlagSet("tidy")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	spaceFlag := fs.String("space", "", "Space to tidy (default: current space)")
	keepLatest := fs.Int("keep-latest", 0, "Keep the N most recent snapshots, delete the rest")
	latest := fs.Int("latest", 0, "Delete the N most recent snapshots")
	before := fs.String("before", "", "Delete snapshots created before this date (YYYY-MM-DD)")
	glob := fs.String("glob", "", "Delete snapshots whose id matches this glob pattern")
	runGC := fs.Bool("gc", false, "Run GC immediately after deleting")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)
	setupLogging(*debug)

	sel, err := resolveTidySelector(*keepLatest, *latest, *before, *glob)
	if err != nil {
		return err
	}

	lay, err := repoLayout(*repoFlag)
	if err != nil {
		return err
	}
	sp, err := loadSpaceName(lay, *spaceFlag)
	if err != nil {
		return err
	}
	store, err := cas.New(lay.StoreDir(), 0)
	if err != nil {
		return fmt.Errorf("tidy: open cas: %w", err)
	}

	var result *tidy.Result
	err = withSpaceLock(lay, sp, func() error {
		result, err = tidy.Tidy(lay, sp, sel, *runGC, store)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("deleted %d snapshot(s) from space %q\n", len(result.Deleted), sp)
	for _, id := range result.Deleted {
		fmt.Printf("  %s\n", id)
	}
	if result.GC != nil {
		fmt.Printf("gc: %d referenced, %d deleted (%d bytes)\n", result.GC.ReferencedChunks, result.GC.DeletedChunks, result.GC.DeletedBytes)
	}
	return nil
}

// resolveTidySelector enforces that exactly one selector is active per
// Tidy call.
func resolveTidySelector(keepLatest, latest int, before, glob string) (tidy.Selector, error) {
	set := 0
	var sel tidy.Selector
	if keepLatest > 0 {
		set++
		sel = tidy.Selector{Kind: tidy.KeepLatestN, N: keepLatest}
	}
	if latest > 0 {
		set++
		sel = tidy.Selector{Kind: tidy.LatestN, N: latest}
	}
	if before != "" {
		set++
		t, err := parseTimestampFlag(before)
		if err != nil {
			return tidy.Selector{}, err
		}
		sel = tidy.Selector{Kind: tidy.BeforeDate, Before: t}
	}
	if glob != "" {
		set++
		sel = tidy.Selector{Kind: tidy.GlobMatch, Pattern: glob}
	}
	if set != 1 {
		return tidy.Selector{}, fmt.Errorf("tidy: exactly one of --keep-latest, --latest, --before, --glob is required (got %d)", set)
	}
	return sel, nil
}
