package main

import (
	"fmt"
	"time"

	"github.com/rinne-snap/rinne/internal/filemeta"
	"github.com/rinne-snap/rinne/internal/planner"
)

// runCacheMetaGC evicts FileMetaCache rows for paths no longer present in
// the working tree and not seen since --max-age.
func runCacheMetaGC(args []string) error {
	fs := newFlagSet("cache-meta-gc")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	spaceFlag := fs.String("space", "", "Space whose cache to collect (default: current space)")
	maxAge := fs.Duration("max-age", 30*24*time.Hour, "Evict rows unseen for longer than this")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)
	setupLogging(*debug)

	lay, err := repoLayout(*repoFlag)
	if err != nil {
		return err
	}
	sp, err := loadSpaceName(lay, *spaceFlag)
	if err != nil {
		return err
	}

	plan, err := planner.Walk(lay.RepoRoot, nil)
	if err != nil {
		return fmt.Errorf("cache-meta-gc: plan working tree: %w", err)
	}
	alive := make(map[string]bool, len(plan.Files))
	for _, f := range plan.Files {
		alive[f.RelPath] = true
	}

	cache, err := filemeta.Open(lay.FileMetaDBPath(sp))
	if err != nil {
		return fmt.Errorf("cache-meta-gc: open cache: %w", err)
	}
	defer cache.Close()

	cutoff := time.Now().Add(-*maxAge).UnixNano()
	deleted, err := cache.GC(alive, cutoff)
	if err != nil {
		return fmt.Errorf("cache-meta-gc: %w", err)
	}

	fmt.Printf("evicted %d stale filemeta row(s) from space %q\n", deleted, sp)
	return nil
}
