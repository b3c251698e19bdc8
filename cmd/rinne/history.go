package main

import (
	"fmt"

	"github.com/rinne-snap/rinne/internal/manifest"
)

func runHistory(args []string) error {
	fs := newFlagSet("history")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	spaceFlag := fs.String("space", "", "Space to list (default: current space)")
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
	ids, err := listSnapshotIDs(lay, sp)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		fmt.Printf("space %q has no snapshots\n", sp)
		return nil
	}

	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		back := len(ids) - 1 - i
		meta, err := manifest.LoadMeta(lay.MetaPath(sp, id))
		if err != nil {
			fmt.Printf("@%-3d %s  (meta unreadable: %v)\n", back, id, err)
			continue
		}
		fmt.Printf("@%-3d %s  %8d files  %10d bytes  %s\n", back, id, meta.FileCount, meta.TotalBytes, meta.SnapshotHash)
	}
	return nil
}
