package main

import (
	"fmt"
	"os"
)

// runNote prints a snapshot's note.md, or rewrites it in place when --set
// is given.
func runNote(args []string) error {
	fs := newFlagSet("note")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	spaceFlag := fs.String("space", "", "Space the snapshot lives in (default: current space)")
	idFlag := fs.String("id", "", "Snapshot id (default: resolved via --back)")
	back := fs.Int("back", 0, "Snapshots back from the latest (0 = latest)")
	set := fs.String("set", "", "Replace the note with this text instead of printing it")
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
	id, err := resolveSnapshotID(lay, sp, *idFlag, *back)
	if err != nil {
		return err
	}

	path := lay.NotePath(sp, id)
	if wasSetExplicit(args) {
		if err := os.WriteFile(path, []byte(*set), 0o644); err != nil {
			return fmt.Errorf("note: write %s: %w", path, err)
		}
		fmt.Printf("updated note for %s\n", id)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("note: read %s: %w", path, err)
	}
	os.Stdout.Write(data)
	return nil
}

// wasSetExplicit reports whether --set was passed at all, distinguishing
// "rewrite the note to empty" from "just print it" (both of which otherwise
// read as an empty *set string).
func wasSetExplicit(args []string) bool {
	for _, a := range args {
		if a == "--set" || a == "-set" {
			return true
		}
		if len(a) > 6 && a[:6] == "--set=" {
			return true
		}
		if len(a) > 5 && a[:5] == "-set=" {
			return true
		}
	}
	return false
}
