package main

import (
	"context"
	"fmt"

	"github.com/rinne-snap/rinne/internal/planner"
	"github.com/rinne-snap/rinne/internal/saveorch"
)

// runImport saves an external directory into a space as though it were the
// repository's working tree.
func runImport(args []string) error {
	fs := newFlagSet("import")
	repoFlag := fs.String("repo", "", "Repository root the space lives under (default: current directory)")
	spaceFlag := fs.String("space", "", "Space to import into (default: current space)")
	message := fs.String("m", "", "Note recorded alongside the snapshot")
	dryRun := fs.Bool("dry-run", false, "Plan the import and report counts without writing a snapshot")
	hashNone := fs.Bool("hash-none", false, "Skip computing the canonical snapshot hash")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)
	setupLogging(*debug)

	source := fs.Arg(0)
	if source == "" {
		return fmt.Errorf("import: a source directory is required")
	}

	lay, err := repoLayout(*repoFlag)
	if err != nil {
		return err
	}
	sp, err := loadSpaceName(lay, *spaceFlag)
	if err != nil {
		return err
	}

	if *dryRun {
		plan, err := planner.Walk(source, nil)
		if err != nil {
			return fmt.Errorf("import: plan %s: %w", source, err)
		}
		var totalBytes int64
		for _, f := range plan.Files {
			totalBytes += f.Size
		}
		fmt.Printf("would import %d files (%d bytes) from %s into space %q\n", len(plan.Files), totalBytes, source, sp)
		return nil
	}

	hashMode := saveorch.HashFull
	if *hashNone {
		hashMode = saveorch.HashNone
	}

	var result *saveorch.Result
	err = withSpaceLock(lay, sp, func() error {
		result, err = saveorch.Save(context.Background(), lay.RepoRoot, sp, saveorch.Options{
			SourceRoot: source,
			Note:       *message,
			HashMode:   hashMode,
		})
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("imported %s as %s (%d files, %d bytes)\n", source, result.SnapshotID, result.Meta.FileCount, result.Meta.TotalBytes)
	return nil
}
