package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/rinne-snap/rinne/internal/saveorch"
)

func runSave(args []string) error {
	fs := newFlagSet("save")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	spaceFlag := fs.String("space", "", "Space to save into (default: current space)")
	message := fs.String("m", "", "Note recorded alongside the snapshot")
	compactFull := fs.Bool("compact-full", false, "Maximise compression (zstd level 9)")
	compactSpeed := fs.Bool("compact-speed", false, "Favour speed over compression (zstd level 3)")
	hashNone := fs.Bool("hash-none", false, "Skip computing the canonical snapshot hash")
	workers := fs.Int("workers", 0, "Worker count (default: NumCPU, capped at 16)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	var excludes stringList
	fs.Var(&excludes, "exclude", "Extra ignore rule (repeatable)")
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
	ignoreEngine, err := loadIgnoreEngine(lay.RepoRoot, excludes.values)
	if err != nil {
		return err
	}

	hashMode := saveorch.HashFull
	if *hashNone {
		hashMode = saveorch.HashNone
	}

	opts := saveorch.Options{
		Workers:          *workers,
		CompressionLevel: compressionLevelFor(*compactFull, *compactSpeed),
		HashMode:         hashMode,
		Note:             *message,
		Ignore:           ignoreEngine,
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		var mu sync.Mutex
		var bar *progressbar.ProgressBar
		opts.Progress = func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("saving"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Set(done)
		}
	}

	var result *saveorch.Result
	err = withSpaceLock(lay, sp, func() error {
		result, err = saveorch.Save(context.Background(), lay.RepoRoot, sp, opts)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("saved %s (%d files, %d bytes, hash=%s)\n", result.SnapshotID, result.Meta.FileCount, result.Meta.TotalBytes, result.Meta.SnapshotHash)
	return nil
}
