package main

import (
	"fmt"
	"os"

	"github.com/rinne-snap/rinne/internal/config"
	"github.com/rinne-snap/rinne/internal/space"
)

func runInit(args []string) error {
	fs := newFlagSet("init")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)
	setupLogging(*debug)

	lay, err := repoLayout(*repoFlag)
	if err != nil {
		return err
	}

	for _, dir := range []string{
		lay.ConfigDir(),
		lay.SnapshotsDir(),
		lay.StoreDir(),
		lay.ManifestsDir(),
		lay.TempDir(),
		lay.LogsDir(),
		lay.SpaceDir(space.DefaultName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("init: create %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(lay.CurrentFile(), []byte(space.DefaultName+"\n"), 0o644); err != nil {
		return fmt.Errorf("init: write current-space pointer: %w", err)
	}

	cfg := config.Default()
	cfg.CurrentSpace = space.DefaultName
	if err := config.Save(lay.ConfigFile(), cfg); err != nil {
		return fmt.Errorf("init: write config: %w", err)
	}

	fmt.Printf("initialised rinne repository at %s (space %q)\n", lay.RinneDir, space.DefaultName)
	return nil
}
