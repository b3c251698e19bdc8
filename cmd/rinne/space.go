package main

import (
	"fmt"
	"os"

	"github.com/rinne-snap/rinne/internal/config"
	"github.com/rinne-snap/rinne/internal/layout"
	"github.com/rinne-snap/rinne/internal/space"
)

// runSpace lists spaces, creates one, or switches the repository's current
// space.
func runSpace(args []string) error {
	fs := newFlagSet("space")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	create := fs.String("create", "", "Create a new space with this name")
	use := fs.String("use", "", "Switch the current space to this name")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)
	setupLogging(*debug)

	lay, err := repoLayout(*repoFlag)
	if err != nil {
		return err
	}

	switch {
	case *create != "":
		if !space.NameValid(*create) {
			return fmt.Errorf("space: invalid name %q", *create)
		}
		if err := os.MkdirAll(lay.SpaceDir(*create), 0o755); err != nil {
			return fmt.Errorf("space: create %s: %w", *create, err)
		}
		fmt.Printf("created space %q\n", *create)
		return nil
	case *use != "":
		if !space.NameValid(*use) {
			return fmt.Errorf("space: invalid name %q", *use)
		}
		cfg, err := config.Load(lay.ConfigFile())
		if err != nil {
			return fmt.Errorf("space: load config: %w", err)
		}
		cfg.CurrentSpace = *use
		if err := config.Save(lay.ConfigFile(), cfg); err != nil {
			return fmt.Errorf("space: save config: %w", err)
		}
		fmt.Printf("switched current space to %q\n", *use)
		return nil
	default:
		return listSpaces(lay)
	}
}

func listSpaces(lay layout.Layout) error {
	entries, err := os.ReadDir(lay.SpacesDir())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no spaces yet; run 'rinne init'")
			return nil
		}
		return fmt.Errorf("space: list: %w", err)
	}
	cfg, err := config.Load(lay.ConfigFile())
	if err != nil {
		return fmt.Errorf("space: load config: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		marker := "  "
		if e.Name() == cfg.CurrentSpace {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, e.Name())
	}
	return nil
}
