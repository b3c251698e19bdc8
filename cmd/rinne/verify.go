package main

import (
	"fmt"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/verify"
)

func runVerify(args []string) error {
	fs := newFlagSet("verify")
	repoFlag := fs.String("repo", "", "Repository root (default: current directory)")
	spaceFlag := fs.String("space", "", "Space to verify (default: current space)")
	idFlag := fs.String("id", "", "Snapshot id (default: all snapshots in the space)")
	modeFlag := fs.String("mode", "error", "Missing-payload handling: error, skip, hydrate, temp-hydrate")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)
	setupLogging(*debug)

	mode, err := parseVerifyMode(*modeFlag)
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
		return fmt.Errorf("verify: open cas: %w", err)
	}

	ids := []string{*idFlag}
	if *idFlag == "" {
		ids, err = listSnapshotIDs(lay, sp)
		if err != nil {
			return err
		}
	}

	summary := verify.Summary{}
	for _, id := range ids {
		result, err := verify.One(lay, store, sp, id, mode)
		if err != nil {
			return fmt.Errorf("verify: %s: %w", id, err)
		}
		summary.Results = append(summary.Results, result)
		fmt.Printf("%-12s %s %s\n", statusLabel(result.Status), result.SnapshotID, result.Message)
	}

	if !summary.OK() {
		return fmt.Errorf("verify: one or more snapshots failed")
	}
	return nil
}

func parseVerifyMode(s string) (verify.Mode, error) {
	switch s {
	case "error":
		return verify.ModeError, nil
	case "skip":
		return verify.ModeSkip, nil
	case "hydrate":
		return verify.ModeHydrate, nil
	case "temp-hydrate":
		return verify.ModeTempHydrate, nil
	default:
		return 0, fmt.Errorf("verify: unknown mode %q", s)
	}
}

func statusLabel(s verify.Status) string {
	switch s {
	case verify.StatusOK:
		return "OK"
	case verify.StatusSkipped:
		return "SKIPPED"
	case verify.StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
