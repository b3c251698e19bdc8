// Package tidy deletes snapshots by selector and optionally follows with
// GC.
package tidy

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/gc"
	"github.com/rinne-snap/rinne/internal/layout"
	"github.com/rinne-snap/rinne/internal/rinneerr"
	"github.com/rinne-snap/rinne/internal/snapshotid"
)

// SelectorKind names one of the four ways a Tidy call can choose which
// snapshots to delete. Exactly one selector is ever active per Tidy call;
// the Selector value's Kind determines which of the other fields are read.
type SelectorKind int

const (
	// KeepLatestN deletes every snapshot except the N most recent.
	KeepLatestN SelectorKind = iota
	// LatestN deletes the N most recent snapshots.
	LatestN
	// BeforeDate deletes every snapshot created before a timestamp.
	BeforeDate
	// GlobMatch deletes every snapshot whose id matches a glob pattern.
	GlobMatch
)

// Selector picks which snapshots Tidy deletes.
type Selector struct {
	Kind    SelectorKind
	N       int
	Before  time.Time
	Pattern string
}

// Result reports what one Tidy call did.
type Result struct {
	Deleted []string
	GC      *gc.Result
}

// Tidy deletes the snapshots under space matched by sel, then invokes GC
// if runGC is set.
func Tidy(lay layout.Layout, space string, sel Selector, runGC bool, store *cas.Store) (*Result, error) {
	spaceDir := lay.SpaceDir(space)
	ids, err := listSnapshots(spaceDir)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for idx, id := range ids {
		match, err := matches(id, idx, len(ids), sel)
		if err != nil {
			return nil, rinneerr.New(rinneerr.KindInput, "tidy: evaluate selector", err)
		}
		if !match {
			continue
		}
		if err := os.RemoveAll(lay.SnapshotDir(space, id)); err != nil {
			return nil, rinneerr.IO("tidy: delete snapshot dir", err)
		}
		if err := os.Remove(lay.ManifestPath(id)); err != nil && !os.IsNotExist(err) {
			return nil, rinneerr.IO("tidy: delete manifest", err)
		}
		result.Deleted = append(result.Deleted, id)
	}

	if runGC {
		gcResult, err := gc.Run(store, lay.ManifestsDir(), gc.Options{})
		if err != nil {
			return nil, err
		}
		result.GC = gcResult
	}
	return result, nil
}

func listSnapshots(spaceDir string) ([]string, error) {
	entries, err := os.ReadDir(spaceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rinneerr.IO("tidy: list snapshots", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	// SnapshotId is lexicographically monotone with creation order, so a
	// plain string sort recovers chronological order.
	sort.Strings(ids)
	return ids, nil
}

func matches(id string, idx, total int, sel Selector) (bool, error) {
	switch sel.Kind {
	case KeepLatestN:
		return idx < total-sel.N, nil
	case LatestN:
		return idx >= total-sel.N, nil
	case BeforeDate:
		ts, err := snapshotid.Timestamp(id)
		if err != nil {
			return false, err
		}
		return ts.Before(sel.Before), nil
	case GlobMatch:
		ok, err := doublestar.Match(sel.Pattern, id)
		if err != nil {
			return false, err
		}
		return ok, nil
	default:
		return false, fmt.Errorf("tidy: unknown selector kind %d", sel.Kind)
	}
}
