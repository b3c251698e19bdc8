// Package verify cross-checks a snapshot's stored meta against either its
// materialised payload or a re-hydrated manifest.
package verify

import (
	"fmt"
	"os"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/layout"
	"github.com/rinne-snap/rinne/internal/manifest"
	"github.com/rinne-snap/rinne/internal/planner"
	"github.com/rinne-snap/rinne/internal/restore"
	"github.com/rinne-snap/rinne/internal/rinneerr"
	"github.com/rinne-snap/rinne/internal/snaphash"
)

// Mode selects what Verify does when a snapshot has no materialised
// payload on disk.
type Mode int

const (
	// ModeError reports missing payload as a failure.
	ModeError Mode = iota
	// ModeSkip reports missing payload without failing the overall run.
	ModeSkip
	// ModeHydrate restores the payload permanently, then verifies it.
	ModeHydrate
	// ModeTempHydrate restores into a scratch directory, verifies, then
	// discards it.
	ModeTempHydrate
)

// Status is the outcome of verifying one snapshot.
type Status int

const (
	StatusOK Status = iota
	StatusSkipped
	StatusFailed
)

// TargetResult is one structured result row for a single verify target.
type TargetResult struct {
	SnapshotID string
	Status     Status
	Message    string
}

// Summary aggregates a batch of TargetResults.
type Summary struct {
	Results []TargetResult
}

// OK reports whether every target in the summary is OK or (intentionally)
// skipped.
func (s Summary) OK() bool {
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			return false
		}
	}
	return true
}

// One verifies a single snapshot's meta against its real content.
func One(lay layout.Layout, store *cas.Store, space, id string, mode Mode) (TargetResult, error) {
	meta, err := manifest.LoadMeta(lay.MetaPath(space, id))
	if err != nil {
		return TargetResult{}, rinneerr.New(rinneerr.KindMissing, "verify: load meta", err)
	}

	payloadDir := lay.PayloadDir(space, id)
	if payloadPresent(payloadDir) {
		return verifyAgainstTree(id, meta, payloadDir)
	}

	switch mode {
	case ModeSkip:
		return TargetResult{SnapshotID: id, Status: StatusSkipped, Message: "payload absent, skipped"}, nil
	case ModeError:
		return TargetResult{SnapshotID: id, Status: StatusFailed, Message: "payload absent"}, nil
	case ModeHydrate:
		m, err := manifest.Load(lay.ManifestPath(id))
		if err != nil {
			return TargetResult{}, rinneerr.New(rinneerr.KindMissing, "verify: load manifest", err)
		}
		if _, err := restore.Restore(store, m, payloadDir, restore.Options{}); err != nil {
			return TargetResult{}, err
		}
		return verifyAgainstTree(id, meta, payloadDir)
	case ModeTempHydrate:
		m, err := manifest.Load(lay.ManifestPath(id))
		if err != nil {
			return TargetResult{}, rinneerr.New(rinneerr.KindMissing, "verify: load manifest", err)
		}
		if err := os.MkdirAll(lay.TempDir(), 0o755); err != nil {
			return TargetResult{}, rinneerr.IO("verify: create temp dir", err)
		}
		scratch, err := os.MkdirTemp(lay.TempDir(), "verify-*")
		if err != nil {
			return TargetResult{}, rinneerr.IO("verify: create scratch dir", err)
		}
		defer os.RemoveAll(scratch)
		if _, err := restore.Restore(store, m, scratch, restore.Options{}); err != nil {
			return TargetResult{}, err
		}
		return verifyAgainstTree(id, meta, scratch)
	default:
		return TargetResult{}, fmt.Errorf("verify: unknown mode %d", mode)
	}
}

func payloadPresent(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// verifyAgainstTree recomputes SnapshotHasher over the materialised tree
// at dir and compares it to meta.
func verifyAgainstTree(id string, meta *manifest.Meta, dir string) (TargetResult, error) {
	if meta.HashAlgorithm == "skip" {
		return TargetResult{SnapshotID: id, Status: StatusOK, Message: "hash_algorithm=skip, acknowledged"}, nil
	}

	plan, err := planner.Walk(dir, nil)
	if err != nil {
		return TargetResult{}, rinneerr.IO("verify: walk payload", err)
	}

	folder := snaphash.NewFolder()
	var totalBytes int64
	for _, entry := range plan.Files {
		totalBytes += entry.Size
		if entry.Size == 0 {
			folder.Add(snaphash.FileDigestBytes(entry.RelPath, nil))
			continue
		}
		f, err := os.Open(joinRel(dir, entry.RelPath))
		if err != nil {
			return TargetResult{}, rinneerr.IO("verify: open payload file", err)
		}
		digest, err := snaphash.FileDigest(entry.RelPath, entry.Size, f)
		f.Close()
		if err != nil {
			return TargetResult{}, rinneerr.IO("verify: digest payload file", err)
		}
		folder.Add(digest)
	}

	gotHash := folder.Sum()
	if gotHash != meta.SnapshotHash {
		return TargetResult{SnapshotID: id, Status: StatusFailed,
			Message: fmt.Sprintf("snapshot_hash mismatch: meta=%s recomputed=%s", meta.SnapshotHash, gotHash)}, nil
	}
	if int64(len(plan.Files)) != meta.FileCount {
		return TargetResult{SnapshotID: id, Status: StatusFailed,
			Message: fmt.Sprintf("file_count mismatch: meta=%d recomputed=%d", meta.FileCount, len(plan.Files))}, nil
	}
	if totalBytes != meta.TotalBytes {
		return TargetResult{SnapshotID: id, Status: StatusFailed,
			Message: fmt.Sprintf("total_bytes mismatch: meta=%d recomputed=%d", meta.TotalBytes, totalBytes)}, nil
	}
	return TargetResult{SnapshotID: id, Status: StatusOK}, nil
}

func joinRel(dir, rel string) string {
	return dir + string(os.PathSeparator) + rel
}
