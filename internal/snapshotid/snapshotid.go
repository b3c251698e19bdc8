// Package snapshotid generates and parses SnapshotIds: a monotone,
// lexicographically-ordered identifier of the form
// YYYYMMDD'T'HHMMSS'Z'_<uuidv7>.
package snapshotid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const layout = "20060102T150405Z"

// New returns a fresh SnapshotId stamped with the given time (callers pass
// time.Now().UTC() in production; tests pass a fixed time for determinism).
func New(at time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate snapshot id: %w", err)
	}
	return at.UTC().Format(layout) + "_" + id.String(), nil
}

// Timestamp extracts the creation timestamp encoded in a SnapshotId.
func Timestamp(id string) (time.Time, error) {
	ts, _, ok := split(id)
	if !ok {
		return time.Time{}, fmt.Errorf("malformed snapshot id %q", id)
	}
	return time.Parse(layout, ts)
}

// Valid reports whether id has the expected shape.
func Valid(id string) bool {
	ts, rest, ok := split(id)
	if !ok {
		return false
	}
	if _, err := time.Parse(layout, ts); err != nil {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

func split(id string) (ts, rest string, ok bool) {
	i := strings.IndexByte(id, '_')
	if i < 0 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

// Less reports whether a sorts before b; since SnapshotIds are
// lexicographically ordered by construction this is a plain string
// comparison, exposed here so callers don't need to remember that.
func Less(a, b string) bool { return a < b }
