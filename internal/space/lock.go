// Package space implements Space naming validation and a cooperative,
// expiry-stamped file lock used to keep mutating operations (save, tidy,
// gc, recompose, import) from running concurrently against one space.
package space

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// NameValid reports whether name is a valid Space name: letters, digits,
// hyphen, underscore; starts with a letter; <=64 chars.
func NameValid(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}
	first := name[0]
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// DefaultName is the space created by init when none is specified.
const DefaultName = "main"

// Lock is a held cooperative lock for one space; call Release when the
// mutating operation completes.
type Lock struct {
	path string
}

// Acquire creates the lock file at path, storing the lock's expiry (as a
// Unix-millis timestamp) as its content, using an exclusive-create as the
// atomicity primitive so two callers racing for the same path can never
// both succeed. If a lock file already exists at path but its stored
// expiry has passed, it is reaped before the single create attempt.
func Acquire(path, name string, ttl time.Duration) (*Lock, error) {
	if err := reapIfExpired(path); err != nil {
		return nil, err
	}

	expiry := time.Now().Add(ttl).UnixMilli()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("space %q is locked", name)
		}
		return nil, fmt.Errorf("acquire lock for space %q: %w", name, err)
	}
	_, writeErr := f.WriteString(strconv.FormatInt(expiry, 10))
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(path)
		if writeErr != nil {
			return nil, fmt.Errorf("write lock expiry for space %q: %w", name, writeErr)
		}
		return nil, fmt.Errorf("write lock expiry for space %q: %w", name, closeErr)
	}
	return &Lock{path: path}, nil
}

// Release deletes the lock file. Safe to call once; a missing file is not
// an error since locks are best-effort.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// reapIfExpired removes the lock file at path if it exists and its stored
// expiry timestamp has already passed. A missing or malformed lock file is
// left alone; a malformed one is treated conservatively as still held.
func reapIfExpired(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read lock file: %w", err)
	}
	expiry, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return nil
	}
	if expiry < time.Now().UnixMilli() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reap expired lock: %w", err)
		}
	}
	return nil
}

// DefaultTTL is the implicit lock lifetime, chosen from the 5-10 minute
// range a cooperative per-space lock needs to outlive any one save/tidy/gc
// call without starving a legitimately queued second caller for long.
const DefaultTTL = 8 * time.Minute
