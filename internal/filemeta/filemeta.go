// Package filemeta implements the per-space durable FileMetaCache backed
// by go.etcd.io/bbolt: one bucket of JSON-encoded rows, staged in memory
// and published in a single db.Update transaction per commit.
package filemeta

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("filemeta")

// Row is one cached observation of a file.
type Row struct {
	RelPath          string   `json:"relPath"`
	Size             int64    `json:"size"`
	MTimeTicks       int64    `json:"mtimeTicks"`
	FileContentHash  string   `json:"fileContentHash"`
	ChunkHashes      []string `json:"chunkHashes"`
	LastSeenTicks    int64    `json:"lastSeenTicks"`
	SnapshotFileHash string   `json:"snapshotFileHash,omitempty"`

	// seenOnly marks a staged row created by MarkSeen: Commit resolves it
	// against the already-committed row rather than overwriting it wholesale.
	seenOnly bool
}

// Cache is a per-space FileMetaCache. Reads hit bbolt directly (bbolt
// supports many concurrent readers); writes are staged in memory and only
// touch the database inside Commit, so the database only ever sees one
// writer at a time and a commit either publishes every staged row or none.
type Cache struct {
	db *bbolt.DB

	mu     sync.Mutex
	staged map[string]*Row
}

// Open opens (creating if needed) the FileMetaCache at path.
func Open(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("open filemeta cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init filemeta bucket: %w", err)
	}
	return &Cache{db: db, staged: make(map[string]*Row)}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// TryGet returns the committed row for rel, or (nil, nil) if absent.
func (c *Cache) TryGet(rel string) (*Row, error) {
	var row *Row
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(rel))
		if v == nil {
			return nil
		}
		var r Row
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("decode filemeta row %s: %w", rel, err)
		}
		row = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// StageUpdate stages a pending row with a known chunk count but empty
// hash slots, to be filled in by SetStagedChunk as chunks are hashed.
func (c *Cache) StageUpdate(rel string, size, mtimeTicks int64, fileHash string, chunkCount int, now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged[rel] = &Row{
		RelPath:         rel,
		Size:            size,
		MTimeTicks:      mtimeTicks,
		FileContentHash: fileHash,
		ChunkHashes:     make([]string, chunkCount),
		LastSeenTicks:   now,
	}
}

// SetStagedChunk fills slot index of rel's staged chunk-hash list.
func (c *Cache) SetStagedChunk(rel string, index int, chunkHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.staged[rel]
	if !ok {
		return fmt.Errorf("filemeta: no staged row for %s", rel)
	}
	if index < 0 || index >= len(row.ChunkHashes) {
		return fmt.Errorf("filemeta: chunk index %d out of range for %s", index, rel)
	}
	row.ChunkHashes[index] = chunkHash
	return nil
}

// SetSnapshotFileHash records the SnapshotHasher per-file digest for a
// staged row, letting a future save trust it instead of re-reading the
// file's content.
func (c *Cache) SetSnapshotFileHash(rel string, digestHex string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.staged[rel]
	if !ok {
		return fmt.Errorf("filemeta: no staged row for %s", rel)
	}
	row.SnapshotFileHash = digestHex
	return nil
}

// MarkSeen records that an unchanged (cache-clean) file was observed again
// at now, without altering its chunk list.
func (c *Cache) MarkSeen(rel string, now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if row, ok := c.staged[rel]; ok {
		row.LastSeenTicks = now
		return
	}
	c.staged[rel] = &Row{RelPath: rel, LastSeenTicks: now, seenOnly: true}
}

// Commit atomically publishes every staged row in a single bbolt
// transaction: either all of them land or none do.
func (c *Cache) Commit() error {
	c.mu.Lock()
	staged := c.staged
	c.staged = make(map[string]*Row)
	c.mu.Unlock()

	if len(staged) == 0 {
		return nil
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		for rel, row := range staged {
			if row.seenOnly {
				existing := b.Get([]byte(rel))
				if existing == nil {
					continue
				}
				var r Row
				if err := json.Unmarshal(existing, &r); err != nil {
					return fmt.Errorf("decode filemeta row %s: %w", rel, err)
				}
				r.LastSeenTicks = row.LastSeenTicks
				row = &r
			}
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("encode filemeta row %s: %w", rel, err)
			}
			if err := b.Put([]byte(rel), data); err != nil {
				return fmt.Errorf("put filemeta row %s: %w", rel, err)
			}
		}
		return nil
	})
}

// DiscardStaged drops all staged (uncommitted) rows, used on cancellation
// or when a save otherwise fails before reaching Commit.
func (c *Cache) DiscardStaged() {
	c.mu.Lock()
	c.staged = make(map[string]*Row)
	c.mu.Unlock()
}

// GC deletes rows whose path is absent from alivePaths and whose
// LastSeenTicks predates cutoffTicks.
func (c *Cache) GC(alivePaths map[string]bool, cutoffTicks int64) (deleted int, err error) {
	err = c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		var toDelete [][]byte
		cerr := b.ForEach(func(k, v []byte) error {
			if alivePaths[string(k)] {
				return nil
			}
			var r Row
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode filemeta row %s: %w", k, err)
			}
			if r.LastSeenTicks < cutoffTicks {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
			return nil
		})
		if cerr != nil {
			return cerr
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete filemeta row %s: %w", k, err)
			}
		}
		deleted = len(toDelete)
		return nil
	})
	return deleted, err
}
