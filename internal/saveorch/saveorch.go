// Package saveorch implements the SaveOrchestrator: the bounded
// producer/consumer pipeline tying Planner, Chunker, CAS and
// FileMetaCache together into one snapshot.
package saveorch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rinne-snap/rinne/internal/cas"
	"github.com/rinne-snap/rinne/internal/chunker"
	"github.com/rinne-snap/rinne/internal/filemeta"
	"github.com/rinne-snap/rinne/internal/ignore"
	"github.com/rinne-snap/rinne/internal/layout"
	"github.com/rinne-snap/rinne/internal/manifest"
	"github.com/rinne-snap/rinne/internal/planner"
	"github.com/rinne-snap/rinne/internal/rinneerr"
	"github.com/rinne-snap/rinne/internal/snaphash"
	"github.com/rinne-snap/rinne/internal/snapshotid"
)

// HashMode selects whether the canonical snapshot hash is computed.
type HashMode int

const (
	// HashFull computes and stores the canonical snapshot hash (default).
	HashFull HashMode = iota
	// HashNone skips it; meta.json records hashAlgorithm="skip".
	HashNone
)

// Options configures one Save call.
type Options struct {
	Workers          int
	CompressionLevel int
	MinChunk         uint64
	AvgChunk         uint64
	MaxChunk         uint64
	HashMode         HashMode
	Note             string
	Ignore           *ignore.Engine
	Now              func() time.Time
	// SourceRoot overrides the directory walked and read for file content,
	// while repoRoot still anchors the .rinne layout (space dirs, CAS,
	// manifests). Used by the import command to save an external directory
	// into an existing repository's space.
	SourceRoot string
	// Progress, if set, is called once per completed file with the running
	// count and the total planned file count, for a CLI progress bar.
	Progress func(done, total int)
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > 16 {
		n = 16
	}
	return n
}

func (o Options) chunkParams() (min, avg, max uint64) {
	min, avg, max = o.MinChunk, o.AvgChunk, o.MaxChunk
	if avg == 0 {
		min, avg, max = 1<<20, 4<<20, 8<<20
	}
	return
}

// Result is the outcome of a successful Save.
type Result struct {
	SnapshotID string
	Manifest   *manifest.Manifest
	Meta       *manifest.Meta
}

// chunkResult is the outcome slot a file-producer waits on for one chunk
// it has handed off to the consumer pool.
type chunkResult struct {
	hash string
	err  error
}

// chunkJob is one chunk awaiting compression and CAS insertion. result and
// wg are owned by the submitting file-producer, not shared across files,
// so consumers never touch a slice that a producer might still be growing.
type chunkJob struct {
	relPath string
	index   int
	data    []byte
	result  *chunkResult
	wg      *sync.WaitGroup
}

// fileOutcome is what a file-producer hands back to the orchestrator once
// its chunks have all been enqueued (or it was served from cache).
type fileOutcome struct {
	record       manifest.FileRecord
	digest       [32]byte
	contentHash  string
	fromCache    bool
}

// Save executes the full SaveOrchestrator pipeline against repoRoot,
// writing the result under space.
func Save(ctx context.Context, repoRoot, space string, opts Options) (*Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	startedAt := now()

	lay := layout.New(repoRoot)
	spaceDir := lay.SpaceDir(space)
	if err := os.MkdirAll(spaceDir, 0o755); err != nil {
		return nil, rinneerr.IO("save: create space dir", err)
	}

	if err := sweepIncomplete(spaceDir, startedAt); err != nil {
		return nil, rinneerr.IO("save: sweep incomplete snapshots", err)
	}

	sourceRoot := repoRoot
	if opts.SourceRoot != "" {
		sourceRoot = opts.SourceRoot
	}

	plan, err := planner.Walk(sourceRoot, opts.Ignore)
	if err != nil {
		return nil, rinneerr.New(rinneerr.KindInput, "save: plan working tree", err)
	}

	id, err := snapshotid.New(startedAt)
	if err != nil {
		return nil, rinneerr.IO("save: allocate snapshot id", err)
	}

	store, err := cas.New(lay.StoreDir(), opts.CompressionLevel)
	if err != nil {
		return nil, rinneerr.IO("save: open cas", err)
	}

	metaCache, err := filemeta.Open(lay.FileMetaDBPath(space))
	if err != nil {
		return nil, rinneerr.IO("save: open filemeta cache", err)
	}
	defer metaCache.Close()

	snapDir := lay.SnapshotDir(space, id)
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return nil, rinneerr.IO("save: create staging snapshot dir", err)
	}
	cleanupStaging := true
	defer func() {
		if cleanupStaging {
			metaCache.DiscardStaged()
			os.RemoveAll(snapDir)
		}
	}()

	min, avg, max := opts.chunkParams()
	workers := opts.workers()

	files := plan.Files
	jobCh := make(chan chunkJob, maxInt(256, workers*16))
	outcomes := make([]fileOutcome, len(files))
	var doneCount int64

	g, gctx := errgroup.WithContext(ctx)

	// Chunk consumers: write chunk bytes into CAS and report the result
	// back to the owning file-producer via its own per-chunk slot. On
	// cancellation these still finish writing whatever a producer already
	// handed off; only new file scans stop, via the gctx check in the
	// producer loop below.
	var consumerGroup sync.WaitGroup
	for i := 0; i < workers; i++ {
		consumerGroup.Add(1)
		go func() {
			defer consumerGroup.Done()
			for job := range jobCh {
				hash, err := store.PutIfAbsent(job.data)
				job.result.hash = hash
				job.result.err = err
				job.wg.Done()
			}
		}()
	}

	// File producers: plan files across the same worker count, streaming
	// cache misses through the chunker and pushing chunks into jobCh.
	fileIdxCh := make(chan int, len(files))
	for i := range files {
		fileIdxCh <- i
	}
	close(fileIdxCh)

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for idx := range fileIdxCh {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				entry := files[idx]
				outcome, err := produceFile(sourceRoot, entry, metaCache, store, min, avg, max, jobCh)
				if err != nil {
					return fmt.Errorf("produce %s: %w", entry.RelPath, err)
				}
				outcomes[idx] = outcome
				if opts.Progress != nil {
					opts.Progress(int(atomic.AddInt64(&doneCount, 1)), len(files))
				}
			}
			return nil
		})
	}

	producersErr := g.Wait()
	close(jobCh)
	consumerGroup.Wait()

	if ctx.Err() != nil {
		return nil, rinneerr.Cancelled
	}
	if producersErr != nil {
		return nil, rinneerr.IO("save: pipeline failed", producersErr)
	}

	m := &manifest.Manifest{
		Version:          manifest.Version,
		Root:             sourceRoot,
		TotalBytes:       0,
		AvgChunk:         int64(avg),
		MinChunk:         int64(min),
		MaxChunk:         int64(max),
		CompressionLevel: opts.CompressionLevel,
		Dirs:             plan.Dirs,
	}

	folder := snaphash.NewFolder()
	for i, outcome := range outcomes {
		rec := outcome.record
		rec.RelPath = files[i].RelPath
		if rec.Bytes > 0 {
			for _, h := range rec.ChunkHashes {
				if h == "" {
					return nil, rinneerr.New(rinneerr.KindIntegrity, "save: validate manifest",
						fmt.Errorf("file %q has an unfilled chunk slot", rec.RelPath))
				}
			}
		}
		m.Files = append(m.Files, rec)
		m.TotalBytes += rec.Bytes
		folder.Add(outcome.digest)
	}
	m.SortFiles()
	m.FileCount = len(m.Files)

	if err := m.Validate(); err != nil {
		return nil, rinneerr.New(rinneerr.KindIntegrity, "save: validate manifest", err)
	}

	if err := metaCache.Commit(); err != nil {
		// A FileMetaCache commit failure does not roll back the snapshot;
		// a cache miss will simply recur on the next save.
		slog.Warn("filemeta commit failed", "space", space, "snapshot", id, "err", err)
	}

	if err := manifest.WriteAtomic(lay.ManifestPath(id), m); err != nil {
		return nil, rinneerr.New(rinneerr.KindIO, "save: write manifest", err)
	}

	meta := &manifest.Meta{
		Version:    1,
		FileCount:  int64(m.FileCount),
		TotalBytes: m.TotalBytes,
	}
	if opts.HashMode == HashNone {
		meta.HashAlgorithm = "skip"
		meta.SnapshotHash = "SKIP"
	} else {
		meta.HashAlgorithm = "sha256"
		meta.SnapshotHash = folder.Sum()
	}
	m.OriginalSHA256 = meta.SnapshotHash

	if err := manifest.WriteAtomic(lay.ManifestPath(id), m); err != nil {
		return nil, rinneerr.New(rinneerr.KindIO, "save: write manifest", err)
	}

	if err := writeNote(lay.NotePath(space, id), opts.Note); err != nil {
		return nil, &rinneerr.NoteWriteError{Err: err}
	}
	if err := manifest.WriteMetaAtomic(lay.MetaPath(space, id), meta); err != nil {
		return nil, &rinneerr.MetaWriteError{Err: err}
	}

	cleanupStaging = false
	return &Result{SnapshotID: id, Manifest: m, Meta: meta}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// produceFile handles one planned file: a FileMetaCache hit reuses the
// cached chunk list, a miss streams the file through the chunker.
func produceFile(repoRoot string, entry planner.Entry, metaCache *filemeta.Cache, store *cas.Store, min, avg, max uint64, jobCh chan<- chunkJob) (fileOutcome, error) {
	abs := filepath.Join(repoRoot, filepath.FromSlash(entry.RelPath))

	row, err := metaCache.TryGet(entry.RelPath)
	if err != nil {
		return fileOutcome{}, err
	}
	if cacheClean(row, entry, store) {
		metaCache.MarkSeen(entry.RelPath, nowTicks())
		digest, ok := trustedDigest(row, entry)
		if !ok {
			digest, _, err = digestFromDisk(abs, entry)
			if err != nil {
				return fileOutcome{}, err
			}
		}
		return fileOutcome{
			record: manifest.FileRecord{
				RelPath:     entry.RelPath,
				Bytes:       entry.Size,
				ChunkHashes: append([]string(nil), row.ChunkHashes...),
			},
			digest:      digest,
			contentHash: row.FileContentHash,
			fromCache:   true,
		}, nil
	}

	return produceFresh(abs, entry, metaCache, min, avg, max, jobCh)
}

func cacheClean(row *filemeta.Row, entry planner.Entry, store *cas.Store) bool {
	if row == nil {
		return false
	}
	if row.Size != entry.Size || row.MTimeTicks != entry.ModTime {
		return false
	}
	for _, h := range row.ChunkHashes {
		if !store.Exists(h) {
			return false
		}
	}
	return true
}

func trustedDigest(row *filemeta.Row, entry planner.Entry) ([32]byte, bool) {
	if row.SnapshotFileHash == "" {
		return [32]byte{}, false
	}
	raw, err := hex.DecodeString(row.SnapshotFileHash)
	if err != nil || len(raw) != 32 {
		return [32]byte{}, false
	}
	var out [32]byte
	copy(out[:], raw)
	return out, true
}

func digestFromDisk(abs string, entry planner.Entry) ([32]byte, string, error) {
	if entry.Size == 0 {
		digest := snaphash.FileDigestBytes(entry.RelPath, nil)
		return digest, cas.Hash(nil), nil
	}
	f, err := openContent(abs, entry)
	if err != nil {
		return [32]byte{}, "", fmt.Errorf("reopen %s for digest: %w", entry.RelPath, err)
	}
	defer f.Close()
	digest, err := snaphash.FileDigest(entry.RelPath, entry.Size, f)
	if err != nil {
		return [32]byte{}, "", fmt.Errorf("digest %s: %w", entry.RelPath, err)
	}
	return digest, "", nil
}

// openContent opens the bytes SaveOrchestrator must chunk and hash for
// entry: the file at abs for a regular file, or the link target string
// itself for a symlink, so the bytes actually chunked always match the
// Size recorded by the planner.
func openContent(abs string, entry planner.Entry) (io.ReadCloser, error) {
	if entry.IsSymlink {
		return io.NopCloser(strings.NewReader(entry.LinkTarget)), nil
	}
	return os.Open(abs)
}

// produceFresh streams entry's content through the chunker, pushing each
// chunk into jobCh, then stages a FileMetaCache row and fills its
// chunk-hash slots from the hashes the consumers returned.
func produceFresh(abs string, entry planner.Entry, metaCache *filemeta.Cache, min, avg, max uint64, jobCh chan<- chunkJob) (fileOutcome, error) {
	f, err := openContent(abs, entry)
	if err != nil {
		return fileOutcome{}, fmt.Errorf("open %s: %w", entry.RelPath, err)
	}
	defer f.Close()

	plainHash := sha256.New()
	prefixedHash := sha256.New()
	prefixedHash.Write([]byte(entry.RelPath))
	prefixedHash.Write([]byte("\n"))
	prefixedHash.Write([]byte(strconv.FormatInt(entry.Size, 10)))
	prefixedHash.Write([]byte("\n"))

	tee := io.TeeReader(f, io.MultiWriter(plainHash, prefixedHash))

	ck, err := chunker.New(tee, min, avg, max)
	if err != nil {
		return fileOutcome{}, fmt.Errorf("new chunker for %s: %w", entry.RelPath, err)
	}

	var wg sync.WaitGroup
	var results []*chunkResult
	for {
		chunk, err := ck.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fileOutcome{}, fmt.Errorf("chunk %s: %w", entry.RelPath, err)
		}
		data := append([]byte(nil), chunk.Data...)
		res := &chunkResult{}
		index := len(results)
		results = append(results, res)
		wg.Add(1)
		jobCh <- chunkJob{relPath: entry.RelPath, index: index, data: data, result: res, wg: &wg}
	}
	wg.Wait()

	hashes := make([]string, len(results))
	for i, res := range results {
		if res.err != nil {
			return fileOutcome{}, fmt.Errorf("cas put %s chunk %d: %w", entry.RelPath, i, res.err)
		}
		hashes[i] = res.hash
	}

	contentHash := hex.EncodeToString(plainHash.Sum(nil))
	var digest [32]byte
	copy(digest[:], prefixedHash.Sum(nil))

	now := nowTicks()
	metaCache.StageUpdate(entry.RelPath, entry.Size, entry.ModTime, contentHash, len(hashes), now)
	for i, h := range hashes {
		if err := metaCache.SetStagedChunk(entry.RelPath, i, h); err != nil {
			return fileOutcome{}, err
		}
	}
	metaCache.SetSnapshotFileHash(entry.RelPath, hex.EncodeToString(digest[:]))

	return fileOutcome{
		record: manifest.FileRecord{
			RelPath:     entry.RelPath,
			Bytes:       entry.Size,
			ChunkHashes: hashes,
		},
		digest:      digest,
		contentHash: contentHash,
	}, nil
}

func nowTicks() int64 { return time.Now().UnixNano() }

// sweepIncomplete deletes snapshot directories missing meta.json or
// note.md that predate this invocation: a crash or kill mid-save leaves
// one of these behind, and the next save for the space reclaims it.
func sweepIncomplete(spaceDir string, startedAt time.Time) error {
	entries, err := os.ReadDir(spaceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(spaceDir, e.Name())
		info, err := e.Info()
		if err != nil || info.ModTime().After(startedAt) {
			continue
		}
		_, metaErr := os.Stat(filepath.Join(dir, "meta.json"))
		_, noteErr := os.Stat(filepath.Join(dir, "note.md"))
		if os.IsNotExist(metaErr) || os.IsNotExist(noteErr) {
			os.RemoveAll(dir)
		}
	}
	return nil
}

func writeNote(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}
