// Package index resolves Solidity imports and answers symbol queries for a
// Foundry project.
//
// Project metadata (remapping rules, forge's file cache, build-info source
// tables) is loaded into an immutable Snapshot that is swapped atomically
// and rebuilt in full whenever its on-disk inputs change. Symbols are found
// by lexical pattern matching over source text with comments and string
// literals masked out. Results are best-effort lexical matches: they are
// not guaranteed to be semantically correct, and callers must present them
// that way.
package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"forgelsp/internal/project"
	"forgelsp/internal/source"
)

// RemappingSource supplies the output of `forge remappings`.
type RemappingSource interface {
	Remappings(ctx context.Context, dir string) ([]string, error)
}

// Overlay exposes unsaved editor buffers.
type Overlay interface {
	// Content returns the buffer text for path, if the file is open.
	Content(path string) (string, bool)
	// Paths lists the open files.
	Paths() []string
}

const defaultScanCacheSize = 4096

// Options configures an Index.
type Options struct {
	Manifest      *project.Manifest
	Remappings    RemappingSource
	Overlay       Overlay
	DiskCache     *DiskCache
	ScanCacheSize int
	Jobs          int
	Logger        *slog.Logger
}

// Snapshot is the immutable project metadata used to answer queries.
type Snapshot struct {
	Root      string
	Manifest  *project.Manifest
	Rules     Rules
	FileCache map[string]FileEntry
	BuildInfo map[string]string
	Files     []string // known project and library sources, sorted
	LoadedAt  time.Time

	fingerprint string
}

type scanStamp struct {
	modTime int64
	size    int64
	hash    [32]byte
}

type cachedScan struct {
	stamp scanStamp
	scan  *fileScan
}

// Index is one project's symbol and import index.
type Index struct {
	manifest *project.Manifest
	remaps   RemappingSource
	log      *slog.Logger
	disk     *DiskCache
	jobs     int

	overlayMu sync.RWMutex
	overlay   Overlay

	snap  atomic.Pointer[Snapshot]
	stale atomic.Bool
	group singleflight.Group

	scanCache *lru.Cache[string, cachedScan]
}

// New constructs an Index. Metadata is loaded lazily on first query.
func New(opts Options) (*Index, error) {
	m := opts.Manifest
	if m == nil {
		return nil, fs.ErrInvalid
	}
	size := opts.ScanCacheSize
	if size <= 0 {
		size = defaultScanCacheSize
	}
	scans, err := lru.New[string, cachedScan](size)
	if err != nil {
		return nil, err
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Index{
		manifest:  m,
		remaps:    opts.Remappings,
		overlay:   opts.Overlay,
		log:       log.With(slog.String("root", m.Root)),
		disk:      opts.DiskCache,
		jobs:      jobs,
		scanCache: scans,
	}, nil
}

// Root returns the project root.
func (ix *Index) Root() string { return ix.manifest.Root }

// SetOverlay replaces the unsaved-content provider.
func (ix *Index) SetOverlay(o Overlay) {
	ix.overlayMu.Lock()
	ix.overlay = o
	ix.overlayMu.Unlock()
}

// MarkStale forces the next query to rebuild the snapshot.
func (ix *Index) MarkStale() {
	ix.stale.Store(true)
}

// Refresh rebuilds the snapshot now.
func (ix *Index) Refresh(ctx context.Context) *Snapshot {
	ix.MarkStale()
	return ix.Snapshot(ctx)
}

// Snapshot returns the current metadata, reloading it first when it is
// missing, marked stale, or its on-disk inputs changed. Concurrent callers
// share one reload.
func (ix *Index) Snapshot(ctx context.Context) *Snapshot {
	cur := ix.snap.Load()
	if cur != nil && !ix.stale.Load() && cur.fingerprint == artifactFingerprint(ix.manifest) {
		return cur
	}
	v, _, _ := ix.group.Do("reload", func() (any, error) {
		ix.stale.Store(false)
		s := ix.load(ctx)
		ix.snap.Store(s)
		return s, nil
	})
	return v.(*Snapshot)
}

func (ix *Index) load(ctx context.Context) *Snapshot {
	started := time.Now()
	m := ix.manifest
	s := &Snapshot{
		Root:        m.Root,
		Manifest:    m,
		fingerprint: artifactFingerprint(m),
	}

	fileLines, err := readRemappingsFile(m.RemappingsFile())
	if err != nil {
		ix.log.Warn("read remappings.txt", slog.String("error", err.Error()))
	}
	rules := ParseRules(fileLines).Merge(ParseRules(m.Remappings))
	if ix.remaps != nil {
		lines, err := ix.remaps.Remappings(ctx, m.Root)
		if err != nil {
			ix.log.Debug("forge remappings unavailable", slog.String("error", err.Error()))
		}
		rules = rules.Merge(ParseRules(lines))
	}
	s.Rules = rules

	if s.FileCache, err = loadFilesCache(m.Root, m.FilesCache()); err != nil {
		ix.log.Warn("load files cache", slog.String("error", err.Error()))
	}
	var errs []error
	s.BuildInfo, errs = loadBuildInfo(m.Root, m.BuildInfoDir())
	for _, e := range errs {
		ix.log.Warn("load build info", slog.String("error", e.Error()))
	}

	s.Files = ix.collectFiles(s)
	s.LoadedAt = time.Now()
	ix.log.Debug("index loaded",
		slog.Int("rules", len(s.Rules)),
		slog.Int("cached_files", len(s.FileCache)),
		slog.Int("build_info_sources", len(s.BuildInfo)),
		slog.Int("files", len(s.Files)),
		slog.Duration("duration", time.Since(started)))
	return s
}

// collectFiles gathers project sources from disk plus every file forge's
// metadata knows about, then follows imports transitively so library files
// that are actually used are included.
func (ix *Index) collectFiles(s *Snapshot) []string {
	seen := make(map[string]bool)
	var queue []string
	push := func(p string) {
		if p == "" || seen[p] || !strings.HasSuffix(p, ".sol") {
			return
		}
		seen[p] = true
		queue = append(queue, p)
	}
	for _, dir := range s.Manifest.SourceDirs() {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				push(path)
			}
			return nil
		})
	}
	for p, entry := range s.FileCache {
		push(p)
		for _, imp := range entry.Imports {
			push(imp)
		}
	}
	for _, p := range s.BuildInfo {
		push(p)
	}

	var files []string
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, err := os.Stat(p); err != nil {
			if _, ok := ix.overlayContent(p); !ok {
				continue
			}
		}
		files = append(files, p)
		scan := ix.scan(p)
		if scan == nil {
			continue
		}
		for _, imp := range scan.Imports {
			if resolved, err := s.resolve(imp.Path, p); err == nil {
				push(resolved)
			}
		}
	}
	slices.Sort(files)
	return files
}

func (ix *Index) currentOverlay() Overlay {
	ix.overlayMu.RLock()
	defer ix.overlayMu.RUnlock()
	return ix.overlay
}

func (ix *Index) overlayContent(path string) (string, bool) {
	o := ix.currentOverlay()
	if o == nil {
		return "", false
	}
	return o.Content(path)
}

func (ix *Index) overlayPaths() []string {
	o := ix.currentOverlay()
	if o == nil {
		return nil
	}
	return o.Paths()
}

// scan returns the cached scan of path, rescanning when the file (or its
// open buffer) changed. Returns nil when the file cannot be read.
func (ix *Index) scan(path string) *fileScan {
	if text, ok := ix.overlayContent(path); ok {
		file := source.NewVirtualFile(path, text)
		stamp := scanStamp{modTime: -1, hash: file.Hash}
		if c, ok := ix.scanCache.Get(path); ok && c.stamp == stamp {
			return c.scan
		}
		scan := scanFile(file)
		ix.scanCache.Add(path, cachedScan{stamp: stamp, scan: scan})
		return scan
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	if c, ok := ix.scanCache.Get(path); ok && c.stamp.modTime == info.ModTime().UnixNano() && c.stamp.size == info.Size() {
		return c.scan
	}
	file, err := source.Load(path)
	if err != nil {
		return nil
	}
	stamp := scanStamp{modTime: info.ModTime().UnixNano(), size: info.Size(), hash: file.Hash}
	scan, ok := ix.disk.get(file.Hash, file.Path)
	if !ok {
		scan = scanFile(file)
		if err := ix.disk.put(scan); err != nil {
			ix.log.Debug("scan cache write", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	ix.scanCache.Add(path, cachedScan{stamp: stamp, scan: scan})
	return scan
}

// scanAll scans files in parallel, preserving order. Unreadable files are
// nil entries.
func (ix *Index) scanAll(ctx context.Context, files []string) ([]*fileScan, error) {
	out := make([]*fileScan, len(files))
	if len(files) == 0 {
		return out, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(ix.jobs, len(files)))
	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			out[i] = ix.scan(path)
			return nil
		})
	}
	return out, g.Wait()
}

// fileSet returns the snapshot's files plus open buffers inside the root
// that are not yet on disk or not yet known.
func (ix *Index) fileSet(s *Snapshot, extra ...string) []string {
	files := slices.Clone(s.Files)
	for _, p := range extra {
		if p == "" || !project.Within(s.Root, p) {
			continue
		}
		if _, found := slices.BinarySearch(s.Files, p); !found {
			files = append(files, p)
		}
	}
	return files
}
