// Package watch notices on-disk changes that invalidate a project's index:
// foundry.toml, remappings.txt, forge's cache and build-info output, and
// Solidity sources.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"forgelsp/internal/project"
)

// DefaultDebounce batches bursts such as a full `forge build`.
const DefaultDebounce = 200 * time.Millisecond

// Kind classifies a changed path.
type Kind uint8

const (
	// KindSource is a .sol file.
	KindSource Kind = iota
	// KindManifest is foundry.toml.
	KindManifest
	// KindRemappings is remappings.txt.
	KindRemappings
	// KindArtifacts is forge's files cache or a build-info document.
	KindArtifacts
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindManifest:
		return "manifest"
	case KindRemappings:
		return "remappings"
	case KindArtifacts:
		return "artifacts"
	}
	return "unknown"
}

// Change is one relevant path event.
type Change struct {
	Path string
	Kind Kind
	Op   fsnotify.Op
}

// Handler receives a debounced, deduplicated batch.
type Handler func([]Change)

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher watches one Foundry project.
type Watcher struct {
	m        *project.Manifest
	fsw      *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	log      *slog.Logger

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher. Call Start to begin receiving events.
func New(m *project.Manifest, handler Handler, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		m:        m,
		fsw:      fsw,
		handler:  handler,
		debounce: debounce,
		log:      log.With(slog.String("root", m.Root)),
		changes:  make(chan Change, 1024),
		done:     make(chan struct{}),
	}, nil
}

// Start registers the watch set and spawns the event and debounce loops.
// Directories that do not exist yet are picked up when they are created.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.m.Root); err != nil {
		return err
	}
	for _, dir := range []string{w.m.CachePath, w.m.Out, w.m.BuildInfoDir()} {
		w.addDir(dir)
	}
	for _, dir := range w.m.SourceDirs() {
		w.addRecursive(dir)
	}
	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop ends watching. Pending changes are flushed to the handler first.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if err := w.fsw.Close(); err != nil {
			w.log.Debug("close watcher", slog.String("error", err.Error()))
		}
		w.wg.Wait()
	})
}

func (w *Watcher) addDir(dir string) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		w.log.Debug("watch dir", slog.String("dir", dir), slog.String("error", err.Error()))
	}
}

func (w *Watcher) addRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		w.addDir(path)
		return nil
	})
}

func (w *Watcher) inSources(path string) bool {
	for _, dir := range w.m.SourceDirs() {
		if project.Within(dir, path) {
			return true
		}
	}
	return false
}

// classify maps a path to its Kind; false means the path is irrelevant.
func (w *Watcher) classify(path string) (Kind, bool) {
	switch {
	case path == w.m.Path || (w.m.Path == "" && path == filepath.Join(w.m.Root, project.ManifestName)):
		return KindManifest, true
	case path == w.m.RemappingsFile():
		return KindRemappings, true
	case path == w.m.FilesCache():
		return KindArtifacts, true
	case filepath.Dir(path) == w.m.BuildInfoDir() && strings.HasSuffix(path, ".json"):
		return KindArtifacts, true
	case strings.HasSuffix(path, ".sol") && w.inSources(path):
		return KindSource, true
	}
	return 0, false
}

// watchNewDir extends the watch set when a directory of interest appears.
func (w *Watcher) watchNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	switch {
	case w.inSources(path):
		w.addRecursive(path)
	case path == w.m.CachePath || path == w.m.Out || path == w.m.BuildInfoDir():
		w.addDir(path)
		if path == w.m.Out {
			w.addDir(w.m.BuildInfoDir())
		}
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				w.watchNewDir(ev.Name)
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			kind, ok := w.classify(ev.Name)
			if !ok {
				continue
			}
			select {
			case w.changes <- Change{Path: ev.Name, Kind: kind, Op: ev.Op}:
			default:
				w.log.Warn("watch buffer full; dropping change", slog.String("path", ev.Name))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Lost events: report a manifest change so everything reloads.
				select {
				case w.changes <- Change{Path: w.m.Path, Kind: KindManifest}:
				default:
				}
			}
			w.log.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		out := dedupe(batch)
		batch = batch[:0]
		if w.handler != nil {
			w.handler(out)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case c := <-w.changes:
			batch = append(batch, c)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}

// dedupe keeps the last change per path, ordered by path.
func dedupe(changes []Change) []Change {
	last := make(map[string]Change, len(changes))
	for _, c := range changes {
		prev, ok := last[c.Path]
		if ok {
			c.Op |= prev.Op
		}
		last[c.Path] = c
	}
	out := make([]Change, 0, len(last))
	for _, c := range last {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Change) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Invalidates reports whether the batch changes project metadata or the
// set of known sources, as opposed to only editing existing files.
func Invalidates(batch []Change) bool {
	for _, c := range batch {
		if c.Kind != KindSource {
			return true
		}
		if c.Op.Has(fsnotify.Create) || c.Op.Has(fsnotify.Remove) || c.Op.Has(fsnotify.Rename) {
			return true
		}
	}
	return false
}
