// Package workspace ties one Foundry project's runner, diagnostic cache,
// index and file watcher into a Session with explicit construction and
// teardown, so several project roots can be served side by side.
package workspace

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"forgelsp/internal/diag"
	"forgelsp/internal/diagcache"
	"forgelsp/internal/forge"
	"forgelsp/internal/index"
	"forgelsp/internal/project"
	"forgelsp/internal/source"
	"forgelsp/internal/watch"
)

// Options configures sessions.
type Options struct {
	Runner    *forge.Runner
	Overlay   index.Overlay
	DiskCache *index.DiskCache
	Jobs      int
	Watch     bool
	Logger    *slog.Logger
}

// Session serves one project root.
type Session struct {
	root   string
	runner *forge.Runner
	cache  *diagcache.Cache
	opts   Options
	log    *slog.Logger

	mu       sync.RWMutex
	manifest *project.Manifest
	ix       *index.Index
	watcher  *watch.Watcher
	cancel   context.CancelFunc
}

// New opens a session for the project whose foundry.toml is manifestPath.
// An empty manifestPath serves root with Foundry's default layout.
func New(ctx context.Context, root, manifestPath string, opts Options) (*Session, error) {
	if opts.Runner == nil {
		return nil, errors.New("workspace: runner is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	m := project.Default(root)
	if manifestPath != "" {
		loaded, err := project.LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		m = loaded
		root = m.Root
	}
	s := &Session{
		root:   root,
		runner: opts.Runner,
		opts:   opts,
		log:    log.With(slog.String("root", root)),
	}
	s.cache = diagcache.New(root, opts.Runner, s.log)
	if err := s.install(m); err != nil {
		return nil, err
	}
	if opts.Watch {
		if err := s.startWatcher(ctx); err != nil {
			s.log.Warn("file watching disabled", slog.String("error", err.Error()))
		}
	}
	return s, nil
}

func (s *Session) install(m *project.Manifest) error {
	ix, err := index.New(index.Options{
		Manifest:   m,
		Remappings: s.runner,
		Overlay:    s.opts.Overlay,
		DiskCache:  s.opts.DiskCache,
		Jobs:       s.opts.Jobs,
		Logger:     s.log,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.manifest = m
	s.ix = ix
	s.mu.Unlock()
	return nil
}

func (s *Session) startWatcher(ctx context.Context) error {
	s.mu.RLock()
	m := s.manifest
	s.mu.RUnlock()
	w, err := watch.New(m, s.onChanges, watch.Options{Logger: s.log})
	if err != nil {
		return err
	}
	wctx, cancel := context.WithCancel(ctx)
	if err := w.Start(wctx); err != nil {
		cancel()
		w.Stop()
		return err
	}
	s.mu.Lock()
	s.watcher = w
	s.cancel = cancel
	s.mu.Unlock()
	return nil
}

func (s *Session) onChanges(batch []watch.Change) {
	for _, c := range batch {
		if c.Kind == watch.KindManifest && c.Path != "" {
			s.reloadManifest()
			return
		}
	}
	if watch.Invalidates(batch) {
		s.log.Debug("project inputs changed", slog.Int("changes", len(batch)))
		s.Index().MarkStale()
	}
}

// reloadManifest rebuilds the index after foundry.toml changes. The watched
// directories stay as they were.
func (s *Session) reloadManifest() {
	s.mu.RLock()
	path := s.manifest.Path
	s.mu.RUnlock()
	if path == "" {
		s.Index().MarkStale()
		return
	}
	m, err := project.LoadManifest(path)
	if err != nil {
		s.log.Warn("reload foundry.toml", slog.String("error", err.Error()))
		return
	}
	if err := s.install(m); err != nil {
		s.log.Warn("rebuild index", slog.String("error", err.Error()))
		return
	}
	s.log.Info("foundry.toml reloaded", slog.String("profile", m.Profile))
}

// Close stops the watcher. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	w, cancel := s.watcher, s.cancel
	s.watcher, s.cancel = nil, nil
	s.mu.Unlock()
	if w != nil {
		w.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

// Root returns the project root.
func (s *Session) Root() string { return s.root }

// Manifest returns the decoded foundry.toml.
func (s *Session) Manifest() *project.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest
}

// Index returns the current index.
func (s *Session) Index() *index.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ix
}

// Cache returns the diagnostic cache.
func (s *Session) Cache() *diagcache.Cache { return s.cache }

// Contains reports whether path belongs to this project.
func (s *Session) Contains(path string) bool { return project.Within(s.root, path) }

// Diagnostics analyzes path under the trigger policy.
func (s *Session) Diagnostics(ctx context.Context, path string, trigger diagcache.Trigger) ([]diag.Diagnostic, error) {
	return s.cache.GetOrCompute(ctx, path, trigger)
}

// CachedDiagnostics returns the last stored diagnostics without running
// the tool.
func (s *Session) CachedDiagnostics(path string) []diag.Diagnostic {
	if e, ok := s.cache.Get(path); ok {
		return e.Diagnostics
	}
	return []diag.Diagnostic{}
}

// Definition returns declaration sites for the identifier at pos, or the
// resolved file when pos is inside an import path.
func (s *Session) Definition(ctx context.Context, path string, pos source.Position) ([]index.Location, error) {
	if !s.Contains(path) {
		return nil, nil
	}
	ix := s.Index()
	if imp, ok := ix.ImportAt(path, pos); ok {
		target, err := ix.ResolveImport(ctx, imp.Path, path)
		if errors.Is(err, index.ErrImportNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []index.Location{{FilePath: target}}, nil
	}
	name, _, ok := ix.IdentifierAt(path, pos)
	if !ok {
		return nil, nil
	}
	defs, err := ix.FindSymbolDefinitions(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]index.Location, 0, len(defs))
	for _, d := range defs {
		out = append(out, index.Location{FilePath: d.FilePath, Range: d.Range})
	}
	return out, nil
}

// References returns every occurrence of the identifier at pos.
func (s *Session) References(ctx context.Context, path string, pos source.Position) ([]index.Location, error) {
	if !s.Contains(path) {
		return nil, nil
	}
	ix := s.Index()
	name, _, ok := ix.IdentifierAt(path, pos)
	if !ok {
		return nil, nil
	}
	return ix.FindReferences(ctx, name)
}

// PrepareRename returns the identifier at pos and its range when it can be
// renamed. ok is false when no identifier is under pos; a keyword, builtin
// or undeclared name yields an index.ErrNotRenameable error.
func (s *Session) PrepareRename(ctx context.Context, path string, pos source.Position) (name string, rng source.Range, ok bool, err error) {
	if !s.Contains(path) {
		return "", source.Range{}, false, nil
	}
	ix := s.Index()
	name, rng, ok = ix.IdentifierAt(path, pos)
	if !ok {
		return "", source.Range{}, false, nil
	}
	if err = ix.CheckRenameable(ctx, name); err != nil {
		return "", source.Range{}, false, err
	}
	return name, rng, true, nil
}

// Rename renames the identifier at pos.
func (s *Session) Rename(ctx context.Context, path string, pos source.Position, newName string) ([]index.TextEdit, error) {
	if !s.Contains(path) {
		return nil, nil
	}
	ix := s.Index()
	name, _, ok := ix.IdentifierAt(path, pos)
	if !ok {
		return nil, nil
	}
	return ix.Rename(ctx, name, newName)
}

// DocumentSymbols returns the declarations in path.
func (s *Session) DocumentSymbols(ctx context.Context, path string) []index.SymbolEntry {
	return s.Index().DocumentSymbols(ctx, path)
}

// WorkspaceSymbols searches declarations by name.
func (s *Session) WorkspaceSymbols(ctx context.Context, query string) ([]index.SymbolEntry, error) {
	return s.Index().WorkspaceSymbols(ctx, query)
}

// CompletionCandidates lists import paths starting with partial.
func (s *Session) CompletionCandidates(ctx context.Context, partial string) []string {
	return s.Index().CompletionCandidates(ctx, partial)
}

// ResolveImport resolves an import written in fromFile.
func (s *Session) ResolveImport(ctx context.Context, importPath, fromFile string) (string, error) {
	return s.Index().ResolveImport(ctx, importPath, fromFile)
}
