package workspace

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"forgelsp/internal/project"
)

// Registry hands out one Session per project root.
type Registry struct {
	ctx  context.Context
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	fallback string
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. Sessions it opens run under ctx.
func NewRegistry(ctx context.Context, opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Registry{ctx: ctx, opts: opts, log: log, sessions: make(map[string]*Session)}
}

// SetFallbackRoot names the editor's workspace folder. Files under it that
// have no foundry.toml above them are served with Foundry's default layout.
func (r *Registry) SetFallbackRoot(root string) {
	r.mu.Lock()
	r.fallback = root
	r.mu.Unlock()
}

// SessionFor returns the session owning path, opening it on first use.
// False means the file belongs to no project.
func (r *Registry) SessionFor(path string) (*Session, bool) {
	if path == "" {
		return nil, false
	}
	manifestPath, found, err := project.FindFoundryToml(filepath.Dir(path))
	if err != nil {
		r.log.Debug("find foundry.toml", slog.String("path", path), slog.String("error", err.Error()))
	}
	root := ""
	if found {
		root = filepath.Dir(manifestPath)
	} else {
		manifestPath = ""
		r.mu.Lock()
		fb := r.fallback
		r.mu.Unlock()
		if fb == "" || !project.Within(fb, path) {
			return nil, false
		}
		root = fb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[root]; ok {
		return s, true
	}
	s, err := New(r.ctx, root, manifestPath, r.opts)
	if err != nil {
		r.log.Warn("open project", slog.String("root", root), slog.String("error", err.Error()))
		return nil, false
	}
	r.sessions[root] = s
	r.log.Info("project opened", slog.String("root", root), slog.String("profile", s.Manifest().Profile))
	return s, true
}

// Sessions returns the open sessions ordered by root.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()
	slices.SortFunc(out, func(a, b *Session) int {
		switch {
		case a.root < b.root:
			return -1
		case a.root > b.root:
			return 1
		}
		return 0
	})
	return out
}

// Close tears down every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
