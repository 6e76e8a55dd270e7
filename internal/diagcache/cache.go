// Package diagcache keeps the latest diagnostics per file and decides, per
// trigger, whether the tool's own build cache may be used.
//
// OnOpen and OnChange reuse a stored entry whose fingerprint still matches
// the file on disk, and otherwise analyze with the tool's cache enabled.
// OnSave always analyzes from scratch: a warm build cache can hide warnings
// that only a clean compile reports.
package diagcache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"forgelsp/internal/diag"
	"forgelsp/internal/forge"
	"forgelsp/internal/project"
)

// Trigger is the editor event that caused an analysis.
type Trigger uint8

const (
	OnOpen Trigger = iota
	OnChange
	OnSave
)

func (t Trigger) String() string {
	switch t {
	case OnOpen:
		return "open"
	case OnChange:
		return "change"
	case OnSave:
		return "save"
	}
	return "unknown"
}

// UseToolCache reports whether the trigger lets the tool reuse its build
// cache.
func (t Trigger) UseToolCache() bool { return t != OnSave }

// Analyzer runs the external tool for one file. *forge.Runner implements it.
type Analyzer interface {
	Analyze(ctx context.Context, dir, file string, useCache bool) (forge.Result, error)
}

// Entry is one file's stored result. Entries are never mutated after they
// are stored; a newer analysis replaces the whole entry.
type Entry struct {
	FilePath     string
	Fingerprint  string
	Diagnostics  []diag.Diagnostic
	GeneratedFor Trigger
	ComputedAt   time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	root     string
	analyzer Analyzer
	log      *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry

	group singleflight.Group
}

// New creates a cache for the project at root.
func New(root string, analyzer Analyzer, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		root:     root,
		analyzer: analyzer,
		log:      log,
		entries:  make(map[string]*Entry),
	}
}

// Fingerprint identifies the on-disk state of path: a content hash, or
// mtime and size when the file cannot be read. Empty when it does not exist.
func Fingerprint(path string) string {
	// #nosec G304 -- path is a workspace source file
	data, err := os.ReadFile(path)
	if err == nil {
		return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		return ""
	}
	return fmt.Sprintf("stat:%d/%d", info.ModTime().UnixNano(), info.Size())
}

// Get returns the stored entry for path, if any.
func (c *Cache) Get(path string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	return e, ok
}

// Forget drops the entry for path.
func (c *Cache) Forget(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Len reports the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) store(e *Entry) {
	c.mu.Lock()
	c.entries[e.FilePath] = e
	c.mu.Unlock()
}

// GetOrCompute returns diagnostics for path according to the trigger
// policy. Files outside the project have none. On a tool timeout the
// partial diagnostics are returned with the error and nothing is stored.
func (c *Cache) GetOrCompute(ctx context.Context, path string, trigger Trigger) ([]diag.Diagnostic, error) {
	if !project.Within(c.root, path) || !strings.HasSuffix(path, ".sol") {
		return []diag.Diagnostic{}, nil
	}
	fp := Fingerprint(path)
	if trigger != OnSave {
		if e, ok := c.Get(path); ok && fp != "" && e.Fingerprint == fp {
			c.log.Debug("diagnostics cache hit",
				slog.String("file", path),
				slog.String("trigger", trigger.String()),
				slog.String("generated_for", e.GeneratedFor.String()))
			return slices.Clone(e.Diagnostics), nil
		}
	}

	useCache := trigger.UseToolCache()
	key := fmt.Sprintf("%s\x00%t", path, useCache)
	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := c.analyzer.Analyze(ctx, c.root, path, useCache)
		if err != nil {
			return res.Diagnostics, err
		}
		c.store(&Entry{
			FilePath:     path,
			Fingerprint:  fp,
			Diagnostics:  res.Diagnostics,
			GeneratedFor: trigger,
			ComputedAt:   time.Now(),
		})
		return res.Diagnostics, nil
	})
	diags, _ := v.([]diag.Diagnostic)
	if err != nil {
		c.log.Warn("analysis failed",
			slog.String("file", path),
			slog.String("trigger", trigger.String()),
			slog.Bool("use_cache", useCache),
			slog.String("error", err.Error()))
	}
	if diags == nil {
		diags = []diag.Diagnostic{}
	}
	return slices.Clone(diags), err
}
