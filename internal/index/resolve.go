package index

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *Snapshot) rel(path string) string {
	r, err := filepath.Rel(s.Root, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return ""
	}
	return filepath.ToSlash(r)
}

// resolve applies, in order: relative imports, the winning remapping rule,
// a path under the root, then each library directory.
func (s *Snapshot) resolve(importPath, fromFile string) (string, error) {
	importPath = strings.TrimSpace(importPath)
	if importPath == "" {
		return "", ErrImportNotFound
	}
	if strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") {
		if fromFile == "" {
			return "", ErrImportNotFound
		}
		p := filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(importPath))
		if exists(p) {
			return p, nil
		}
		return "", ErrImportNotFound
	}
	if p, ok := s.Rules.Apply(s.Root, importPath, s.rel(fromFile)); ok && exists(p) {
		return p, nil
	}
	if p := filepath.Join(s.Root, filepath.FromSlash(importPath)); exists(p) {
		return p, nil
	}
	for _, lib := range s.Manifest.LibDirs() {
		if p := filepath.Join(lib, filepath.FromSlash(importPath)); exists(p) {
			return p, nil
		}
		// forge's automatic remapping: <lib>/<pkg>/src/<rest>
		if pkg, rest, ok := strings.Cut(importPath, "/"); ok {
			if p := filepath.Join(lib, pkg, "src", filepath.FromSlash(rest)); exists(p) {
				return p, nil
			}
		}
	}
	return "", ErrImportNotFound
}

// ResolveImport maps an import path written in fromFile to a file on disk.
// ErrImportNotFound means no navigation is available.
func (ix *Index) ResolveImport(ctx context.Context, importPath, fromFile string) (string, error) {
	return ix.Snapshot(ctx).resolve(importPath, fromFile)
}

// Dependencies returns the transitive imports of file, sorted. forge's file
// cache is used when it has an entry; otherwise imports are read from the
// source.
func (ix *Index) Dependencies(ctx context.Context, file string) []string {
	s := ix.Snapshot(ctx)
	seen := map[string]bool{file: true}
	queue := []string{file}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		var next []string
		if entry, ok := s.FileCache[cur]; ok {
			next = entry.Imports
		} else if scan := ix.scan(cur); scan != nil {
			for _, imp := range scan.Imports {
				if p, err := s.resolve(imp.Path, cur); err == nil {
					next = append(next, p)
				}
			}
		}
		for _, p := range next {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
			queue = append(queue, p)
		}
	}
	slices.Sort(out)
	return out
}

// CompletionCandidates lists import paths that start with partial: every
// known file written through each remapping, relative to the root, and
// relative to each library directory.
func (ix *Index) CompletionCandidates(ctx context.Context, partial string) []string {
	s := ix.Snapshot(ctx)
	set := make(map[string]bool)
	add := func(c string) {
		if c != "" && strings.HasPrefix(c, partial) {
			set[c] = true
		}
	}
	for _, f := range s.Files {
		for _, r := range s.Rules {
			target := filepath.FromSlash(r.Target)
			if !filepath.IsAbs(target) {
				target = filepath.Join(s.Root, target)
			}
			if rel, err := filepath.Rel(target, f); err == nil && !strings.HasPrefix(rel, "..") {
				add(r.Prefix + strings.TrimPrefix(filepath.ToSlash(rel), "/"))
			}
		}
		if rel := s.rel(f); rel != "" {
			add(rel)
		}
		for _, lib := range s.Manifest.LibDirs() {
			if rel, err := filepath.Rel(lib, f); err == nil && !strings.HasPrefix(rel, "..") {
				add(filepath.ToSlash(rel))
			}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
