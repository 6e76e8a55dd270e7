package index

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"forgelsp/internal/project"
	"forgelsp/internal/source"
)

// maxWorkspaceSymbols caps workspace/symbol results.
const maxWorkspaceSymbols = 1000

func compareSymbols(a, b SymbolEntry) int {
	if c := cmp.Compare(a.FilePath, b.FilePath); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Line, b.Line); c != 0 {
		return c
	}
	return cmp.Compare(a.Column, b.Column)
}

func compareLocations(a, b Location) int {
	if c := cmp.Compare(a.FilePath, b.FilePath); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Range.Start.Line, b.Range.Start.Line); c != 0 {
		return c
	}
	return cmp.Compare(a.Range.Start.Character, b.Range.Start.Character)
}

// scans covers the snapshot's files and every open buffer in the project.
func (ix *Index) scans(ctx context.Context) ([]*fileScan, error) {
	s := ix.Snapshot(ctx)
	return ix.scanAll(ctx, ix.fileSet(s, ix.overlayPaths()...))
}

// FindSymbolDefinitions returns every declaration named name, ordered by
// file path then line.
func (ix *Index) FindSymbolDefinitions(ctx context.Context, name string) ([]SymbolEntry, error) {
	if name == "" {
		return nil, nil
	}
	scans, err := ix.scans(ctx)
	if err != nil {
		return nil, err
	}
	var out []SymbolEntry
	for _, sc := range scans {
		if sc == nil {
			continue
		}
		for _, sym := range sc.Symbols {
			if sym.Name == name {
				out = append(out, sym)
			}
		}
	}
	slices.SortFunc(out, compareSymbols)
	return out, nil
}

// FindReferences returns every occurrence of the identifier token name
// outside comments and string literals, declarations included.
func (ix *Index) FindReferences(ctx context.Context, name string) ([]Location, error) {
	if name == "" {
		return nil, nil
	}
	scans, err := ix.scans(ctx)
	if err != nil {
		return nil, err
	}
	var out []Location
	for _, sc := range scans {
		if sc == nil {
			continue
		}
		for _, r := range sc.Refs[name] {
			out = append(out, Location{FilePath: sc.Path, Range: r})
		}
	}
	slices.SortFunc(out, compareLocations)
	return out, nil
}

var elementaryTypeRE = regexp.MustCompile(`^(?:u?int\d*|bytes\d*|u?fixed(?:\d+x\d+)?|byte)$`)

// ValidIdentifier reports whether name can be used as a Solidity identifier.
func ValidIdentifier(name string) bool {
	if name == "" || keywords[name] || elementaryTypeRE.MatchString(name) || !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return false
		}
	}
	return true
}

// CheckRenameable returns ErrNotRenameable unless name is an identifier
// declared somewhere in the project.
func (ix *Index) CheckRenameable(ctx context.Context, name string) error {
	if !ValidIdentifier(name) {
		return fmt.Errorf("%w: %q is a keyword or builtin", ErrNotRenameable, name)
	}
	defs, err := ix.FindSymbolDefinitions(ctx, name)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return fmt.Errorf("%w: %q has no declaration in the project", ErrNotRenameable, name)
	}
	return nil
}

// Rename computes the edits that replace every occurrence of name with
// newName. It refuses with a *ConflictError when newName is already
// declared anywhere in the project; text matching cannot tell whether the
// result would stay unambiguous.
func (ix *Index) Rename(ctx context.Context, name, newName string) ([]TextEdit, error) {
	if !ValidIdentifier(newName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, newName)
	}
	if err := ix.CheckRenameable(ctx, name); err != nil {
		return nil, err
	}
	if name == newName {
		return nil, nil
	}
	existing, err := ix.FindSymbolDefinitions(ctx, newName)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, &ConflictError{NewName: newName, Existing: existing}
	}
	refs, err := ix.FindReferences(ctx, name)
	if err != nil {
		return nil, err
	}
	edits := make([]TextEdit, 0, len(refs))
	for _, r := range refs {
		edits = append(edits, TextEdit{FilePath: r.FilePath, Range: r.Range, NewText: newName})
	}
	return edits, nil
}

// DocumentSymbols returns the declarations in path. Files outside the
// project root have none.
func (ix *Index) DocumentSymbols(ctx context.Context, path string) []SymbolEntry {
	if !project.Within(ix.Root(), path) {
		return nil
	}
	sc := ix.scan(path)
	if sc == nil {
		return nil
	}
	return slices.Clone(sc.Symbols)
}

// WorkspaceSymbols returns declarations whose name contains query,
// case-insensitively, ordered by file then line. An empty query matches
// everything up to the result cap.
func (ix *Index) WorkspaceSymbols(ctx context.Context, query string) ([]SymbolEntry, error) {
	scans, err := ix.scans(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []SymbolEntry
	for _, sc := range scans {
		if sc == nil {
			continue
		}
		for _, sym := range sc.Symbols {
			if strings.Contains(strings.ToLower(sym.Name), q) {
				out = append(out, sym)
			}
		}
	}
	slices.SortFunc(out, compareSymbols)
	if len(out) > maxWorkspaceSymbols {
		out = out[:maxWorkspaceSymbols]
	}
	return out, nil
}

// IdentifierAt returns the identifier token under pos in path. Keywords and
// elementary type names are not identifiers.
func (ix *Index) IdentifierAt(path string, pos source.Position) (string, source.Range, bool) {
	sc := ix.scan(path)
	if sc == nil {
		return "", source.Range{}, false
	}
	for name, ranges := range sc.Refs {
		if !ValidIdentifier(name) {
			continue
		}
		for _, r := range ranges {
			if contains(r, pos) {
				return name, r, true
			}
		}
	}
	return "", source.Range{}, false
}

// ImportAt returns the import literal under pos in path.
func (ix *Index) ImportAt(path string, pos source.Position) (ImportRef, bool) {
	sc := ix.scan(path)
	if sc == nil {
		return ImportRef{}, false
	}
	for _, imp := range sc.Imports {
		if contains(imp.Range, pos) {
			return imp, true
		}
	}
	return ImportRef{}, false
}

// contains treats the range as closed so a cursor just after a token still
// selects it.
func contains(r source.Range, pos source.Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character > r.End.Character {
		return false
	}
	return true
}
