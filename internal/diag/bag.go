package diag

import (
	"cmp"
	"slices"

	"forgelsp/internal/source"
)

// Bag is an ordered collection of diagnostics for one analysis run.
type Bag struct {
	items []Diagnostic
}

// NewBag wraps items; the slice is owned by the Bag afterwards.
func NewBag(items ...Diagnostic) *Bag {
	return &Bag{items: items}
}

// Add appends d.
func (b *Bag) Add(d ...Diagnostic) {
	b.items = append(b.items, d...)
}

// Len returns the number of diagnostics.
func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns a copy of the diagnostics.
func (b *Bag) Items() []Diagnostic {
	return slices.Clone(b.items)
}

// HasErrors reports whether any diagnostic is an error.
func (b *Bag) HasErrors() bool {
	return slices.ContainsFunc(b.items, func(d Diagnostic) bool { return d.Severity == SevError })
}

// BySource returns the diagnostics produced by src.
func (b *Bag) BySource(src Source) []Diagnostic {
	var out []Diagnostic
	for _, d := range b.items {
		if d.Source == src {
			out = append(out, d)
		}
	}
	return out
}

// Count returns how many diagnostics have severity sev.
func (b *Bag) Count(sev Severity) int {
	n := 0
	for _, d := range b.items {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// Sort orders by file, start, end, severity (errors first), then code.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, func(di, dj Diagnostic) int {
		if c := cmp.Compare(di.FilePath, dj.FilePath); c != 0 {
			return c
		}
		if c := comparePos(di.Range.Start, dj.Range.Start); c != 0 {
			return c
		}
		if c := comparePos(di.Range.End, dj.Range.End); c != 0 {
			return c
		}
		if c := cmp.Compare(di.Severity, dj.Severity); c != 0 {
			return c
		}
		return cmp.Compare(di.Code, dj.Code)
	})
}

func comparePos(a, b source.Position) int {
	if c := cmp.Compare(a.Line, b.Line); c != 0 {
		return c
	}
	return cmp.Compare(a.Character, b.Character)
}
