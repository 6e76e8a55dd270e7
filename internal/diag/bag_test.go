package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"forgelsp/internal/source"
)

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"error", SevError, true},
		{"TypeError", SevError, true},
		{"Warning", SevWarning, true},
		{"note", SevInformation, true},
		{"info", SevInformation, true},
		{"help", SevHint, true},
		{"gas", SevHint, true},
		{"mystery", SevWarning, false},
		{"", SevWarning, false},
	}
	for _, tc := range cases {
		got, ok := ParseSeverity(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}

func TestSeverityLSP(t *testing.T) {
	assert.Equal(t, 1, SevError.LSP())
	assert.Equal(t, 4, SevHint.LSP())
	assert.Equal(t, 2, Severity(0).LSP())
}

func TestBagSortAndFilter(t *testing.T) {
	at := func(line int) source.Range {
		return source.Range{Start: source.Position{Line: line}, End: source.Position{Line: line}}
	}
	b := NewBag(
		Diagnostic{FilePath: "b.sol", Range: at(1), Severity: SevWarning, Source: SourceLint},
		Diagnostic{FilePath: "a.sol", Range: at(3), Severity: SevWarning, Source: SourceCompile},
		Diagnostic{FilePath: "a.sol", Range: at(3), Severity: SevError, Source: SourceCompile},
	)
	b.Sort()
	items := b.Items()
	assert.Equal(t, SevError, items[0].Severity)
	assert.Equal(t, "b.sol", items[2].FilePath)
	assert.Len(t, b.BySource(SourceLint), 1)
	assert.True(t, b.HasErrors())
	assert.Equal(t, 2, b.Count(SevWarning))
}
