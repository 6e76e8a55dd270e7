package diagparse

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgelsp/internal/diag"
	"forgelsp/internal/source"
)

func lintLine(t *testing.T, rec map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	return string(raw)
}

func primarySpan(start, end int) []map[string]any {
	return []map[string]any{
		{"file_name": "src/Counter.sol", "byte_start": 0, "byte_end": 1, "line_start": 1, "column_start": 1, "is_primary": false},
		{"file_name": "src/Counter.sol", "byte_start": start, "byte_end": end, "line_start": 1, "column_start": 1, "is_primary": true},
	}
}

func TestParseLintPrefersChildMessageOverRendered(t *testing.T) {
	dir, path := writeProject(t)
	start := strings.Index(counterSrc, "Counter")
	line := lintLine(t, map[string]any{
		"$message_type": "diag",
		"message":       "",
		"level":         "note",
		"code":          map[string]any{"code": "mixed-case-function"},
		"spans":         primarySpan(start, start+len("Counter")),
		"children": []map[string]any{
			{"message": "\x1b[1mfunction names should use mixedCase\x1b[0m", "level": "note"},
			{"message": "https://book.getfoundry.sh/reference/forge/forge-lint#mixed-case-function", "level": "help"},
		},
		"rendered": "note[mixed-case-function]: rendered text\n --> src/Counter.sol:4:10\n",
	})

	batch := ParseLint([]byte(line+"\n"), Options{WorkDir: dir})
	require.Zero(t, batch.Skipped)
	require.Len(t, batch.Diagnostics, 1)
	d := batch.Diagnostics[0]
	assert.Equal(t, "function names should use mixedCase", d.Message)
	assert.Equal(t, path, d.FilePath)
	assert.Equal(t, source.Position{Line: 3, Character: 9}, d.Range.Start)
	assert.Equal(t, diag.SourceLint, d.Source)
	assert.Equal(t, diag.SevInformation, d.Severity)
	assert.Equal(t, "mixed-case-function", d.Code)
	assert.Equal(t, "https://book.getfoundry.sh/reference/forge/forge-lint#mixed-case-function", d.HelpURL)
}

func TestParseLintRenderedFallback(t *testing.T) {
	dir, _ := writeProject(t)
	line := lintLine(t, map[string]any{
		"message":  "",
		"level":    "warning",
		"code":     map[string]any{"code": "unused-import"},
		"spans":    primarySpan(0, 2),
		"children": []map[string]any{{"message": "https://x.test/help", "level": "help"}},
		"rendered": "\x1b[33mwarning[unused-import]\x1b[0m: unused imports should be removed\n --> src/Counter.sol:1:1\n",
	})
	batch := ParseLint([]byte(line), Options{WorkDir: dir})
	require.Len(t, batch.Diagnostics, 1)
	assert.Equal(t, "unused imports should be removed", batch.Diagnostics[0].Message)
	assert.Equal(t, diag.SevWarning, batch.Diagnostics[0].Severity)
	assert.Equal(t, "https://x.test/help", batch.Diagnostics[0].HelpURL)
}

func TestParseLintCodeFallback(t *testing.T) {
	dir, _ := writeProject(t)
	lines := []string{
		lintLine(t, map[string]any{"level": "note", "code": map[string]any{"code": "screaming-snake-case-const"}, "spans": primarySpan(0, 2)}),
		lintLine(t, map[string]any{"level": "note", "code": "some_new-rule", "spans": primarySpan(0, 2)}),
	}
	batch := ParseLint([]byte(strings.Join(lines, "\n")), Options{WorkDir: dir})
	require.Len(t, batch.Diagnostics, 2)
	assert.Equal(t, "constants should use SCREAMING_SNAKE_CASE", batch.Diagnostics[0].Message)
	assert.Equal(t, "some new rule", batch.Diagnostics[1].Message)
}

func TestParseLintSkipsStructuralFailures(t *testing.T) {
	dir, _ := writeProject(t)
	noPrimary := lintLine(t, map[string]any{
		"message": "lost",
		"level":   "note",
		"spans":   []map[string]any{{"file_name": "src/Counter.sol", "byte_start": 0, "byte_end": 1, "is_primary": false}},
	})
	good := lintLine(t, map[string]any{"message": "kept", "level": "note", "spans": primarySpan(0, 1)})
	artifact := lintLine(t, map[string]any{"$message_type": "artifact", "message": "ignored"})
	data := strings.Join([]string{
		"Compiling...",
		`{"message": "truncated", "spans": [`,
		noPrimary,
		artifact,
		good,
	}, "\n")

	batch := ParseLint([]byte(data), Options{WorkDir: dir})
	assert.Equal(t, 2, batch.Skipped)
	require.Len(t, batch.Diagnostics, 1)
	assert.Equal(t, "kept", batch.Diagnostics[0].Message)
}

func TestParseLintHelpRecordAttachesToPrevious(t *testing.T) {
	dir, _ := writeProject(t)
	data := strings.Join([]string{
		lintLine(t, map[string]any{"message": "first", "level": "note", "spans": primarySpan(0, 1)}),
		lintLine(t, map[string]any{"message": "for further information visit \x1b]8;;https://a.test/rule\x1b\\https://a.test/rule\x1b]8;;\x1b\\", "level": "help"}),
	}, "\n")
	batch := ParseLint([]byte(data), Options{WorkDir: dir})
	require.Len(t, batch.Diagnostics, 1)
	assert.Equal(t, "https://a.test/rule", batch.Diagnostics[0].HelpURL)
	assert.Zero(t, batch.Skipped)
}

func TestDescribeCode(t *testing.T) {
	assert.Equal(t, "unused import", DescribeCode("unused-import"))
	assert.Equal(t, "brand new check", DescribeCode("brand_new-check"))
	assert.Equal(t, "lint finding", DescribeCode(""))
}
