// Package diagparse turns the machine-readable output of `forge compile
// --json` and `forge lint --json` into diag.Diagnostic values.
//
// Parsing never fails as a whole. A record that cannot be decoded, or a lint
// record that has no usable source span, is counted in Batch.Skipped and its
// siblings are still returned. Compile records without a position anchor at
// the start of their file, and those without a file keep an empty FilePath.
package diagparse

import (
	"path/filepath"
	"regexp"
	"strings"

	"forgelsp/internal/diag"
	"forgelsp/internal/escape"
	"forgelsp/internal/source"
)

// Batch is the result of parsing one tool invocation's output.
type Batch struct {
	Diagnostics []diag.Diagnostic
	Skipped     int
}

// Options controls path resolution and span conversion.
type Options struct {
	// WorkDir is the directory the tool ran in; relative paths in the
	// output are resolved against it.
	WorkDir string
	// LoadFile reads the content used to convert byte offsets to
	// positions. Defaults to source.Load. Returning an error falls back to
	// the line/column fields printed by the tool.
	LoadFile func(path string) (*source.File, error)
}

type fileCache struct {
	load  func(path string) (*source.File, error)
	files map[string]*source.File
}

func newFileCache(opts Options) *fileCache {
	load := opts.LoadFile
	if load == nil {
		load = source.Load
	}
	return &fileCache{load: load, files: make(map[string]*source.File)}
}

func (c *fileCache) get(path string) *source.File {
	if path == "" {
		return nil
	}
	if f, ok := c.files[path]; ok {
		return f
	}
	f, err := c.load(path)
	if err != nil {
		f = nil
	}
	c.files[path] = f
	return f
}

// ResolvePath makes p absolute relative to workDir.
func ResolvePath(workDir, p string) string {
	if p == "" {
		return ""
	}
	p = filepath.FromSlash(p)
	if !filepath.IsAbs(p) && workDir != "" {
		p = filepath.Join(workDir, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// span conversion: byte offsets win over printed line/column when both exist
func rangeFor(file *source.File, start, end *int, line, col, endLine, endCol int) (source.Range, bool) {
	if file != nil && start != nil && *start >= 0 {
		s := *start
		e := s
		if end != nil && *end >= s {
			e = *end
		}
		if s <= len(file.Content) {
			e = min(e, len(file.Content))
			return file.Range(source.SpanOf(s, e)), true
		}
	}
	if line <= 0 {
		return source.Range{}, false
	}
	if endLine <= 0 {
		endLine, endCol = line, col
	}
	if file != nil {
		return source.Range{
			Start: file.PositionFromLineCol(line, col),
			End:   file.PositionFromLineCol(endLine, endCol),
		}, true
	}
	return source.Range{
		Start: source.Position{Line: line - 1, Character: max(col-1, 0)},
		End:   source.Position{Line: endLine - 1, Character: max(endCol-1, 0)},
	}, true
}

var (
	headerRE  = regexp.MustCompile(`^[A-Za-z][A-Za-z ]*?(?:\[[^\]]*\]|\s*\([^)]*\))?:\s+`)
	urlRE     = regexp.MustCompile(`https?://[^\s\x1b<>"'\)\]]+`)
	helpURLRE = regexp.MustCompile(`=\s*help:\s*(https?://\S+)`)
)

// headline returns the first non-empty line of cleaned text with a leading
// "level[code]: " or "Kind (code): " header removed.
func headline(text string) string {
	for _, line := range strings.Split(escape.Clean(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.TrimSpace(headerRE.ReplaceAllString(line, ""))
	}
	return ""
}

// findURL returns an OSC 8 target if present, else the first plain URL.
func findURL(text string) string {
	if link := escape.FirstLink(text); link != "" {
		return link
	}
	return trimURL(urlRE.FindString(escape.Clean(text)))
}

func trimURL(u string) string {
	return strings.TrimRight(u, ".,;:")
}

func isOnlyURL(text string) bool {
	clean := strings.TrimSpace(escape.Clean(text))
	if clean == "" {
		return false
	}
	u := urlRE.FindString(clean)
	return u != "" && strings.TrimSpace(strings.Replace(clean, u, "", 1)) == ""
}
