package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"forgelsp/internal/diag"
	"forgelsp/internal/source"
)

// Pretty writes diagnostics in a human-readable form:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message> [source]
//
// followed, when Context is set and the file is known, by the source line
// and a ^~~~ underline. Lines and columns are one-based.
func Pretty(w io.Writer, diags []diag.Diagnostic, files map[string]*source.File, opts PrettyOpts) error {
	pal := newPalette(opts.Color)
	for _, d := range diags {
		path := displayPath(d.FilePath, opts.PathMode, opts.BaseDir)
		head := fmt.Sprintf("%s:%d:%d:", path, d.Range.Start.Line+1, d.Range.Start.Character+1)
		sev := pal.severity(d.Severity).Sprint(d.Severity.String())
		code := ""
		if d.Code != "" {
			code = " " + d.Code
		}
		if _, err := fmt.Fprintf(w, "%s %s%s: %s %s\n", pal.path.Sprint(head), sev, code, d.Message, pal.dim.Sprint("["+d.Source.String()+"]")); err != nil {
			return err
		}
		if opts.Context {
			if err := writeContext(w, files[d.FilePath], d, pal); err != nil {
				return err
			}
		}
		if opts.ShowHelp && d.HelpURL != "" {
			if _, err := fmt.Fprintf(w, "  %s %s\n", pal.dim.Sprint("help:"), d.HelpURL); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeContext(w io.Writer, f *source.File, d diag.Diagnostic, pal palette) error {
	if f == nil || d.Range.Start.Line >= f.LineCount() {
		return nil
	}
	lineNo := d.Range.Start.Line
	text := f.Line(lineNo)
	lineStart := int(f.Offset(source.Position{Line: lineNo}))
	start := int(f.Offset(d.Range.Start)) - lineStart
	end := len(text)
	if d.Range.End.Line == lineNo {
		end = int(f.Offset(d.Range.End)) - lineStart
	}
	start = min(max(start, 0), len(text))
	end = min(max(end, start), len(text))

	gutter := fmt.Sprintf("%d", lineNo+1)
	blank := strings.Repeat(" ", len(gutter))
	width := max(runewidth.StringWidth(text[start:end]), 1)
	marker := "^" + strings.Repeat("~", width-1)
	_, err := fmt.Fprintf(w, " %s | %s\n %s | %s%s\n",
		pal.dim.Sprint(gutter), text,
		blank, padding(text[:start]), pal.severity(d.Severity).Sprint(marker))
	return err
}

// padding reproduces the display width of prefix, keeping tabs so the
// underline stays aligned with the printed line.
func padding(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		if r == '\t' {
			b.WriteByte('\t')
			continue
		}
		b.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	return b.String()
}

type palette struct {
	path, dim, err, warn, info *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		path: color.New(color.Bold),
		dim:  color.New(color.Faint),
		err:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
		info: color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.path, p.dim, p.err, p.warn, p.info} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	}
	return p.info
}
